// Package recipe turns a task identifier, a seed and a few sizing parameters into a
// packaged coding-task directory. Each recipe is a linear pipeline; the first failing
// stage aborts it and removes whatever it had written.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskgen/internal/archive"
	"taskgen/internal/synth"
)

var (
	// ErrUnknownTask reports a task identifier with no recipe.
	ErrUnknownTask = errors.New("recipe: unknown task")
	// ErrGeneration wraps every failure inside a recipe run.
	ErrGeneration = errors.New("recipe: generation failed")
	// ErrNoLiveable reports an entity dataset without a liveable row to pick as target.
	ErrNoLiveable = errors.New("recipe: no liveable entity")
)

// TargetPlaceholder is replaced by the target label in task text.
const TargetPlaceholder = "{{target}}"

// Default sizing, matching what the assessment service has always requested.
const (
	DefaultNumSamples         = 10000
	DefaultDistanceConstraint = 10.0
)

// Params are the inputs of one recipe run. Zero values select the defaults.
type Params struct {
	Seed               int64   `json:"seed"`
	NumSamples         int     `json:"num_samples"`
	DistanceConstraint float64 `json:"distance_constraint,omitempty"`
	PlacementRetries   int     `json:"placement_retries,omitempty"`
	ClusterAttempts    int     `json:"cluster_attempts,omitempty"`
	QuotaAttempts      int     `json:"quota_attempts,omitempty"`
}

func (p Params) withDefaults() Params {
	if p.NumSamples == 0 {
		p.NumSamples = DefaultNumSamples
	}
	if p.DistanceConstraint == 0 {
		p.DistanceConstraint = DefaultDistanceConstraint
	}
	if p.PlacementRetries == 0 {
		p.PlacementRetries = synth.DefaultPlacementRetries
	}
	if p.ClusterAttempts == 0 {
		p.ClusterAttempts = synth.DefaultClusterAttempts
	}
	if p.QuotaAttempts == 0 {
		p.QuotaAttempts = synth.DefaultQuotaAttempts
	}
	return p
}

func (p Params) validate() error {
	if p.NumSamples < 1 {
		return fmt.Errorf("num_samples=%d must be positive: %w", p.NumSamples, synth.ErrInvalidParam)
	}
	if p.DistanceConstraint < 0 {
		return fmt.Errorf("distance_constraint=%g must be positive: %w", p.DistanceConstraint, synth.ErrInvalidParam)
	}
	return nil
}

// Artifact describes a finished run. It is built once and not modified afterwards.
type Artifact struct {
	TaskID      string `json:"task_id"`
	OutputDir   string `json:"output_dir"`
	ArchivePath string `json:"archive_path"`
	DatasetPath string `json:"dataset_path,omitempty"`
	Params      Params `json:"parameters"`
	Target      string `json:"target,omitempty"`
	Digest      string `json:"digest"`
	Rows        int    `json:"rows"`
	Shortfall   int    `json:"shortfall,omitempty"`
	Files       int    `json:"files"`
}

// Archiver packages a directory into dest and reports the number of files written.
type Archiver interface {
	Archive(dir, dest string) (int, error)
}

// Info describes a recipe for listings.
type Info struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Synthetic   bool   `json:"synthetic"`
}

type recipe struct {
	Info
	build func(ctx context.Context, r *run) error
}

var recipes = map[string]recipe{}

func register(r recipe) { recipes[r.ID] = r }

// List returns the registered recipes ordered by id.
func List() []Info {
	out := make([]Info, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns the recipe description for taskID in either accepted form.
func Lookup(taskID string) (Info, error) {
	r, ok := recipes[NormalizeTaskID(taskID)]
	if !ok {
		return Info{}, fmt.Errorf("task %q: %w", taskID, ErrUnknownTask)
	}
	return r.Info, nil
}

// NormalizeTaskID accepts both "coding-task-N" and the question form "coding_task_N".
func NormalizeTaskID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(id)), "_", "-")
}

// SubstituteTarget places target into text at every TargetPlaceholder.
func SubstituteTarget(text, target string) string {
	return strings.ReplaceAll(text, TargetPlaceholder, target)
}

// Orchestrator runs recipes below OutputDir, copying notebooks from ReferenceDir.
type Orchestrator struct {
	ReferenceDir string
	OutputDir    string
	Archiver     Archiver
	Logger       *slog.Logger
}

func (o Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// run is the working state of one recipe execution.
type run struct {
	id     string
	dir    string
	ref    string
	params Params
	src    *synth.Source
	log    *slog.Logger

	dataset   string
	digest    string
	rows      int
	shortfall int
	target    string
}

// Run executes the recipe for taskID and archives its directory to
// <OutputDir>/<taskID>.zip. Any failure wraps ErrGeneration (and ErrUnknownTask for an
// unknown id); on failure the task directory and archive are removed.
func (o Orchestrator) Run(ctx context.Context, taskID string, p Params) (Artifact, error) {
	id := NormalizeTaskID(taskID)
	rc, ok := recipes[id]
	if !ok {
		return Artifact{}, fmt.Errorf("task %q: %w", taskID, ErrUnknownTask)
	}
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return Artifact{}, fmt.Errorf("%s: %w: %w", id, ErrGeneration, err)
	}
	if o.OutputDir == "" {
		return Artifact{}, fmt.Errorf("%s: %w: output directory is required", id, ErrGeneration)
	}
	arch := o.Archiver
	if arch == nil {
		arch = archive.Zipper{}
	}

	r := &run{
		id:     id,
		dir:    filepath.Join(o.OutputDir, id),
		ref:    filepath.Join(o.ReferenceDir, id, id+".ipynb"),
		params: p,
		src:    synth.NewSource(p.Seed),
		log:    o.logger().With(slog.String("task", id), slog.Int64("seed", p.Seed)),
	}
	dest := filepath.Join(o.OutputDir, id+".zip")

	files, err := o.execute(ctx, rc, r, arch, dest)
	if err != nil {
		_ = os.RemoveAll(r.dir)
		_ = os.Remove(dest)
		r.log.Error("recipe failed", slog.String("error", err.Error()))
		return Artifact{}, fmt.Errorf("%s: %w: %w", id, ErrGeneration, err)
	}
	r.log.Info("recipe complete", slog.Int("rows", r.rows), slog.String("archive", dest))
	return Artifact{
		TaskID:      id,
		OutputDir:   r.dir,
		ArchivePath: dest,
		DatasetPath: r.dataset,
		Params:      p,
		Target:      r.target,
		Digest:      r.digest,
		Rows:        r.rows,
		Shortfall:   r.shortfall,
		Files:       files,
	}, nil
}

func (o Orchestrator) execute(ctx context.Context, rc recipe, r *run, arch Archiver, dest string) (int, error) {
	if err := archive.EnsureDir(r.dir); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	digest, err := copyFile(r.ref, filepath.Join(r.dir, r.id+".ipynb"))
	if err != nil {
		return 0, fmt.Errorf("copy reference notebook: %w", err)
	}
	r.digest = digest
	if err := rc.build(ctx, r); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	files, err := arch.Archive(r.dir, dest)
	if err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}
	return files, nil
}
