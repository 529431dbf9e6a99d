package engine

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"taskgen/internal/archive"
	"taskgen/internal/config"
	"taskgen/internal/domain"
	"taskgen/internal/events"
	"taskgen/internal/metrics"
	"taskgen/internal/recipe"
	"taskgen/internal/repo"
)

var (
	// ErrReplayMismatch reports a replay whose dataset digest differs from the original run.
	ErrReplayMismatch = errors.New("replay digest mismatch")
	// ErrNotReplayable reports a replay of a run that did not complete.
	ErrNotReplayable = errors.New("run not replayable")
)

type Engine struct {
	DB           *sql.DB
	Repo         repo.Repo
	Events       events.Writer
	Orchestrator recipe.Orchestrator
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

// New wires an engine on db using the paths and defaults from cfg. Logger and Metrics
// are optional and may be set on the returned value.
func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Orchestrator: recipe.Orchestrator{
			ReferenceDir: cfg.Paths.ReferenceDir,
			OutputDir:    cfg.Paths.OutputDir,
			Archiver:     archive.Zipper{Patterns: cfg.Archive.Include},
		},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GenerateOptions select the task and override the configured generator defaults.
// Nil pointers keep the configured value.
type GenerateOptions struct {
	TaskID             string
	Seed               *int64
	NumSamples         *int
	DistanceConstraint *float64
	OutputDir          string
	ActorID            string
}

// Params resolves opts against the generator section of the config.
func (e Engine) Params(opts GenerateOptions) recipe.Params {
	g := config.Default().Generator
	if e.Config != nil {
		g = e.Config.Generator
	}
	p := recipe.Params{
		Seed:               g.Seed,
		NumSamples:         g.NumSamples,
		DistanceConstraint: g.DistanceConstraint,
		PlacementRetries:   g.PlacementMaxRetries,
		ClusterAttempts:    g.ClusterMaxAttempts,
		QuotaAttempts:      g.QuotaAttempts,
	}
	if opts.Seed != nil {
		p.Seed = *opts.Seed
	}
	if opts.NumSamples != nil {
		p.NumSamples = *opts.NumSamples
	}
	if opts.DistanceConstraint != nil {
		p.DistanceConstraint = *opts.DistanceConstraint
	}
	return p
}

// Generate records a run, executes the task recipe and stores its outcome. A failed
// recipe is recorded as a failed run and its error returned alongside the run.
func (e Engine) Generate(ctx context.Context, opts GenerateOptions) (domain.Run, error) {
	info, err := recipe.Lookup(opts.TaskID)
	if err != nil {
		return domain.Run{}, err
	}
	return e.execute(ctx, info.ID, e.Params(opts), opts.OutputDir, opts.ActorID, nil)
}

// ReplayResult pairs a replay run with the run it reproduced.
type ReplayResult struct {
	Run      domain.Run `json:"run"`
	Original domain.Run `json:"original"`
	Matches  bool       `json:"matches"`
}

// Replay regenerates runID from its stored parameters into outputDir (a fresh run
// directory when empty) and compares digests. A differing digest returns the result
// together with ErrReplayMismatch.
func (e Engine) Replay(ctx context.Context, runID, outputDir, actorID string) (ReplayResult, error) {
	orig, err := e.Repo.GetRun(ctx, runID)
	if err != nil {
		return ReplayResult{}, err
	}
	if orig.Status != domain.RunCompleted {
		return ReplayResult{}, fmt.Errorf("run %s is %s: %w", orig.ID, orig.Status, ErrNotReplayable)
	}
	p := recipe.Params(orig.Params)
	run, err := e.execute(ctx, orig.TaskID, p, outputDir, actorID, &orig.ID)
	if err != nil {
		return ReplayResult{Run: run, Original: orig}, err
	}
	res := ReplayResult{Run: run, Original: orig, Matches: run.Digest == orig.Digest}
	if err := e.appendEvent(ctx, events.RunReplayed, run.ID, run.ActorID, events.EventPayload{
		"replay_of": orig.ID,
		"matches":   res.Matches,
	}); err != nil {
		return res, err
	}
	if !res.Matches {
		e.logger().Error("replay mismatch",
			slog.String("run_id", orig.ID),
			slog.String("expected", orig.Digest),
			slog.String("got", run.Digest))
		return res, fmt.Errorf("run %s: %w", orig.ID, ErrReplayMismatch)
	}
	return res, nil
}

// Preview generates taskID into a scratch directory and returns the dataset header and
// at most limit rows. Nothing is recorded and the scratch directory is removed.
func (e Engine) Preview(ctx context.Context, opts GenerateOptions, limit int) ([]string, [][]string, error) {
	info, err := recipe.Lookup(opts.TaskID)
	if err != nil {
		return nil, nil, err
	}
	scratch, err := os.MkdirTemp("", "taskgen-preview-")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(scratch)

	orch := e.Orchestrator
	orch.OutputDir = scratch
	orch.Logger = e.logger()
	art, err := orch.Run(ctx, info.ID, e.Params(opts))
	if err != nil {
		return nil, nil, err
	}
	if art.DatasetPath == "" {
		return nil, nil, nil
	}
	f, err := os.Open(art.DatasetPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read dataset header: %w", err)
	}
	var rows [][]string
	for limit <= 0 || len(rows) < limit {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func (e Engine) execute(ctx context.Context, taskID string, p recipe.Params, outputDir, actorID string, replayOf *string) (domain.Run, error) {
	if actorID == "" {
		actorID = "local-user"
	}
	id := uuid.NewString()
	if outputDir == "" {
		outputDir = filepath.Join(e.Orchestrator.OutputDir, id)
	}
	started := e.now()
	run := domain.Run{
		ID:        id,
		TaskID:    taskID,
		Seed:      p.Seed,
		Params:    domain.RunParams(p),
		Status:    domain.RunRunning,
		OutputDir: outputDir,
		ActorID:   actorID,
		ReplayOf:  replayOf,
		CreatedAt: started.UTC().Format(time.RFC3339),
	}
	if err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertRun(ctx, tx, run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return e.Events.Append(ctx, tx, events.RunStarted, "run", run.ID, actorID, events.EventPayload{
			"task_id": taskID,
			"seed":    p.Seed,
		})
	}); err != nil {
		return domain.Run{}, err
	}

	log := e.logger().With(slog.String("run_id", run.ID), slog.String("task", taskID))
	orch := e.Orchestrator
	orch.OutputDir = outputDir
	orch.Logger = log
	art, runErr := orch.Run(ctx, taskID, p)

	finished := e.now()
	finishedAt := finished.UTC().Format(time.RFC3339)
	run.FinishedAt = &finishedAt
	evtType := events.RunCompleted
	payload := events.EventPayload{}
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
		evtType = events.RunFailed
		payload["error"] = run.Error
	} else {
		run.Status = domain.RunCompleted
		run.ArchivePath = art.ArchivePath
		run.DatasetPath = art.DatasetPath
		run.Digest = art.Digest
		run.Target = art.Target
		run.Rows = art.Rows
		run.Shortfall = art.Shortfall
		payload["digest"] = art.Digest
		payload["rows"] = art.Rows
		if art.Target != "" {
			payload["target"] = art.Target
		}
	}
	// the outcome is stored even when ctx was cancelled mid-run
	storeCtx := context.WithoutCancel(ctx)
	if err := e.withTx(storeCtx, func(tx *sql.Tx) error {
		if err := e.Repo.FinishRun(storeCtx, tx, run); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		return e.Events.Append(storeCtx, tx, evtType, "run", run.ID, actorID, payload)
	}); err != nil {
		return run, err
	}
	e.Metrics.Observe(taskID, run.Status, finished.Sub(started), run.Rows, run.Shortfall)

	if runErr != nil {
		return run, runErr
	}
	log.Info("run completed",
		slog.Int("rows", run.Rows),
		slog.String("digest", run.Digest),
		slog.String("archive", run.ArchivePath))
	return run, nil
}

func (e Engine) appendEvent(ctx context.Context, evtType, runID, actorID string, payload events.EventPayload) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Events.Append(ctx, tx, evtType, "run", runID, actorID, payload)
	})
}

func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
