package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"taskgen/internal/synth"
)

var planetHeader = []string{"Rock", "Water", "Air", "Fire", "Ether", "Liveability", "Liveable", "Planet"}

func init() {
	register(recipe{
		Info: Info{
			ID:          "coding-task-3",
			Title:       "Planets",
			Description: "Planet compositions with liveability score and class, quota-balanced.",
			Synthetic:   true,
		},
		build: func(ctx context.Context, r *run) error {
			_, err := buildPlanets(ctx, r, false)
			return err
		},
	})
	register(recipe{
		Info: Info{
			ID:          "coding-task-4",
			Title:       "Planets in space",
			Description: "Planets with placed coordinates and one liveable target planet.",
			Synthetic:   true,
		},
		build: func(ctx context.Context, r *run) error {
			_, err := buildPlanets(ctx, r, true)
			return err
		},
	})
}

// PlanetDataset is the entity table behind the planet recipes.
type PlanetDataset struct {
	Balance synth.BalanceResult
	Target  string
}

// GeneratePlanets builds the planet table on src. With placed set, every planet gets
// coordinates within p.DistanceConstraint of an earlier planet (or the origin) and a
// liveable planet is picked as the target.
func GeneratePlanets(src *synth.Source, p Params, placed bool) (PlanetDataset, error) {
	p = p.withDefaults()
	res, err := synth.Balance(src, p.NumSamples, synth.BalanceOptions{QuotaAttempts: p.QuotaAttempts})
	if err != nil {
		return PlanetDataset{}, err
	}
	ds := PlanetDataset{Balance: res}
	if !placed {
		return ds, nil
	}
	placement, err := synth.Place(src, len(res.Entities), p.DistanceConstraint, p.PlacementRetries)
	if err != nil {
		return PlanetDataset{}, err
	}
	var liveable []string
	for i := range res.Entities {
		pt := placement.Points[i]
		res.Entities[i].Coords = &pt
		if res.Entities[i].Liveable {
			liveable = append(liveable, res.Entities[i].Name)
		}
	}
	if len(liveable) == 0 {
		return PlanetDataset{}, fmt.Errorf("%d planets: %w", len(res.Entities), ErrNoLiveable)
	}
	ds.Target = liveable[src.Intn(len(liveable))]
	return ds, nil
}

func buildPlanets(ctx context.Context, r *run, placed bool) (PlanetDataset, error) {
	if err := ctx.Err(); err != nil {
		return PlanetDataset{}, err
	}
	ds, err := GeneratePlanets(r.src, r.params, placed)
	if err != nil {
		return PlanetDataset{}, err
	}
	res := ds.Balance
	if res.Shortfall() > 0 || !res.QuotaMet() {
		r.log.Warn("planet dataset short",
			slog.Int("requested", res.Requested),
			slog.Int("rows", len(res.Entities)),
			slog.Int("liveable", res.Liveable),
			slog.Int("quota", res.Quota))
	}

	header := planetHeader
	if placed {
		header = append(append([]string(nil), planetHeader...), "x", "y", "z")
	}
	rows := make([][]string, len(res.Entities))
	for i, e := range res.Entities {
		rows[i] = planetRow(e, placed)
	}
	r.dataset = filepath.Join(r.dir, r.id+".csv")
	digest, err := writeCSV(r.dataset, header, rows)
	if err != nil {
		return PlanetDataset{}, err
	}
	r.digest = digest
	r.rows = len(rows)
	r.shortfall = res.Shortfall()
	r.target = ds.Target
	return ds, nil
}

func planetRow(e synth.Entity, placed bool) []string {
	live := "No"
	if e.Liveable {
		live = "Yes"
	}
	row := []string{
		formatRounded(e.Rock, 3),
		formatRounded(e.Water, 3),
		formatRounded(e.Air, 3),
		formatRounded(e.Fire, 3),
		formatRounded(e.Ether, 4),
		formatRounded(e.Liveability, 3),
		live,
		e.Name,
	}
	if placed && e.Coords != nil {
		row = append(row, formatFloat(e.Coords.X), formatFloat(e.Coords.Y), formatFloat(e.Coords.Z))
	}
	return row
}
