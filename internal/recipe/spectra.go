package recipe

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"taskgen/internal/synth"
)

// SpectraChannels are the three channels of the spectra dataset, in column order.
var SpectraChannels = []synth.ChannelSpec{
	{
		Name:   "lum_data",
		Labels: []string{"Violet", "Indigo", "Blue", "Green", "Yellow", "Orange", "Red"},
		Range:  synth.ValueRange{Min: -750, Max: 750},
	},
	{
		Name:   "xray_data",
		Labels: []string{"X1", "X2", "X3", "X4", "X5", "X6", "X7"},
		Range:  synth.ValueRange{Min: -100, Max: 100},
	},
	{
		Name:   "gamma_data",
		Labels: []string{"G1", "G2", "G3", "G4", "G5", "G6", "G7"},
		Range:  synth.ValueRange{Min: -10, Max: 10},
	},
}

func init() {
	register(recipe{
		Info: Info{
			ID:          "coding-task-2",
			Title:       "Spectra",
			Description: "Three multi-modal channels (luminescence, x-ray, gamma) joined column-wise.",
			Synthetic:   true,
		},
		build: buildSpectra,
	})
}

// GenerateSpectra generates every channel of SpectraChannels with n samples. Each channel
// draws from its own fork of src, so channels run concurrently without changing output.
func GenerateSpectra(ctx context.Context, src *synth.Source, n int, opts synth.ClusterOptions) ([]synth.Channel, error) {
	channels := make([]synth.Channel, len(SpectraChannels))
	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range SpectraChannels {
		child := src.Fork(spec.Name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ch, err := synth.GenerateChannel(child, spec, n, opts)
			if err != nil {
				return err
			}
			channels[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return channels, nil
}

func buildSpectra(ctx context.Context, r *run) error {
	n := r.params.NumSamples
	channels, err := GenerateSpectra(ctx, r.src, n, synth.ClusterOptions{MaxAttempts: r.params.ClusterAttempts})
	if err != nil {
		return err
	}
	header := make([]string, len(channels))
	for i, ch := range channels {
		header[i] = ch.Name
	}
	rows := make([][]string, n)
	for row := range rows {
		rows[row] = make([]string, len(channels))
		for col, ch := range channels {
			rows[row][col] = formatFloat(ch.Samples[row].Value)
		}
	}
	r.dataset = filepath.Join(r.dir, r.id+".csv")
	digest, err := writeCSV(r.dataset, header, rows)
	if err != nil {
		return err
	}
	r.digest = digest
	r.rows = n
	for _, ch := range channels {
		r.log.Debug("channel generated", "channel", ch.Name, "clusters", len(ch.Clusters))
	}
	return nil
}
