package synth_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgen/internal/synth"
)

var recipeRanges = []synth.ValueRange{{Min: -750, Max: 750}, {Min: -100, Max: 100}, {Min: -10, Max: 10}}

func assertPairwiseSeparated(t *testing.T, clusters []synth.ClusterParam) {
	t.Helper()
	for i := range clusters {
		for j := i + 1; j < len(clusters); j++ {
			gap := math.Abs(clusters[i].Mean - clusters[j].Mean)
			width := 3 * math.Max(clusters[i].Spread, clusters[j].Spread)
			assert.GreaterOrEqual(t, gap, width, "clusters %d and %d: %+v %+v", i, j, clusters[i], clusters[j])
		}
	}
}

func TestSampleClustersSeparatedAndBounded(t *testing.T) {
	for _, r := range recipeRanges {
		clusters, err := synth.SampleClusters(synth.NewSource(1729), r, 7, synth.ClusterOptions{})
		require.NoError(t, err)
		require.Len(t, clusters, 7)
		for _, c := range clusters {
			assert.GreaterOrEqual(t, c.Mean, r.Min)
			assert.LessOrEqual(t, c.Mean, r.Max)
			assert.Greater(t, c.Spread, 0.3)
			assert.Less(t, c.Spread, 0.6*math.Abs(c.Mean))
		}
		assertPairwiseSeparated(t, clusters)
	}
}

func TestSampleClustersSeparatedAcrossSeeds(t *testing.T) {
	for _, r := range recipeRanges {
		for seed := int64(0); seed < 60; seed++ {
			clusters, err := synth.SampleClusters(synth.NewSource(seed), r, 7, synth.ClusterOptions{})
			require.NoError(t, err, "range %v seed %d", r, seed)
			require.Len(t, clusters, 7)
			assertPairwiseSeparated(t, clusters)
		}
	}
}

func TestSampleClustersCandidateSeparation(t *testing.T) {
	r := synth.ValueRange{Min: -100, Max: 100}
	clusters, err := synth.SampleClusters(synth.NewSource(5), r, 7, synth.ClusterOptions{Separation: synth.SeparateByCandidate})
	require.NoError(t, err)
	require.Len(t, clusters, 7)
	for i, c := range clusters {
		for _, prev := range clusters[:i] {
			assert.GreaterOrEqual(t, math.Abs(c.Mean-prev.Mean), 3*c.Spread)
		}
	}
}

func TestSampleClustersDeterministic(t *testing.T) {
	r := synth.ValueRange{Min: -100, Max: 100}
	a, err := synth.SampleClusters(synth.NewSource(99), r, 5, synth.ClusterOptions{})
	require.NoError(t, err)
	b, err := synth.SampleClusters(synth.NewSource(99), r, 5, synth.ClusterOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSampleClustersErrors(t *testing.T) {
	tests := []struct {
		name string
		r    synth.ValueRange
		k    int
		opts synth.ClusterOptions
		want error
	}{
		{"inverted range", synth.ValueRange{Min: 5, Max: -5}, 3, synth.ClusterOptions{}, synth.ErrInvalidParam},
		{"zero k", synth.ValueRange{Min: -5, Max: 5}, 0, synth.ClusterOptions{}, synth.ErrInvalidParam},
		{"negative budget", synth.ValueRange{Min: -5, Max: 5}, 1, synth.ClusterOptions{MaxAttempts: -1}, synth.ErrInvalidParam},
		// |mean| ≤ 0.2 leaves no room for a spread above 0.3
		{"narrow range", synth.ValueRange{Min: -0.2, Max: 0.2}, 2, synth.ClusterOptions{MaxAttempts: 1000}, synth.ErrClusterExhausted},
		{"too many clusters", synth.ValueRange{Min: 1, Max: 2}, 50, synth.ClusterOptions{MaxAttempts: 500}, synth.ErrClusterExhausted},
		{"no restarts", synth.ValueRange{Min: 1, Max: 2}, 50, synth.ClusterOptions{MaxAttempts: 2000, Stall: -1}, synth.ErrClusterExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := synth.SampleClusters(synth.NewSource(1), tt.r, tt.k, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
