package synth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgen/internal/synth"
)

func TestPlaceRespectsDistanceAndUniqueness(t *testing.T) {
	for _, d := range []float64{0.01, 1, 10, 250} {
		p, err := synth.Place(synth.NewSource(1729), 300, d, synth.DefaultPlacementRetries)
		require.NoError(t, err, "distance %g", d)
		require.Len(t, p.Points, 300)
		require.Len(t, p.Anchors, 300)

		known := map[synth.Point]bool{synth.Origin: true}
		for i, pt := range p.Points {
			assert.False(t, known[pt], "duplicate point %v", pt)
			assert.True(t, known[p.Anchors[i]], "anchor %v not placed before point %d", p.Anchors[i], i)
			assert.LessOrEqual(t, pt.Distance(p.Anchors[i]), d+1e-9)
			known[pt] = true
		}
		assert.NotContains(t, p.Points, synth.Origin)
	}
}

func TestPlaceDeterministic(t *testing.T) {
	a, err := synth.Place(synth.NewSource(7), 100, 10, 1000)
	require.NoError(t, err)
	b, err := synth.Place(synth.NewSource(7), 100, 10, 1000)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlaceExhaustion(t *testing.T) {
	p, err := synth.Place(synth.NewSource(1), 1000, 0.001, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, synth.ErrConstraintExhausted))
	assert.Empty(t, p.Points)
}

func TestPlaceInvalid(t *testing.T) {
	_, err := synth.Place(synth.NewSource(1), 10, 0, 100)
	assert.ErrorIs(t, err, synth.ErrInvalidParam)
	_, err = synth.Place(synth.NewSource(1), -1, 1, 100)
	assert.ErrorIs(t, err, synth.ErrInvalidParam)
	p, err := synth.Place(synth.NewSource(1), 0, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, p.Points)
}
