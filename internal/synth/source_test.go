package synth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgen/internal/synth"
)

func TestSourceSameSeedSameSequence(t *testing.T) {
	a, b := synth.NewSource(1729), synth.NewSource(1729)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.Normal(1, 2), b.Normal(1, 2))
		require.Equal(t, a.Intn(17), b.Intn(17))
	}
	assert.Equal(t, int64(1729), a.Seed())
}

func TestSourceForkIgnoresParentPosition(t *testing.T) {
	fresh := synth.NewSource(7)
	used := synth.NewSource(7)
	for i := 0; i < 50; i++ {
		used.Float64()
	}
	x, y := fresh.Fork("gamma"), used.Fork("gamma")
	for i := 0; i < 20; i++ {
		require.Equal(t, x.Float64(), y.Float64())
	}
	assert.NotEqual(t, synth.NewSource(7).Fork("xray").Seed(), synth.NewSource(7).Fork("gamma").Seed())
}

func TestSourceBeta1Bounds(t *testing.T) {
	src := synth.NewSource(3)
	sum := 0.0
	const n = 5000
	for i := 0; i < n; i++ {
		v := src.Beta1(20)
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
		sum += v
	}
	// Beta(1,20) has mean 1/21.
	assert.InDelta(t, 1.0/21, sum/n, 0.01)
}
