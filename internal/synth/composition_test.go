package synth_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgen/internal/synth"
)

func TestDrawEntityInvariants(t *testing.T) {
	src := synth.NewSource(1729)
	liveable := 0
	for i := 0; i < 5000; i++ {
		e := synth.DrawEntity(src)
		require.InDelta(t, 1.0, e.Sum(), 1e-6)
		for _, v := range []float64{e.Rock, e.Water, e.Air, e.Fire, e.Ether} {
			require.GreaterOrEqual(t, v, 0.0)
		}
		require.GreaterOrEqual(t, e.Ether, 0.001)
		require.LessOrEqual(t, e.Ether, 0.05)
		require.GreaterOrEqual(t, e.Liveability, 0.0)
		require.LessOrEqual(t, e.Liveability, 1.0)
		require.Equal(t, e.Liveability > synth.LiveableThreshold, e.Liveable)
		if e.Liveable {
			liveable++
		}
	}
	assert.Positive(t, liveable)
	assert.Less(t, liveable, 5000)
}

func TestLiveabilityShape(t *testing.T) {
	ideal := synth.Composition{Rock: 0.3, Water: 0.4, Air: 0.25, Fire: 0, Ether: 0.05}
	assert.InDelta(t, 0.35+0.3+0.05+0.1*math.Sqrt(0.05), synth.Liveability(ideal), 1e-12)

	fiery := synth.Composition{Rock: 0.1, Water: 0.05, Air: 0.05, Fire: 0.799, Ether: 0.001}
	assert.Less(t, synth.Liveability(fiery), synth.LiveableThreshold)
	assert.GreaterOrEqual(t, synth.Liveability(fiery), 0.0)
}

func TestDrawEntityDeterministic(t *testing.T) {
	a, b := synth.NewSource(5), synth.NewSource(5)
	for i := 0; i < 100; i++ {
		require.Equal(t, synth.DrawEntity(a), synth.DrawEntity(b))
	}
}
