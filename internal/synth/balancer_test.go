package synth_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgen/internal/synth"
)

func TestQuota(t *testing.T) {
	cases := map[int]int{1: 1, 10: 1, 29: 1, 30: 2, 50: 3, 100: 5, 10000: 500}
	for n, want := range cases {
		assert.Equal(t, want, synth.Quota(n), "n=%d", n)
	}
}

func countLiveable(es []synth.Entity) int {
	n := 0
	for _, e := range es {
		if e.Liveable {
			n++
		}
	}
	return n
}

func TestBalanceQuotaScenario(t *testing.T) {
	res, err := synth.Balance(synth.NewSource(42), 50, synth.BalanceOptions{})
	require.NoError(t, err)
	live := countLiveable(res.Entities)
	assert.Equal(t, live, res.Liveable)
	if len(res.Entities) == 50 {
		assert.GreaterOrEqual(t, live, 3)
		assert.True(t, res.QuotaMet())
		assert.Zero(t, res.Shortfall())
	}
	for i, e := range res.Entities {
		assert.Equal(t, fmt.Sprintf("Planet_%d", i+1), e.Name)
	}
}

func TestBalanceQuotaPropertyAcrossSeeds(t *testing.T) {
	short := 0
	for seed := int64(0); seed < 200; seed++ {
		for _, n := range []int{1, 20} {
			res, err := synth.Balance(synth.NewSource(seed), n, synth.BalanceOptions{QuotaAttempts: 1})
			require.NoError(t, err)
			rows := len(res.Entities)
			require.LessOrEqual(t, rows, n)
			if rows == n {
				require.GreaterOrEqual(t, countLiveable(res.Entities), synth.Quota(n), "seed=%d n=%d", seed, n)
			} else {
				short++
				require.Equal(t, n-rows, res.Shortfall())
			}
		}
	}
	// a single quota draw and a 2-draw fill budget leave n=1 short on many seeds
	assert.Positive(t, short)
}

func TestBalanceDeterministic(t *testing.T) {
	a, err := synth.Balance(synth.NewSource(1729), 100, synth.BalanceOptions{})
	require.NoError(t, err)
	b, err := synth.Balance(synth.NewSource(1729), 100, synth.BalanceOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a.Entities, 100)
}

func TestBalanceNamePrefixAndInvalid(t *testing.T) {
	res, err := synth.Balance(synth.NewSource(3), 5, synth.BalanceOptions{NamePrefix: "World-"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entities)
	assert.Equal(t, "World-1", res.Entities[0].Name)

	_, err = synth.Balance(synth.NewSource(3), 0, synth.BalanceOptions{})
	assert.ErrorIs(t, err, synth.ErrInvalidParam)
}
