package synth

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
)

// Source is the seed context of one generation run. It owns a private generator and
// is not safe for concurrent use; fork it to hand independent streams to goroutines.
type Source struct {
	seed int64
	rng  *rand.Rand
}

// NewSource returns a Source whose whole draw sequence is determined by seed.
func NewSource(seed int64) *Source {
	return &Source{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the Source was built from.
func (s *Source) Seed() int64 { return s.seed }

// Fork derives a child Source named name. The child seed depends only on the parent
// seed and the name, never on how many values the parent has already produced.
func (s *Source) Fork(name string) *Source {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.seed))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(name))
	return NewSource(int64(h.Sum64()))
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 { return s.rng.Float64() }

// Uniform returns a value in [lo, hi). An inverted interval yields a value in (hi, lo].
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// Normal returns a draw from N(mean, sd²). sd == 0 returns mean exactly.
func (s *Source) Normal(mean, sd float64) float64 {
	return mean + sd*s.rng.NormFloat64()
}

// Beta1 returns a draw from Beta(1, b) by inverting its CDF 1-(1-x)^b.
func (s *Source) Beta1(b float64) float64 {
	return 1 - math.Pow(1-s.rng.Float64(), 1/b)
}

// Intn returns a value in [0, n).
func (s *Source) Intn(n int) int { return s.rng.Intn(n) }

// Shuffle permutes n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) { s.rng.Shuffle(n, swap) }
