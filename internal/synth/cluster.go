package synth

import (
	"fmt"
	"math"
)

const (
	methodSampleClusters = "SampleClusters"

	minSpread           = 0.3
	spreadPerMean       = 0.6
	separationInSpreads = 3.0

	// DefaultClusterAttempts bounds SampleClusters when MaxAttempts is 0.
	DefaultClusterAttempts = 100000
	// DefaultClusterStall is the run of consecutive rejections after which SampleClusters
	// discards its accepted clusters and starts over.
	DefaultClusterStall = 500
)

// Separation selects which spread a candidate's distance to accepted means is measured in.
type Separation int

const (
	// SeparateByEither requires |Δmean| ≥ 3·max(candidate spread, accepted spread), so every
	// pair of accepted clusters is apart by three spreads of either one.
	SeparateByEither Separation = iota
	// SeparateByCandidate only measures in the candidate's spread, so a narrow cluster may
	// sit inside three spreads of a wide one accepted earlier.
	SeparateByCandidate
)

// ValueRange is a closed interval of admissible cluster means.
type ValueRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate reports ErrInvalidParam unless Min < Max.
func (r ValueRange) Validate() error {
	if !(r.Min < r.Max) {
		return fmt.Errorf("value range [%g,%g] is empty: %w", r.Min, r.Max, ErrInvalidParam)
	}
	return nil
}

// ClusterParam is one mode of a multi-modal distribution.
type ClusterParam struct {
	Mean   float64 `json:"mean"`
	Spread float64 `json:"spread"`
}

// ClusterOptions tunes SampleClusters. The zero value is the recipe default. Stall is
// the number of consecutive rejections that restarts the sampler from an empty set:
// 0 selects DefaultClusterStall and a negative value never restarts.
type ClusterOptions struct {
	MaxAttempts int
	Stall       int
	Separation  Separation
}

// SampleClusters draws k cluster parameters by rejection: a candidate mean is uniform
// in r and its spread uniform in (0.3, 0.6·|mean|); the pair is accepted when it is
// separated from every accepted mean according to opts.Separation. Candidates whose
// spread interval is empty (|mean| ≤ 0.5) count as failed attempts.
//
// Early wide clusters can leave no room for the rest, so after opts.Stall rejections in
// a row the accepted set is dropped and sampling starts over on the same stream. At most
// opts.MaxAttempts candidates are drawn in total; when they run out first the error
// wraps ErrClusterExhausted.
func SampleClusters(src *Source, r ValueRange, k int, opts ClusterOptions) ([]ClusterParam, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", methodSampleClusters, err)
	}
	if k < 1 {
		return nil, fmt.Errorf("%s: k=%d < 1: %w", methodSampleClusters, k, ErrInvalidParam)
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultClusterAttempts
	}
	if opts.MaxAttempts < 0 {
		return nil, fmt.Errorf("%s: max attempts=%d: %w", methodSampleClusters, opts.MaxAttempts, ErrInvalidParam)
	}
	if opts.Stall == 0 {
		opts.Stall = DefaultClusterStall
	}

	clusters := make([]ClusterParam, 0, k)
	best, rejected, restarts := 0, 0, 0
	for attempt := 0; attempt < opts.MaxAttempts && len(clusters) < k; attempt++ {
		mean := src.Uniform(r.Min, r.Max)
		upper := spreadPerMean * math.Abs(mean)
		spread := src.Uniform(minSpread, upper)
		if upper > minSpread && spread > minSpread && separated(clusters, mean, spread, opts.Separation) {
			clusters = append(clusters, ClusterParam{Mean: mean, Spread: spread})
			best = max(best, len(clusters))
			rejected = 0
			continue
		}
		rejected++
		if opts.Stall > 0 && rejected >= opts.Stall {
			clusters = clusters[:0]
			rejected = 0
			restarts++
		}
	}
	if len(clusters) < k {
		return nil, fmt.Errorf("%s: at most %d of %d clusters in %d attempts (%d restarts): %w",
			methodSampleClusters, best, k, opts.MaxAttempts, restarts, ErrClusterExhausted)
	}
	return clusters, nil
}

func separated(accepted []ClusterParam, mean, spread float64, policy Separation) bool {
	for _, c := range accepted {
		width := spread
		if policy == SeparateByEither {
			width = math.Max(spread, c.Spread)
		}
		if math.Abs(mean-c.Mean) < separationInSpreads*width {
			return false
		}
	}
	return true
}
