package synth

import (
	"fmt"
	"math"
)

const (
	methodBalance = "Balance"

	quotaFraction = 0.05

	// DefaultQuotaAttempts is the draw budget of the quota-filling phase.
	DefaultQuotaAttempts = 3000
)

// BalanceOptions tunes Balance. The zero value uses the defaults.
type BalanceOptions struct {
	// QuotaAttempts bounds the phase that draws only for liveable entities.
	QuotaAttempts int
	// NamePrefix is prepended to the 1-based row number ("Planet_" by default).
	NamePrefix string
}

// BalanceResult is the assembled dataset plus the accounting needed to tell a full
// dataset from a short one.
type BalanceResult struct {
	Entities  []Entity `json:"-"`
	Requested int      `json:"requested"`
	Quota     int      `json:"quota"`
	Liveable  int      `json:"liveable"`
	Draws     int      `json:"draws"`
}

// Shortfall is the number of requested rows that could not be produced.
func (r BalanceResult) Shortfall() int { return r.Requested - len(r.Entities) }

// QuotaMet reports whether the dataset holds at least Quota liveable rows.
func (r BalanceResult) QuotaMet() bool { return r.Liveable >= r.Quota }

// Quota returns max(1, round(0.05·n)).
func Quota(n int) int {
	return max(1, int(math.Round(quotaFraction*float64(n))))
}

// Balance assembles n entities holding at least Quota(n) liveable ones.
//
// The first phase draws up to QuotaAttempts entities and keeps only liveable ones until
// the quota is reached. The second phase draws up to 2n entities and keeps any draw:
// liveable draws go to the liveable pool while it is under quota, everything else to the
// general pool, which never grows past n-quota so a full dataset always meets the quota.
// If the budget runs out first the result is short; this is not an error, callers
// inspect Shortfall and QuotaMet.
//
// The rows are shuffled and named NamePrefix+1 … NamePrefix+len.
func Balance(src *Source, n int, opts BalanceOptions) (BalanceResult, error) {
	if n < 1 {
		return BalanceResult{}, fmt.Errorf("%s: n=%d < 1: %w", methodBalance, n, ErrInvalidParam)
	}
	if opts.QuotaAttempts == 0 {
		opts.QuotaAttempts = DefaultQuotaAttempts
	}
	if opts.QuotaAttempts < 0 {
		return BalanceResult{}, fmt.Errorf("%s: quota attempts=%d: %w", methodBalance, opts.QuotaAttempts, ErrInvalidParam)
	}
	if opts.NamePrefix == "" {
		opts.NamePrefix = "Planet_"
	}

	res := BalanceResult{Requested: n, Quota: Quota(n)}
	liveable := make([]Entity, 0, res.Quota)
	general := make([]Entity, 0, n)

	for budget := opts.QuotaAttempts; len(liveable) < res.Quota && budget > 0; budget-- {
		e := DrawEntity(src)
		res.Draws++
		if e.Liveable {
			liveable = append(liveable, e)
		}
	}

	for budget := 2 * n; len(liveable)+len(general) < n && budget > 0; budget-- {
		e := DrawEntity(src)
		res.Draws++
		switch {
		case e.Liveable && len(liveable) < res.Quota:
			liveable = append(liveable, e)
		case len(general) < n-res.Quota:
			general = append(general, e)
		}
	}

	all := append(liveable, general...)
	src.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	for i := range all {
		all[i].Name = fmt.Sprintf("%s%d", opts.NamePrefix, i+1)
		if all[i].Liveable {
			res.Liveable++
		}
	}
	res.Entities = all
	return res, nil
}
