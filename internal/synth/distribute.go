package synth

import "fmt"

// Distribute splits n samples across labels. Every label receives n/len(labels);
// the remainder goes one each to the first labels of a seeded shuffle, so any two
// counts differ by at most one and the counts sum to n.
func Distribute(src *Source, n int, labels []string) (map[string]int, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("Distribute: no labels: %w", ErrInvalidParam)
	}
	if n < 0 {
		return nil, fmt.Errorf("Distribute: n=%d < 0: %w", n, ErrInvalidParam)
	}
	order := append([]string(nil), labels...)
	src.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	base, rem := n/len(order), n%len(order)
	counts := make(map[string]int, len(order))
	for i, label := range order {
		if _, dup := counts[label]; dup {
			return nil, fmt.Errorf("Distribute: duplicate label %q: %w", label, ErrInvalidParam)
		}
		counts[label] = base
		if i < rem {
			counts[label]++
		}
	}
	return counts, nil
}
