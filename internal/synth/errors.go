package synth

import "errors"

// ErrInvalidParam reports a parameter outside its documented domain
// (empty label set, inverted range, non-positive count or budget).
var ErrInvalidParam = errors.New("synth: invalid parameter")

// ErrClusterExhausted reports that SampleClusters used its whole attempt budget
// without accepting k separated clusters.
var ErrClusterExhausted = errors.New("synth: cluster attempts exhausted")

// ErrConstraintExhausted reports that Place could not accept the requested number of
// points within its retry budget. No partial point set is returned with it.
var ErrConstraintExhausted = errors.New("synth: constraint retries exhausted")
