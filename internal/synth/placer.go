package synth

import (
	"fmt"
	"math"
)

const (
	methodPlace = "Place"

	// gridScale is the inverse of the coordinate precision (3 decimals).
	gridScale = 1000.0

	// DefaultPlacementRetries is the retry budget used by the task recipes.
	DefaultPlacementRetries = 10000
)

// Point is a coordinate on the 0.001 grid.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Origin is the implicit first anchor of every placement.
var Origin = Point{}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

type gridKey [3]int64

func (p Point) key() gridKey {
	return gridKey{
		int64(math.Round(p.X * gridScale)),
		int64(math.Round(p.Y * gridScale)),
		int64(math.Round(p.Z * gridScale)),
	}
}

func fromKey(k gridKey) Point {
	return Point{X: float64(k[0]) / gridScale, Y: float64(k[1]) / gridScale, Z: float64(k[2]) / gridScale}
}

// Placement is the result of Place. Anchors[i] is the accepted point Points[i] was
// offset from; it is either Origin or an earlier entry of Points.
type Placement struct {
	Points  []Point
	Anchors []Point
}

// Place grows a set of n unique grid points starting from Origin. Each attempt picks a
// uniformly random accepted point as anchor and offsets every axis by a value in
// [-L, L], L = distance/√3, truncated toward zero onto the grid, so the new point is
// never farther than distance from its anchor. Duplicates are discarded.
//
// After maxRetries attempts without reaching n points the error wraps
// ErrConstraintExhausted and no points are returned.
func Place(src *Source, n int, distance float64, maxRetries int) (Placement, error) {
	if n < 0 {
		return Placement{}, fmt.Errorf("%s: n=%d < 0: %w", methodPlace, n, ErrInvalidParam)
	}
	if !(distance > 0) || math.IsInf(distance, 0) {
		return Placement{}, fmt.Errorf("%s: distance=%g must be positive: %w", methodPlace, distance, ErrInvalidParam)
	}
	if maxRetries < 0 {
		return Placement{}, fmt.Errorf("%s: maxRetries=%d: %w", methodPlace, maxRetries, ErrInvalidParam)
	}

	limit := distance / math.Sqrt(3)
	accepted := make([]gridKey, 1, n+1)
	accepted[0] = Origin.key()
	seen := map[gridKey]struct{}{accepted[0]: {}}
	out := Placement{Points: make([]Point, 0, n), Anchors: make([]Point, 0, n)}

	for attempt := 0; len(out.Points) < n && attempt < maxRetries; attempt++ {
		anchor := accepted[src.Intn(len(accepted))]
		var next gridKey
		for axis := range next {
			next[axis] = anchor[axis] + gridOffset(src.Uniform(-limit, limit))
		}
		if _, dup := seen[next]; dup {
			continue
		}
		seen[next] = struct{}{}
		accepted = append(accepted, next)
		out.Points = append(out.Points, fromKey(next))
		out.Anchors = append(out.Anchors, fromKey(anchor))
	}
	if len(out.Points) < n {
		return Placement{}, fmt.Errorf("%s: placed %d of %d points in %d retries (distance %g): %w",
			methodPlace, len(out.Points), n, maxRetries, distance, ErrConstraintExhausted)
	}
	return out, nil
}

// gridOffset converts an offset to whole grid steps, truncating toward zero so the
// magnitude never grows.
func gridOffset(v float64) int64 {
	return int64(math.Trunc(v * gridScale))
}
