package geom

import "math"

// Point is a 2D coordinate. Whether it is in world or screen space depends on
// the caller; shape geometry is always stored in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// DistanceToSegment returns the distance from p to the segment a-b.
// The projection parameter is clamped to [0, 1]; a zero-length segment
// degrades to the distance between p and a.
func DistanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return p.Distance(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = max(0, min(1, t))

	proj := Point{X: a.X + t*dx, Y: a.Y + t*dy}
	return p.Distance(proj)
}

// Translate returns a copy of points shifted by delta.
func Translate(points []Point, delta Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Add(delta)
	}
	return out
}
