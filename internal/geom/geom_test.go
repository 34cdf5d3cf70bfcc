package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	want := Rect{X: 10, Y: 10, Width: 100, Height: 50}
	assert.Equal(t, want, Normalize(Pt(10, 10), Pt(110, 60)))
	assert.Equal(t, want, Normalize(Pt(110, 60), Pt(10, 10)))
	assert.Equal(t, want, Normalize(Pt(10, 60), Pt(110, 10)))
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	assert.False(t, ok)

	b, ok := BoundsOf([]Point{{5, 5}, {-5, 20}, {10, 0}})
	assert.True(t, ok)
	assert.Equal(t, Rect{X: -5, Y: 0, Width: 15, Height: 20}, b)
}

func TestDistanceToSegment(t *testing.T) {
	a, b := Pt(0, 0), Pt(10, 0)

	assert.InDelta(t, 3, DistanceToSegment(Pt(5, 3), a, b), 1e-9)
	// clamped to endpoints
	assert.InDelta(t, 5, DistanceToSegment(Pt(-3, 4), a, b), 1e-9)
	assert.InDelta(t, 5, DistanceToSegment(Pt(13, 4), a, b), 1e-9)
	// zero-length segment
	assert.InDelta(t, 5, DistanceToSegment(Pt(3, 4), a, a), 1e-9)
}

func TestRectExpand(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 4}
	assert.Equal(t, Rect{X: 5, Y: 5, Width: 30, Height: 14}, r.Expand(5))

	shrunk := r.Expand(-5)
	assert.Equal(t, 15.0, shrunk.X)
	assert.Equal(t, 10.0, shrunk.Width)
	assert.Equal(t, 0.0, shrunk.Height)
	assert.Equal(t, 12.0, shrunk.Y)
}

func TestRectUnionAndIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	c := Rect{X: 50, Y: 50, Width: 1, Height: 1}

	assert.Equal(t, Rect{X: 0, Y: 0, Width: 15, Height: 15}, a.Union(b))
	assert.Equal(t, a, a.Union(Rect{}))
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
	assert.True(t, a.Contains(Pt(10, 10)))
	assert.False(t, a.Contains(Pt(10.01, 5)))
}

func TestMatrixInvert(t *testing.T) {
	m := Translation(30, -12).Multiply(Scaling(2.5, 2.5))
	p := Pt(7, 9)

	q := m.Apply(p)
	assert.InDelta(t, 7*2.5+30, q.X, 1e-9)
	assert.InDelta(t, 9*2.5-12, q.Y, 1e-9)

	back := m.Invert().Apply(q)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.True(t, m.Multiply(m.Invert()).IsIdentity())

	assert.Equal(t, Identity(), Scaling(0, 1).Invert())
}

func TestMatrixApplyRect(t *testing.T) {
	m := Translation(10, 20).Multiply(Scaling(2, 2))
	assert.Equal(t, Rect{X: 12, Y: 24, Width: 20, Height: 10}, m.ApplyRect(Rect{X: 1, Y: 2, Width: 10, Height: 5}))

	flip := Scaling(-1, 1)
	assert.Equal(t, Rect{X: -10, Y: 0, Width: 10, Height: 5}, flip.ApplyRect(Rect{Width: 10, Height: 5}))
}
