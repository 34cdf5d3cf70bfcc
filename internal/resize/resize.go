// Package resize computes new shape geometry from a corner-handle drag.
package resize

import (
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
)

const (
	// MinSize is the smallest width or height a resize can produce.
	MinSize = 10.0
	// Pad separates the handle box of point-based shapes from their points.
	Pad = 5.0
)

type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

var cornerNames = [...]string{
	TopLeft:     "top-left",
	TopRight:    "top-right",
	BottomLeft:  "bottom-left",
	BottomRight: "bottom-right",
}

func (c Corner) String() string {
	if c < 0 || int(c) >= len(cornerNames) {
		return fmt.Sprintf("corner(%d)", int(c))
	}
	return cornerNames[c]
}

func ParseCorner(s string) (Corner, error) {
	for i, n := range cornerNames {
		if n == s {
			return Corner(i), nil
		}
	}
	return BottomRight, fmt.Errorf("unknown corner %q", s)
}

func (c Corner) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Corner) UnmarshalText(b []byte) error {
	v, err := ParseCorner(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Gesture is a resize in progress. Initial is the handle box at gesture
// start and Pointer the live pointer in world space.
type Gesture struct {
	ShapeID string
	Corner  Corner
	Initial geom.Rect
	Pointer geom.Point
}

func (g Gesture) Bounds() geom.Rect {
	return Bounds(g.Corner, g.Initial, g.Pointer)
}

// Bounds returns the box produced by dragging corner of initial to pointer.
// The opposite corner stays fixed and each side is at least MinSize, growing
// away from the fixed corner when clamped.
func Bounds(corner Corner, initial geom.Rect, pointer geom.Point) geom.Rect {
	left, top := initial.X, initial.Y
	right, bottom := initial.Right(), initial.Bottom()

	var out geom.Rect
	switch corner {
	case TopLeft:
		out.Width = max(right-pointer.X, MinSize)
		out.Height = max(bottom-pointer.Y, MinSize)
		out.X = right - out.Width
		out.Y = bottom - out.Height
	case TopRight:
		out.Width = max(pointer.X-left, MinSize)
		out.Height = max(bottom-pointer.Y, MinSize)
		out.X = left
		out.Y = bottom - out.Height
	case BottomLeft:
		out.Width = max(right-pointer.X, MinSize)
		out.Height = max(pointer.Y-top, MinSize)
		out.X = right - out.Width
		out.Y = top
	default:
		out.Width = max(pointer.X-left, MinSize)
		out.Height = max(pointer.Y-top, MinSize)
		out.X = left
		out.Y = top
	}
	return out
}

// HandleBounds is the box presented to resize handles. Point-based shapes
// get their true point bounds padded by Pad.
func HandleBounds(s document.Shape) geom.Rect {
	switch s.Type {
	case document.ShapeFreeDraw, document.ShapeLine, document.ShapeArrow:
		return document.Bounds(s).Expand(Pad)
	default:
		return document.Bounds(s)
	}
}

// Resizable reports whether Apply can produce a patch for s.
func Resizable(s document.Shape) bool {
	return s.Type.Bounded() || s.Type == document.ShapeFreeDraw ||
		s.Type == document.ShapeLine || s.Type == document.ShapeArrow
}

// Apply returns the patch that fits s into bounds. Text is not resizable.
//
// Point-based shapes are remapped from their true point box into bounds
// shrunk by Pad, with independent x and y scale. An axis on which the old
// box has zero extent places every point at the centre of the new box on
// that axis, so horizontal and vertical lines stay centred.
func Apply(s document.Shape, bounds geom.Rect) (document.Patch, bool) {
	switch s.Type {
	case document.ShapeFrame, document.ShapeRect, document.ShapeEllipse,
		document.ShapeGenerated, document.ShapeImage:
		b := bounds
		return document.Patch{Bounds: &b}, true

	case document.ShapeFreeDraw:
		old, ok := geom.BoundsOf(s.Points)
		if !ok {
			return document.Patch{}, false
		}
		m := newMapper(old, bounds.Expand(-Pad))
		pts := make([]geom.Point, len(s.Points))
		for i, p := range s.Points {
			pts[i] = m.apply(p)
		}
		return document.Patch{Points: pts}, true

	case document.ShapeLine, document.ShapeArrow:
		if s.Segment == nil {
			return document.Patch{}, false
		}
		m := newMapper(geom.Normalize(s.Segment.Start, s.Segment.End), bounds.Expand(-Pad))
		seg := document.Segment{Start: m.apply(s.Segment.Start), End: m.apply(s.Segment.End)}
		return document.Patch{Segment: &seg}, true

	default:
		return document.Patch{}, false
	}
}

type mapper struct {
	from, to geom.Rect
}

func newMapper(from, to geom.Rect) mapper {
	return mapper{from: from, to: to}
}

func (m mapper) apply(p geom.Point) geom.Point {
	return geom.Point{
		X: mapAxis(p.X, m.from.X, m.from.Width, m.to.X, m.to.Width),
		Y: mapAxis(p.Y, m.from.Y, m.from.Height, m.to.Y, m.to.Height),
	}
}

func mapAxis(v, fromMin, fromExt, toMin, toExt float64) float64 {
	if fromExt == 0 {
		return toMin + toExt/2
	}
	return toMin + (v-fromMin)*(toExt/fromExt)
}
