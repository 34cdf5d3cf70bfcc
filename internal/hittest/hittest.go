// Package hittest answers whether a world point lies on a shape.
package hittest

import (
	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
)

const (
	FreeDrawTolerance = 5.0
	LineTolerance     = 8.0
	TextPadding       = 4.0
)

// IsPointInShape tests p against the shape's hit area. Ellipses use their
// bounding box, not true ellipse containment.
func IsPointInShape(p geom.Point, s document.Shape) bool {
	switch s.Type {
	case document.ShapeFrame, document.ShapeRect, document.ShapeEllipse,
		document.ShapeGenerated, document.ShapeImage:
		return s.Bounds != nil && s.Bounds.Contains(p)
	case document.ShapeFreeDraw:
		return nearPolyline(p, s.Points, FreeDrawTolerance)
	case document.ShapeLine, document.ShapeArrow:
		if s.Segment == nil {
			return false
		}
		return geom.DistanceToSegment(p, s.Segment.Start, s.Segment.End) <= LineTolerance
	case document.ShapeText:
		if s.Text == nil {
			return false
		}
		return document.TextBox(*s.Text).Expand(TextPadding).Contains(p)
	default:
		return false
	}
}

func nearPolyline(p geom.Point, pts []geom.Point, tol float64) bool {
	if len(pts) == 1 {
		return p.Distance(pts[0]) <= tol
	}
	for i := 1; i < len(pts); i++ {
		if geom.DistanceToSegment(p, pts[i-1], pts[i]) <= tol {
			return true
		}
	}
	return false
}

// ShapeAtPoint returns the topmost shape under p. shapes is in paint order,
// so the scan runs from the last element to the first.
func ShapeAtPoint(shapes []document.Shape, p geom.Point) (document.Shape, bool) {
	for i := len(shapes) - 1; i >= 0; i-- {
		if IsPointInShape(p, shapes[i]) {
			return shapes[i], true
		}
	}
	return document.Shape{}, false
}

// ShapesInRect returns the shapes whose bounds intersect r, in paint order.
func ShapesInRect(shapes []document.Shape, r geom.Rect) []document.Shape {
	var out []document.Shape
	for _, s := range shapes {
		if document.Bounds(s).Intersects(r) {
			out = append(out, s)
		}
	}
	return out
}
