package document

import (
	"log/slog"

	"github.com/jinzhu/copier"

	"github.com/inamate/canvas/internal/geom"
)

// Patch is a partial update for a shape. Nil fields are left untouched.
// Style and Typography are merged field by field: zero values mean
// "unchanged", so resetting a field to its zero value goes through Clear
// (or ClearFill for the fill). Fields that do not belong to the target
// shape's type are ignored, so a patch can never change a shape's type.
type Patch struct {
	Style     *Style   `json:"style,omitempty"`
	ClearFill bool     `json:"clearFill,omitempty"`
	// Clear names style and typography fields, by their JSON names, to reset
	// after the merge. Unknown names are ignored.
	Clear     []string `json:"clear,omitempty"`

	Bounds  *geom.Rect   `json:"bounds,omitempty"`
	Points  []geom.Point `json:"points,omitempty"`
	Segment *Segment     `json:"segment,omitempty"`

	Position   *geom.Point `json:"position,omitempty"`
	Content    *string     `json:"content,omitempty"`
	Typography *Typography `json:"typography,omitempty"`

	Image  *ImageData `json:"image,omitempty"`
	Markup *string    `json:"markup,omitempty"`
}

// Apply merges p onto s and returns the result. s itself is not modified.
func Apply(s Shape, p Patch) Shape {
	out := s.Clone()

	if p.Style != nil {
		mergeNonZero(&out.Style, p.Style)
		if p.Style.Fill != nil {
			f := *p.Style.Fill
			out.Style.Fill = &f
		}
	}
	if p.ClearFill {
		out.Style.Fill = nil
	}
	for _, field := range p.Clear {
		clearField(&out, field)
	}

	switch out.Type {
	case ShapeFrame, ShapeRect, ShapeEllipse:
		applyBounds(&out, p)
	case ShapeGenerated:
		applyBounds(&out, p)
		if p.Markup != nil && out.Generated != nil {
			out.Generated.Markup = *p.Markup
		}
	case ShapeImage:
		applyBounds(&out, p)
		if p.Image != nil {
			img := p.Image.clone()
			out.Image = &img
		}
	case ShapeFreeDraw:
		if len(p.Points) >= 2 {
			out.Points = append(make([]geom.Point, 0, len(p.Points)), p.Points...)
		}
	case ShapeLine, ShapeArrow:
		if p.Segment != nil {
			seg := *p.Segment
			out.Segment = &seg
		}
	case ShapeText:
		if out.Text == nil {
			break
		}
		if p.Position != nil {
			out.Text.Position = *p.Position
		}
		if p.Content != nil {
			out.Text.Content = *p.Content
		}
		if p.Typography != nil {
			mergeNonZero(&out.Text.Typography, p.Typography)
		}
	}

	return out
}

func clearField(s *Shape, field string) {
	switch field {
	case "stroke":
		s.Style.Stroke = ""
	case "strokeWidth":
		s.Style.StrokeWidth = 0
	case "fill":
		s.Style.Fill = nil
	}
	if s.Text == nil {
		return
	}
	t := &s.Text.Typography
	switch field {
	case "textDecoration":
		t.TextDecoration = ""
	case "letterSpacing":
		t.LetterSpacing = 0
	case "textTransform":
		t.TextTransform = ""
	case "fontStyle":
		t.FontStyle = ""
	}
}

func applyBounds(s *Shape, p Patch) {
	if p.Bounds == nil {
		return
	}
	b := *p.Bounds
	b.Width = max(b.Width, 0)
	b.Height = max(b.Height, 0)
	s.Bounds = &b
}

// mergeNonZero copies every non-zero field of src onto dst.
func mergeNonZero(dst, src any) {
	if err := copier.CopyWithOption(dst, src, copier.Option{IgnoreEmpty: true}); err != nil {
		slog.Warn("merge patch", "error", err)
	}
}

// TranslatePatch returns the patch that shifts s by delta. Only positional
// fields are set.
func TranslatePatch(s Shape, delta geom.Point) Patch {
	switch s.Type {
	case ShapeFrame, ShapeRect, ShapeEllipse, ShapeGenerated, ShapeImage:
		if s.Bounds == nil {
			return Patch{}
		}
		b := s.Bounds.Translate(delta)
		return Patch{Bounds: &b}
	case ShapeFreeDraw:
		return Patch{Points: geom.Translate(s.Points, delta)}
	case ShapeLine, ShapeArrow:
		if s.Segment == nil {
			return Patch{}
		}
		return Patch{Segment: &Segment{Start: s.Segment.Start.Add(delta), End: s.Segment.End.Add(delta)}}
	case ShapeText:
		if s.Text == nil {
			return Patch{}
		}
		pos := s.Text.Position.Add(delta)
		return Patch{Position: &pos}
	default:
		return Patch{}
	}
}
