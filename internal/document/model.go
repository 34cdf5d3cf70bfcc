package document

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/typeid"
)

var ErrInvalidShape = errors.New("invalid shape")

type ShapeType string

const (
	ShapeFrame     ShapeType = "frame"
	ShapeRect      ShapeType = "rect"
	ShapeEllipse   ShapeType = "ellipse"
	ShapeGenerated ShapeType = "generatedui"
	ShapeFreeDraw  ShapeType = "freedraw"
	ShapeArrow     ShapeType = "arrow"
	ShapeLine      ShapeType = "line"
	ShapeText      ShapeType = "text"
	ShapeImage     ShapeType = "image"
)

// Bounded reports whether shapes of this type are described by an
// (x, y, w, h) box.
func (t ShapeType) Bounded() bool {
	switch t {
	case ShapeFrame, ShapeRect, ShapeEllipse, ShapeGenerated, ShapeImage:
		return true
	default:
		return false
	}
}

// Valid reports whether t is a known shape type.
func (t ShapeType) Valid() bool {
	switch t {
	case ShapeFrame, ShapeRect, ShapeEllipse, ShapeGenerated, ShapeFreeDraw,
		ShapeArrow, ShapeLine, ShapeText, ShapeImage:
		return true
	default:
		return false
	}
}

type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Fill        *string `json:"fill,omitempty"`
}

type FrameMeta struct {
	Number int `json:"number"`
}

type Segment struct {
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

type Typography struct {
	FontSize       float64 `json:"fontSize,omitempty"`
	FontFamily     string  `json:"fontFamily,omitempty"`
	FontWeight     string  `json:"fontWeight,omitempty"`
	FontStyle      string  `json:"fontStyle,omitempty"`
	TextAlign      string  `json:"textAlign,omitempty"`
	TextDecoration string  `json:"textDecoration,omitempty"`
	LineHeight     float64 `json:"lineHeight,omitempty"`
	LetterSpacing  float64 `json:"letterSpacing,omitempty"`
	TextTransform  string  `json:"textTransform,omitempty"`
}

type TextBlock struct {
	Position   geom.Point `json:"position"`
	Content    string     `json:"content"`
	Typography Typography `json:"typography"`
}

// ImageData is an optional embedded image payload of an image reference.
type ImageData struct {
	MIME   string `json:"mime,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// GeneratedContent is the body of a generated-content block produced by an
// external generation collaborator from a frame.
type GeneratedContent struct {
	Markup        string `json:"markup"`
	SourceFrameID string `json:"sourceFrameId,omitempty"`
}

// Shape is a tagged union. Type is the discriminant; exactly the payload
// fields belonging to that type are populated:
//
//	frame                      Bounds, Frame
//	rect, ellipse              Bounds
//	generatedui                Bounds, Generated
//	image                      Bounds, Image (optional)
//	freedraw                   Points
//	line, arrow                Segment
//	text                       Text
type Shape struct {
	ID    string    `json:"id"`
	Type  ShapeType `json:"type"`
	Style Style     `json:"style"`

	Bounds    *geom.Rect        `json:"bounds,omitempty"`
	Frame     *FrameMeta        `json:"frame,omitempty"`
	Points    []geom.Point      `json:"points,omitempty"`
	Segment   *Segment          `json:"segment,omitempty"`
	Text      *TextBlock        `json:"text,omitempty"`
	Image     *ImageData        `json:"image,omitempty"`
	Generated *GeneratedContent `json:"generated,omitempty"`
}

// DefaultStyle is the stroke applied to shapes drawn with the pointer.
func DefaultStyle() Style {
	return Style{Stroke: "#ffffff", StrokeWidth: 2}
}

func DefaultTypography() Typography {
	return Typography{
		FontSize:   16,
		FontFamily: "Inter, sans-serif",
		FontWeight: "normal",
		FontStyle:  "normal",
		TextAlign:  "left",
		LineHeight: 1.2,
	}
}

func newBounded(t ShapeType, bounds geom.Rect, style Style) Shape {
	b := bounds
	return Shape{ID: typeid.NewShapeID(), Type: t, Style: style, Bounds: &b}
}

// NewFrame returns a frame; the store stamps its display number on add.
func NewFrame(bounds geom.Rect, style Style) Shape {
	s := newBounded(ShapeFrame, bounds, style)
	s.Frame = &FrameMeta{}
	return s
}

func NewRect(bounds geom.Rect, style Style) Shape {
	return newBounded(ShapeRect, bounds, style)
}

func NewEllipse(bounds geom.Rect, style Style) Shape {
	return newBounded(ShapeEllipse, bounds, style)
}

func NewGenerated(bounds geom.Rect, markup, sourceFrameID string) Shape {
	s := newBounded(ShapeGenerated, bounds, Style{})
	s.Generated = &GeneratedContent{Markup: markup, SourceFrameID: sourceFrameID}
	return s
}

func NewImage(bounds geom.Rect, img *ImageData) Shape {
	s := newBounded(ShapeImage, bounds, Style{})
	if img != nil {
		cp := img.clone()
		s.Image = &cp
	}
	return s
}

func NewFreeDraw(points []geom.Point, style Style) Shape {
	return Shape{
		ID:     typeid.NewShapeID(),
		Type:   ShapeFreeDraw,
		Style:  style,
		Points: append([]geom.Point(nil), points...),
	}
}

func NewLine(start, end geom.Point, style Style) Shape {
	return Shape{ID: typeid.NewShapeID(), Type: ShapeLine, Style: style, Segment: &Segment{Start: start, End: end}}
}

func NewArrow(start, end geom.Point, style Style) Shape {
	return Shape{ID: typeid.NewShapeID(), Type: ShapeArrow, Style: style, Segment: &Segment{Start: start, End: end}}
}

func NewText(pos geom.Point, content string, typo Typography, style Style) Shape {
	return Shape{
		ID:    typeid.NewShapeID(),
		Type:  ShapeText,
		Style: style,
		Text:  &TextBlock{Position: pos, Content: content, Typography: typo},
	}
}

// Validate checks that the discriminant matches the populated payload.
func Validate(s Shape) error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidShape)
	}

	switch s.Type {
	case ShapeFrame:
		if s.Frame == nil {
			return fmt.Errorf("%w: frame %s has no frame metadata", ErrInvalidShape, s.ID)
		}
		return validateBounds(s)
	case ShapeRect, ShapeEllipse, ShapeImage:
		return validateBounds(s)
	case ShapeGenerated:
		if s.Generated == nil {
			return fmt.Errorf("%w: generated block %s has no content", ErrInvalidShape, s.ID)
		}
		return validateBounds(s)
	case ShapeFreeDraw:
		if len(s.Points) < 2 {
			return fmt.Errorf("%w: free-draw %s has %d points", ErrInvalidShape, s.ID, len(s.Points))
		}
		return nil
	case ShapeLine, ShapeArrow:
		if s.Segment == nil {
			return fmt.Errorf("%w: %s %s has no segment", ErrInvalidShape, s.Type, s.ID)
		}
		return nil
	case ShapeText:
		if s.Text == nil {
			return fmt.Errorf("%w: text %s has no text block", ErrInvalidShape, s.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidShape, s.Type)
	}
}

func validateBounds(s Shape) error {
	if s.Bounds == nil {
		return fmt.Errorf("%w: %s %s has no bounds", ErrInvalidShape, s.Type, s.ID)
	}
	if s.Bounds.Width < 0 || s.Bounds.Height < 0 {
		return fmt.Errorf("%w: %s %s has negative size", ErrInvalidShape, s.Type, s.ID)
	}
	return nil
}

// TextBox returns the approximate box of a text block: width is
// max(len·0.6·fontSize, 100), height is 1.2·fontSize.
func TextBox(t TextBlock) geom.Rect {
	fs := t.Typography.FontSize
	if fs <= 0 {
		fs = DefaultTypography().FontSize
	}
	w := max(float64(utf8.RuneCountInString(t.Content))*0.6*fs, 100)
	return geom.Rect{X: t.Position.X, Y: t.Position.Y, Width: w, Height: 1.2 * fs}
}

// Bounds returns the world-space bounds of a shape.
func Bounds(s Shape) geom.Rect {
	switch s.Type {
	case ShapeFrame, ShapeRect, ShapeEllipse, ShapeGenerated, ShapeImage:
		if s.Bounds == nil {
			return geom.Rect{}
		}
		return *s.Bounds
	case ShapeFreeDraw:
		b, _ := geom.BoundsOf(s.Points)
		return b
	case ShapeLine, ShapeArrow:
		if s.Segment == nil {
			return geom.Rect{}
		}
		return geom.Normalize(s.Segment.Start, s.Segment.End)
	case ShapeText:
		if s.Text == nil {
			return geom.Rect{}
		}
		return TextBox(*s.Text)
	default:
		return geom.Rect{}
	}
}

// Clone returns a deep copy of the shape. Nil payloads stay nil.
func (s Shape) Clone() Shape {
	out := s
	if s.Style.Fill != nil {
		f := *s.Style.Fill
		out.Style.Fill = &f
	}
	if s.Bounds != nil {
		b := *s.Bounds
		out.Bounds = &b
	}
	if s.Frame != nil {
		f := *s.Frame
		out.Frame = &f
	}
	if s.Points != nil {
		out.Points = append(make([]geom.Point, 0, len(s.Points)), s.Points...)
	}
	if s.Segment != nil {
		seg := *s.Segment
		out.Segment = &seg
	}
	if s.Text != nil {
		t := *s.Text
		out.Text = &t
	}
	if s.Image != nil {
		img := s.Image.clone()
		out.Image = &img
	}
	if s.Generated != nil {
		g := *s.Generated
		out.Generated = &g
	}
	return out
}

func (img ImageData) clone() ImageData {
	out := img
	if img.Data != nil {
		out.Data = append(make([]byte, 0, len(img.Data)), img.Data...)
	}
	return out
}
