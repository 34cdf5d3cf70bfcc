// Package render compiles canvas state into a flat list of draw commands.
// Hosts execute the list on a Canvas2D context; the raster package executes
// it on a software rasterizer.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/resize"
)

// Layers let hosts style previews and overlays differently.
const (
	LayerShape     = "shape"
	LayerDraft     = "draft"
	LayerSelection = "selection"
	LayerLabel     = "label"
)

const (
	SelectionStroke = "#3b82f6"
	LabelColor      = "#a1a1aa"
	LabelFontSize   = 12.0
	ArrowHeadLength = 12.0
)

// DrawCommand represents a single drawing operation for the frontend to execute.
type DrawCommand struct {
	Op          string        `json:"op"`                 // "path", "text" or "image"
	Layer       string        `json:"layer,omitempty"`    // shape, draft, selection, label
	ObjectID    string        `json:"objectId,omitempty"` // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`
	Path        []PathCommand `json:"path,omitempty"`
	Fill        string        `json:"fill,omitempty"`
	Stroke      string        `json:"stroke,omitempty"`
	StrokeWidth float64       `json:"strokeWidth,omitempty"`
	Dash        []float64     `json:"dash,omitempty"`

	// Text ops
	Text       string               `json:"text,omitempty"`
	X          float64              `json:"x,omitempty"`
	Y          float64              `json:"y,omitempty"`
	Typography *document.Typography `json:"typography,omitempty"`

	// Image ops. Width and Height are the destination box in world units.
	Width  float64             `json:"width,omitempty"`
	Height float64             `json:"height,omitempty"`
	Image  *document.ImageData `json:"-"`
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand []any

// Scene is everything a frame needs. Shapes are in paint order.
type Scene struct {
	Shapes    []document.Shape
	Selected  []string
	Draft     *document.Shape
	FreeDraw  []geom.Point
	DrawStyle document.Style
	Transform geom.Matrix2D
	// Labels draws frame captions above frames.
	Labels bool
}

// Compile generates a draw command buffer in painter's order: committed
// shapes, the draft preview, the free-draw buffer and selection outlines.
func Compile(sc Scene) []DrawCommand {
	transform := sc.Transform.ToSlice()
	var commands []DrawCommand

	for _, s := range sc.Shapes {
		commands = appendShape(commands, s, LayerShape, transform)
		if sc.Labels && s.Type == document.ShapeFrame && s.Bounds != nil && s.Frame != nil {
			commands = append(commands, DrawCommand{
				Op:         "text",
				Layer:      LayerLabel,
				ObjectID:   s.ID,
				Transform:  transform,
				Text:       fmt.Sprintf("Frame %d", s.Frame.Number),
				X:          s.Bounds.X,
				Y:          s.Bounds.Y - LabelFontSize*1.5,
				Fill:       LabelColor,
				Typography: &document.Typography{FontSize: LabelFontSize},
			})
		}
	}

	if sc.Draft != nil {
		commands = appendShape(commands, *sc.Draft, LayerDraft, transform)
	}

	if len(sc.FreeDraw) > 1 {
		commands = append(commands, DrawCommand{
			Op:          "path",
			Layer:       LayerDraft,
			Transform:   transform,
			Path:        polylinePath(sc.FreeDraw),
			Stroke:      sc.DrawStyle.Stroke,
			StrokeWidth: sc.DrawStyle.StrokeWidth,
		})
	}

	if len(sc.Selected) > 0 {
		byID := make(map[string]document.Shape, len(sc.Shapes))
		for _, s := range sc.Shapes {
			byID[s.ID] = s
		}
		for _, id := range sc.Selected {
			s, ok := byID[id]
			if !ok {
				continue
			}
			b := resize.HandleBounds(s)
			commands = append(commands, DrawCommand{
				Op:          "path",
				Layer:       LayerSelection,
				ObjectID:    id,
				Transform:   transform,
				Path:        rectPath(b),
				Stroke:      SelectionStroke,
				StrokeWidth: 1,
				Dash:        []float64{4, 4},
			})
		}
	}

	return commands
}

func appendShape(commands []DrawCommand, s document.Shape, layer string, transform []float64) []DrawCommand {
	cmd := DrawCommand{
		Op:          "path",
		Layer:       layer,
		ObjectID:    s.ID,
		Transform:   transform,
		Stroke:      s.Style.Stroke,
		StrokeWidth: s.Style.StrokeWidth,
	}
	if s.Style.Fill != nil {
		cmd.Fill = *s.Style.Fill
	}

	switch s.Type {
	case document.ShapeText:
		if s.Text == nil {
			return commands
		}
		typo := s.Text.Typography
		cmd.Op = "text"
		cmd.Text = s.Text.Content
		cmd.X, cmd.Y = s.Text.Position.X, s.Text.Position.Y
		cmd.Typography = &typo
		cmd.Fill = s.Style.Stroke
		cmd.Stroke = ""
		cmd.StrokeWidth = 0
		return append(commands, cmd)

	case document.ShapeImage:
		if s.Bounds == nil {
			return commands
		}
		// placeholder outline stays visible until the image decodes
		cmd.Path = rectPath(*s.Bounds)
		if cmd.Stroke == "" {
			cmd.Stroke = LabelColor
			cmd.StrokeWidth = 1
		}
		commands = append(commands, cmd)
		if s.Image != nil && len(s.Image.Data) > 0 {
			img := *s.Image
			commands = append(commands, DrawCommand{
				Op:        "image",
				Layer:     layer,
				ObjectID:  s.ID,
				Transform: transform,
				X:         s.Bounds.X,
				Y:         s.Bounds.Y,
				Width:     s.Bounds.Width,
				Height:    s.Bounds.Height,
				Image:     &img,
			})
		}
		return commands
	}

	cmd.Path = ShapePath(s)
	if len(cmd.Path) == 0 {
		return commands
	}
	return append(commands, cmd)
}

// ShapePath returns the outline of a shape in world coordinates.
func ShapePath(s document.Shape) []PathCommand {
	switch s.Type {
	case document.ShapeFrame, document.ShapeRect, document.ShapeGenerated, document.ShapeImage:
		if s.Bounds == nil {
			return nil
		}
		return rectPath(*s.Bounds)
	case document.ShapeEllipse:
		if s.Bounds == nil {
			return nil
		}
		return ellipsePath(*s.Bounds)
	case document.ShapeFreeDraw:
		return polylinePath(s.Points)
	case document.ShapeLine:
		if s.Segment == nil {
			return nil
		}
		return polylinePath([]geom.Point{s.Segment.Start, s.Segment.End})
	case document.ShapeArrow:
		if s.Segment == nil {
			return nil
		}
		return arrowPath(s.Segment.Start, s.Segment.End)
	default:
		return nil
	}
}

func rectPath(r geom.Rect) []PathCommand {
	return []PathCommand{
		{"M", r.X, r.Y},
		{"L", r.Right(), r.Y},
		{"L", r.Right(), r.Bottom()},
		{"L", r.X, r.Bottom()},
		{"Z"},
	}
}

// ellipsePath approximates the ellipse inscribed in r with four beziers.
func ellipsePath(r geom.Rect) []PathCommand {
	rx, ry := r.Width/2, r.Height/2
	cx, cy := r.X+rx, r.Y+ry

	// k = 4 * (sqrt(2) - 1) / 3
	k := 0.5522847498
	kx, ky := rx*k, ry*k

	return []PathCommand{
		{"M", cx + rx, cy},
		{"C", cx + rx, cy + ky, cx + kx, cy + ry, cx, cy + ry},
		{"C", cx - kx, cy + ry, cx - rx, cy + ky, cx - rx, cy},
		{"C", cx - rx, cy - ky, cx - kx, cy - ry, cx, cy - ry},
		{"C", cx + kx, cy - ry, cx + rx, cy - ky, cx + rx, cy},
		{"Z"},
	}
}

func polylinePath(points []geom.Point) []PathCommand {
	if len(points) == 0 {
		return nil
	}
	path := make([]PathCommand, 0, len(points))
	path = append(path, PathCommand{"M", points[0].X, points[0].Y})
	for _, p := range points[1:] {
		path = append(path, PathCommand{"L", p.X, p.Y})
	}
	return path
}

// arrowPath is the shaft plus two barbs at ±30° from the tip.
func arrowPath(start, end geom.Point) []PathCommand {
	path := polylinePath([]geom.Point{start, end})
	dir := end.Sub(start)
	length := start.Distance(end)
	if length == 0 {
		return path
	}
	ux, uy := dir.X/length, dir.Y/length

	const cos30, sin30 = 0.8660254037844386, 0.5
	for _, sign := range []float64{1, -1} {
		bx := -(ux*cos30 - sign*uy*sin30) * ArrowHeadLength
		by := -(uy*cos30 + sign*ux*sin30) * ArrowHeadLength
		path = append(path,
			PathCommand{"M", end.X, end.Y},
			PathCommand{"L", end.X + bx, end.Y + by},
		)
	}
	return path
}

// ToJSON serializes draw commands to JSON.
func ToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
