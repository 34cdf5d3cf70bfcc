// Package raster renders frames to PNG with the gg software rasterizer.
// It is the frame-to-raster capture handed to generation collaborators.
package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/webp"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/hittest"
	"github.com/inamate/canvas/internal/render"
)

const (
	DefaultScale      = 1.0
	DefaultBackground = "#0a0a0a"
	// MaxDimension caps either side of the output image in pixels.
	MaxDimension = 4096
)

var fontSource = sync.OnceValues(func() (*text.FontSource, error) {
	return text.NewFontSource(goregular.TTF)
})

// Renderer rasterizes frames. The zero value renders at DefaultScale on
// DefaultBackground.
type Renderer struct {
	Scale      float64
	Background string
	Logger     *slog.Logger
}

func (r Renderer) scale() float64 {
	if r.Scale > 0 {
		return r.Scale
	}
	return DefaultScale
}

func (r Renderer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Frame renders every shape intersecting frame's bounds into a PNG the size
// of the frame, with the frame origin at (0, 0).
func (r Renderer) Frame(shapes []document.Shape, frame document.Shape) ([]byte, error) {
	if frame.Bounds == nil || frame.Bounds.IsEmpty() {
		return nil, fmt.Errorf("frame %s has no area", frame.ID)
	}
	box := *frame.Bounds

	scale := r.scale()
	w := int(math.Ceil(box.Width * scale))
	h := int(math.Ceil(box.Height * scale))
	if w > MaxDimension || h > MaxDimension {
		scale *= float64(MaxDimension) / float64(max(w, h))
		w = min(int(math.Ceil(box.Width*scale)), MaxDimension)
		h = min(int(math.Ceil(box.Height*scale)), MaxDimension)
	}

	dc := gg.NewContext(w, h)
	defer dc.Close()

	bg := r.Background
	if bg == "" {
		bg = DefaultBackground
	}
	dc.ClearWithColor(gg.Hex(bg))

	transform := geom.Scaling(scale, scale).Multiply(geom.Translation(-box.X, -box.Y))
	cmds := render.Compile(render.Scene{
		Shapes:    hittest.ShapesInRect(shapes, box),
		Transform: transform,
	})

	p := painter{dc: dc, log: r.logger()}
	for _, cmd := range cmds {
		p.exec(cmd)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode frame %s: %w", frame.ID, err)
	}
	return buf.Bytes(), nil
}

type painter struct {
	dc  *gg.Context
	log *slog.Logger
}

func (p painter) exec(cmd render.DrawCommand) {
	m := matrixOf(cmd.Transform)
	switch cmd.Op {
	case "path":
		p.path(cmd, m)
	case "text":
		p.text(cmd, m)
	case "image":
		p.image(cmd, m)
	}
}

func matrixOf(t []float64) geom.Matrix2D {
	if len(t) != 6 {
		return geom.Identity()
	}
	return geom.Matrix2D{t[0], t[1], t[2], t[3], t[4], t[5]}
}

// lineScale is the factor a uniform transform applies to lengths.
func lineScale(m geom.Matrix2D) float64 {
	return math.Sqrt(math.Abs(m.Determinant()))
}

func (p painter) path(cmd render.DrawCommand, m geom.Matrix2D) {
	if !tracePath(p.dc, cmd.Path, m) {
		return
	}
	stroked := isColor(cmd.Stroke) && cmd.StrokeWidth > 0
	if isColor(cmd.Fill) {
		p.dc.SetHexColor(cmd.Fill)
		var err error
		if stroked {
			err = p.dc.FillPreserve()
		} else {
			err = p.dc.Fill()
		}
		if err != nil {
			p.log.Debug("raster fill", "shape", cmd.ObjectID, "error", err)
		}
	}
	if stroked {
		p.dc.SetHexColor(cmd.Stroke)
		p.dc.SetLineWidth(cmd.StrokeWidth * lineScale(m))
		if err := p.dc.Stroke(); err != nil {
			p.log.Debug("raster stroke", "shape", cmd.ObjectID, "error", err)
		}
		return
	}
	p.dc.ClearPath()
}

// tracePath replays Canvas2D style path commands onto dc in device space.
func tracePath(dc *gg.Context, path []render.PathCommand, m geom.Matrix2D) bool {
	traced := false
	for _, pc := range path {
		if len(pc) == 0 {
			continue
		}
		op, _ := pc[0].(string)
		args := floats(pc[1:])
		switch {
		case op == "M" && len(args) == 2:
			q := m.Apply(geom.Pt(args[0], args[1]))
			dc.MoveTo(q.X, q.Y)
		case op == "L" && len(args) == 2:
			q := m.Apply(geom.Pt(args[0], args[1]))
			dc.LineTo(q.X, q.Y)
		case op == "C" && len(args) == 6:
			c1 := m.Apply(geom.Pt(args[0], args[1]))
			c2 := m.Apply(geom.Pt(args[2], args[3]))
			q := m.Apply(geom.Pt(args[4], args[5]))
			dc.CubicTo(c1.X, c1.Y, c2.X, c2.Y, q.X, q.Y)
		case op == "Z":
			dc.ClosePath()
		default:
			continue
		}
		traced = true
	}
	return traced
}

func floats(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		}
	}
	return out
}

func (p painter) text(cmd render.DrawCommand, m geom.Matrix2D) {
	src, err := fontSource()
	if err != nil {
		p.log.Warn("raster font", "error", err)
		return
	}
	size := document.DefaultTypography().FontSize
	if cmd.Typography != nil && cmd.Typography.FontSize > 0 {
		size = cmd.Typography.FontSize
	}
	size *= lineScale(m)
	if size <= 0 {
		return
	}

	color := cmd.Fill
	if !isColor(color) {
		color = "#ffffff"
	}
	p.dc.SetFont(src.Face(size))
	p.dc.SetHexColor(color)

	at := m.Apply(geom.Pt(cmd.X, cmd.Y))
	p.dc.DrawStringAnchored(cmd.Text, at.X, at.Y, 0, 1)
}

func (p painter) image(cmd render.DrawCommand, m geom.Matrix2D) {
	if cmd.Image == nil || len(cmd.Image.Data) == 0 {
		return
	}
	img, format, err := image.Decode(bytes.NewReader(cmd.Image.Data))
	if err != nil {
		p.log.Debug("raster image decode", "shape", cmd.ObjectID, "error", err)
		return
	}
	box := m.ApplyRect(geom.Rect{X: cmd.X, Y: cmd.Y, Width: cmd.Width, Height: cmd.Height})
	p.dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         box.X,
		Y:         box.Y,
		DstWidth:  box.Width,
		DstHeight: box.Height,
	})
	p.log.Debug("raster image", "shape", cmd.ObjectID, "format", format)
}

func isColor(s string) bool {
	return strings.HasPrefix(s, "#") && (len(s) == 4 || len(s) == 7 || len(s) == 9)
}
