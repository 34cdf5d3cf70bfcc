package engine

import (
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/render"
	"github.com/inamate/canvas/internal/tool"
)

// Render compiles the current frame: committed shapes in paint order, the
// draft preview, the free-draw buffer and selection outlines.
func (e *Engine) Render() []render.DrawCommand {
	sc := render.Scene{
		Shapes:    e.store.Shapes(),
		Selected:  e.store.SelectedIDs(),
		FreeDraw:  e.freeDraw,
		DrawStyle: e.cfg.DrawStyle,
		Transform: e.vp.Matrix(),
		Labels:    e.cfg.FrameLabels,
	}
	if preview, ok := e.draftShape(); ok {
		sc.Draft = &preview
	}
	return render.Compile(sc)
}

// RenderJSON is Render serialized for host bridges.
func (e *Engine) RenderJSON() string {
	out, err := render.ToJSON(e.Render())
	if err != nil {
		e.log.Error("render", "error", err)
	}
	return out
}

// draftShape builds the preview shape. It never enters the store, so it
// carries no id.
func (e *Engine) draftShape() (document.Shape, bool) {
	if e.draft == nil {
		return document.Shape{}, false
	}
	d := *e.draft
	preview := document.Shape{Style: e.cfg.DrawStyle}

	switch d.Tool {
	case tool.Frame:
		preview.Type = document.ShapeFrame
		preview.Frame = &document.FrameMeta{}
	case tool.Rect:
		preview.Type = document.ShapeRect
	case tool.Ellipse:
		preview.Type = document.ShapeEllipse
	case tool.Line, tool.Arrow:
		preview.Type = document.ShapeLine
		if d.Tool == tool.Arrow {
			preview.Type = document.ShapeArrow
		}
		preview.Segment = &document.Segment{Start: d.Start, End: d.Current}
		return preview, true
	default:
		return document.Shape{}, false
	}
	box := d.Box()
	preview.Bounds = &box
	return preview, true
}

// FrameSnapshot rasterizes the frame with the given id and every shape over
// it. It is the capture used by generation collaborators.
func (e *Engine) FrameSnapshot(frameID string) ([]byte, error) {
	if e.raster == nil {
		return nil, ErrNoRasterizer
	}
	return Snapshot(e.store, e.raster, frameID)
}

// ShapeSource is the read side of the store.
type ShapeSource interface {
	Shape(id string) (document.Shape, bool)
	Shapes() []document.Shape
}

// Snapshot rasterizes a frame straight from a store. It does not touch
// engine state, so it may run on any goroutine.
func Snapshot(s ShapeSource, r Rasterizer, frameID string) ([]byte, error) {
	frame, ok := s.Shape(frameID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShapeNotFound, frameID)
	}
	if frame.Type != document.ShapeFrame {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFrame, frameID, frame.Type)
	}
	return r.Frame(s.Shapes(), frame)
}
