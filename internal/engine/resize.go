package engine

import (
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/resize"
)

// ResizeStart begins a handle drag on shapeID. It reports false for unknown
// or non-resizable shapes.
func (e *Engine) ResizeStart(shapeID string, corner resize.Corner, client geom.Point) bool {
	e.endGesture(false)

	s, ok := e.store.Shape(shapeID)
	if !ok || !resize.Resizable(s) {
		return false
	}
	e.resizeInitial = s
	e.resizing = resize.Gesture{
		ShapeID: shapeID,
		Corner:  corner,
		Initial: resize.HandleBounds(s),
		Pointer: e.toWorld(client),
	}
	e.gesture = GestureResize
	return true
}

// ResizeMove recomputes the shape from its geometry at ResizeStart.
func (e *Engine) ResizeMove(client geom.Point) {
	if e.gesture != GestureResize {
		return
	}
	e.resizing.Pointer = e.toWorld(client)

	patch, ok := resize.Apply(e.resizeInitial, e.resizing.Bounds())
	if !ok {
		return
	}
	if !e.store.UpdateShape(e.resizing.ShapeID, patch) {
		e.endGesture(false)
		return
	}
	e.repaint()
}

func (e *Engine) ResizeEnd() {
	if e.gesture != GestureResize {
		return
	}
	e.endGesture(true)
}

// Resizing returns the active resize gesture, if any.
func (e *Engine) Resizing() (resize.Gesture, bool) {
	if e.gesture != GestureResize {
		return resize.Gesture{}, false
	}
	return e.resizing, true
}
