package engine

import (
	"errors"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/hittest"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/tool"
)

// PointerDown starts a gesture. A down while another gesture is active is
// ignored.
func (e *Engine) PointerDown(ev PointerEvent) {
	if e.gesture != GestureNone {
		return
	}
	screen := e.toScreen(ev.Client)
	world := e.vp.ScreenToWorld(screen)
	e.startWorld = world

	if ev.Button != ButtonLeft || ev.Modifiers.Hand {
		e.vp.PanStart(screen, false)
		e.gesture = GesturePan
		return
	}

	switch t := e.tools.Current(); t {
	case tool.Select:
		e.selectDown(ev, screen, world)

	case tool.Frame, tool.Rect, tool.Ellipse, tool.Arrow, tool.Line:
		e.draft = &Draft{Tool: t, Start: world, Current: world}
		e.gesture = GestureDraw
		e.repaint()

	case tool.FreeDraw:
		e.freeDraw = []geom.Point{world}
		e.lastRepaint = e.now()
		e.gesture = GestureFreeDraw
		e.frames.Schedule(e.freeDrawFrame)
		e.repaint()

	case tool.Text:
		shape := document.NewText(world, e.cfg.TextPlaceholder, document.DefaultTypography(), e.cfg.DrawStyle)
		if id, ok := e.commit(shape); ok {
			e.store.SetSelection(id)
		}
		e.tools.Set(tool.Select)
		e.repaint()

	case tool.Image:
		box := geom.Rect{X: world.X, Y: world.Y, Width: e.cfg.ImageSize.X, Height: e.cfg.ImageSize.Y}
		if id, ok := e.commit(document.NewImage(box, nil)); ok {
			e.store.SetSelection(id)
			e.tools.Set(tool.Select)
		}
		e.repaint()

	case tool.Eraser:
		e.visited = make(map[string]struct{})
		e.gesture = GestureErase
		e.eraseAt(world)
	}
}

func (e *Engine) selectDown(ev PointerEvent, screen, world geom.Point) {
	hit, ok := hittest.ShapeAtPoint(e.store.Shapes(), world)
	if !ok {
		e.store.ClearSelection()
		if ev.Modifiers.Shift {
			e.vp.PanStart(screen, true)
			e.gesture = GesturePan
		}
		e.repaint()
		return
	}

	if !e.store.IsSelected(hit.ID) {
		if ev.Modifiers.Multi {
			e.store.AddToSelection(hit.ID)
		} else {
			e.store.SetSelection(hit.ID)
		}
	}

	ids := e.store.SelectedIDs()
	e.scratch = make(map[string]document.Shape, len(ids))
	e.scratchOrder = e.scratchOrder[:0]
	for _, id := range ids {
		if s, ok := e.store.Shape(id); ok {
			e.scratch[id] = s
			e.scratchOrder = append(e.scratchOrder, id)
		}
	}
	e.gesture = GestureMove
	e.repaint()
}

func (e *Engine) PointerMove(ev PointerEvent) {
	switch e.gesture {
	case GesturePan:
		target := e.vp.PanTarget(e.toScreen(ev.Client))
		e.frames.Schedule(func() {
			e.vp.SetTranslate(target)
			e.repaint()
		})

	case GestureMove:
		delta := e.toWorld(ev.Client).Sub(e.startWorld)
		for _, id := range e.scratchOrder {
			initial, ok := e.scratch[id]
			if !ok {
				continue
			}
			if !e.store.UpdateShape(id, document.TranslatePatch(initial, delta)) {
				// removed by someone else mid-gesture
				delete(e.scratch, id)
			}
		}
		e.repaint()

	case GestureDraw:
		e.draft.Current = e.toWorld(ev.Client)
		e.repaint()

	case GestureFreeDraw:
		e.freeDraw = append(e.freeDraw, e.toWorld(ev.Client))

	case GestureErase:
		e.eraseAt(e.toWorld(ev.Client))

	case GestureResize:
		e.ResizeMove(ev.Client)
	}
}

// PointerUp finishes the active gesture, committing drafts.
func (e *Engine) PointerUp(ev PointerEvent) {
	switch e.gesture {
	case GesturePan:
		e.vp.SetTranslate(e.vp.PanTarget(e.toScreen(ev.Client)))
	case GestureDraw:
		e.draft.Current = e.toWorld(ev.Client)
	}
	e.endGesture(true)
}

// PointerCancel abandons the active gesture. Drafts and free-draw buffers
// are discarded; moves already applied stay in the store and its history.
func (e *Engine) PointerCancel() {
	e.endGesture(false)
}

// Wheel zooms around the pointer when ev.Zoom is set, and pans otherwise.
func (e *Engine) Wheel(ev WheelEvent) {
	if ev.Zoom {
		e.vp.WheelZoom(ev.Delta.Y, e.toScreen(ev.Client))
	} else {
		e.vp.WheelPan(ev.Delta.X, ev.Delta.Y)
	}
	e.repaint()
}

func (e *Engine) endGesture(commit bool) {
	e.frames.Cancel()

	switch e.gesture {
	case GesturePan:
		e.vp.PanEnd()
	case GestureMove:
		e.scratch = nil
		e.scratchOrder = e.scratchOrder[:0]
	case GestureDraw:
		if commit {
			e.commitDraft(*e.draft)
		}
		e.draft = nil
	case GestureFreeDraw:
		if commit && len(e.freeDraw) > 1 {
			e.commit(document.NewFreeDraw(e.freeDraw, e.cfg.DrawStyle))
		} else if len(e.freeDraw) > 0 {
			e.log.Debug("free-draw discarded", "points", len(e.freeDraw))
		}
		e.freeDraw = nil
	case GestureErase:
		e.visited = nil
	case GestureResize:
		e.resizeInitial = document.Shape{}
	case GestureNone:
		return
	}

	e.gesture = GestureNone
	e.repaint()
}

func (e *Engine) commitDraft(d Draft) {
	box := d.Box()
	if box.Width <= e.cfg.DrawThreshold || box.Height <= e.cfg.DrawThreshold {
		e.log.Debug("draft discarded", "tool", d.Tool, "w", box.Width, "h", box.Height)
		return
	}

	var shape document.Shape
	switch d.Tool {
	case tool.Frame:
		shape = document.NewFrame(box, e.cfg.DrawStyle)
	case tool.Rect:
		shape = document.NewRect(box, e.cfg.DrawStyle)
	case tool.Ellipse:
		shape = document.NewEllipse(box, e.cfg.DrawStyle)
	case tool.Line:
		shape = document.NewLine(d.Start, d.Current, e.cfg.DrawStyle)
	case tool.Arrow:
		shape = document.NewArrow(d.Start, d.Current, e.cfg.DrawStyle)
	default:
		return
	}
	e.commit(shape)
}

// commit adds shape to the store. Rejections are dropped silently.
func (e *Engine) commit(shape document.Shape) (string, bool) {
	id, err := e.store.AddShape(shape)
	switch {
	case errors.Is(err, store.ErrImageLimit):
		e.log.Debug("image reference rejected", "limit", store.MaxImages)
		return "", false
	case err != nil:
		e.log.Warn("shape rejected", "type", shape.Type, "error", err)
		return "", false
	}
	e.log.Debug("shape committed", "shape", id, "type", shape.Type)
	return id, true
}

// freeDrawFrame is the throttled repaint loop. It reschedules itself for
// as long as the free-draw gesture lasts.
func (e *Engine) freeDrawFrame() {
	if e.gesture != GestureFreeDraw {
		return
	}
	if now := e.now(); now.Sub(e.lastRepaint) >= e.cfg.FreeDrawInterval {
		e.lastRepaint = now
		e.repaint()
	}
	e.frames.Schedule(e.freeDrawFrame)
}

func (e *Engine) eraseAt(world geom.Point) {
	hit, ok := hittest.ShapeAtPoint(e.store.Shapes(), world)
	if !ok {
		return
	}
	if _, seen := e.visited[hit.ID]; seen {
		return
	}
	e.visited[hit.ID] = struct{}{}
	if e.store.RemoveShape(hit.ID) {
		e.repaint()
	}
}
