// Package engine turns pointer and wheel input into viewport changes and
// shape store mutations.
//
// An Engine is driven from a single goroutine. Hosts that receive input on
// several goroutines serialize calls before they reach it (see the session
// package). The store it mutates is safe for concurrent use, so external
// collaborators may patch shapes by id at any time.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/resize"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/tool"
	"github.com/inamate/canvas/internal/viewport"
)

var (
	ErrShapeNotFound = errors.New("shape not found")
	ErrNotFrame      = errors.New("shape is not a frame")
	ErrNoRasterizer  = errors.New("no rasterizer configured")
)

type Engine struct {
	store *store.Store
	vp    *viewport.Viewport
	tools tool.Machine

	cfg        Config
	sched      Scheduler
	frames     *Coalescer
	now        func() time.Time
	log        *slog.Logger
	invalidate func()
	raster     Rasterizer

	// client to surface offset
	origin geom.Point

	gesture    GestureKind
	startWorld geom.Point

	// move: geometry of every selected shape at gesture start
	scratch      map[string]document.Shape
	scratchOrder []string

	draft *Draft

	freeDraw    []geom.Point
	lastRepaint time.Time

	visited map[string]struct{}

	resizing      resize.Gesture
	resizeInitial document.Shape
}

// New creates an engine over s. Without WithScheduler, coalesced updates
// run on a TimerScheduler.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		cfg:   DefaultConfig(),
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = TimerScheduler{Interval: DefaultFrameInterval}
	}
	e.vp = viewport.New(e.cfg.Viewport)
	e.frames = NewCoalescer(e.sched)
	return e
}

func (e *Engine) Store() *store.Store          { return e.store }
func (e *Engine) Viewport() *viewport.Viewport { return e.vp }
func (e *Engine) Tool() tool.Tool              { return e.tools.Current() }
func (e *Engine) Gesture() GestureKind         { return e.gesture }
func (e *Engine) Config() Config               { return e.cfg }

// Draft returns the in-progress shape preview, if any.
func (e *Engine) Draft() (Draft, bool) {
	if e.draft == nil {
		return Draft{}, false
	}
	return *e.draft, true
}

// FreeDrawBuffer returns a copy of the uncommitted free-draw points.
func (e *Engine) FreeDrawBuffer() []geom.Point {
	if len(e.freeDraw) == 0 {
		return nil
	}
	return append([]geom.Point(nil), e.freeDraw...)
}

// SetSurfaceOrigin sets the client-space position of the canvas surface.
func (e *Engine) SetSurfaceOrigin(p geom.Point) {
	e.origin = p
}

func (e *Engine) toScreen(client geom.Point) geom.Point {
	return client.Sub(e.origin)
}

// ClientToWorld maps a client-space point through the surface origin and
// viewport.
func (e *Engine) ClientToWorld(client geom.Point) geom.Point {
	return e.toWorld(client)
}

func (e *Engine) toWorld(client geom.Point) geom.Point {
	return e.vp.ScreenToWorld(e.toScreen(client))
}

func (e *Engine) repaint() {
	if e.invalidate != nil {
		e.invalidate()
	}
}

// SelectTool switches tools. Any gesture in progress is cancelled, and
// entering a tool other than select clears the selection.
func (e *Engine) SelectTool(t tool.Tool) {
	e.endGesture(false)
	if e.tools.Set(t) {
		e.store.ClearSelection()
	}
	e.log.Debug("tool selected", "tool", t)
	e.repaint()
}

// LoadProject replaces the document, discarding interaction state and
// history.
func (e *Engine) LoadProject(p document.Project) {
	e.endGesture(false)
	e.store.Load(p)
	e.vp.Reset()
	e.log.Debug("project loaded", "shapes", p.Shapes.Len(), "frameCounter", p.FrameCounter)
	e.repaint()
}

// ResetInteraction abandons the active gesture without committing it. Hosts
// sharing one store between engines call it on every engine before the
// store is replaced underneath them.
func (e *Engine) ResetInteraction() {
	e.endGesture(false)
}

func (e *Engine) Undo() bool {
	e.endGesture(false)
	ok := e.store.Undo()
	if ok {
		e.repaint()
	}
	return ok
}

func (e *Engine) Redo() bool {
	e.endGesture(false)
	ok := e.store.Redo()
	if ok {
		e.repaint()
	}
	return ok
}

// DeleteSelected removes every selected shape as one history step.
func (e *Engine) DeleteSelected() int {
	removed := e.store.RemoveShapes(e.store.SelectedIDs()...)
	if len(removed) > 0 {
		e.repaint()
	}
	return len(removed)
}

func (e *Engine) SelectAll() {
	shapes := e.store.Shapes()
	ids := make([]string, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ID
	}
	e.store.SetSelection(ids...)
	e.repaint()
}

// NudgeSelected moves the selection by (dx, dy) world units, one update per
// shape.
func (e *Engine) NudgeSelected(dx, dy float64) {
	if e.gesture != GestureNone {
		return
	}
	delta := geom.Point{X: dx, Y: dy}
	for _, id := range e.store.SelectedIDs() {
		s, ok := e.store.Shape(id)
		if !ok {
			continue
		}
		e.store.UpdateShape(id, document.TranslatePatch(s, delta))
	}
	e.repaint()
}

// ZoomToFit fits the bounds of the given shape, or of every shape when id
// is empty, into a surface of the given size.
func (e *Engine) ZoomToFit(id string, surface geom.Point, padding float64) bool {
	var (
		box   geom.Rect
		found bool
	)
	for _, s := range e.store.Shapes() {
		if id != "" && s.ID != id {
			continue
		}
		if !found {
			box, found = document.Bounds(s), true
			continue
		}
		box = box.Union(document.Bounds(s))
	}
	if !found {
		return false
	}
	e.vp.FitRect(box, surface, padding)
	e.repaint()
	return true
}
