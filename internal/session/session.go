// Package session hosts shared canvases for websocket clients.
//
// A Session owns one shape store and gives every connected client its own
// engine (viewport, tool and gesture state) over it. All engine access runs
// on the session's event loop goroutine; other goroutines post closures to
// its inbox.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/generate"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/resize"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/tool"
)

const inboxSize = 256

var (
	ErrClosed       = errors.New("session closed")
	ErrUnknownType  = errors.New("unknown message type")
	ErrNoGeneration = errors.New("generation not configured")
)

type Config struct {
	Engine        engine.Config
	HistoryLimit  int
	FrameInterval time.Duration
}

type Option func(*Session)

func WithGenerator(g generate.Generator) Option {
	return func(s *Session) { s.generator = g }
}

func WithRasterizer(r engine.Rasterizer) Option {
	return func(s *Session) { s.raster = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithScheduler replaces the per-client frame scheduler. Tests use it to
// drive coalesced updates by hand.
func WithScheduler(fn func(dispatch func(func())) engine.Scheduler) Option {
	return func(s *Session) { s.scheduler = fn }
}

type view struct {
	client *Client
	engine *engine.Engine
	dirty  bool
	// last pointer position in world space, nil before the first event
	cursor *geom.Point
}

type Session struct {
	ID string

	cfg       Config
	store     *store.Store
	gen       *generate.Service
	generator generate.Generator
	raster    engine.Rasterizer
	scheduler func(dispatch func(func())) engine.Scheduler
	log       *slog.Logger
	presence  *presence

	inbox chan func()
	wake  chan struct{}
	done  chan struct{}

	// set from any goroutine when the shared store changes
	storeDirty atomic.Bool

	// owned by the loop goroutine
	views map[string]*view
	order []string
}

func New(id string, cfg Config, opts ...Option) *Session {
	s := &Session{
		ID:       id,
		cfg:      cfg,
		log:      slog.Default(),
		presence: newPresence(),
		inbox:    make(chan func(), inboxSize),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		views:    make(map[string]*view),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("canvas", id)

	var storeOpts []store.Option
	if cfg.HistoryLimit > 0 {
		storeOpts = append(storeOpts, store.WithHistoryLimit(cfg.HistoryLimit))
	}
	s.store = store.New(storeOpts...)
	s.store.Subscribe(func(store.Change) { s.markStoreDirty() })

	s.gen = generate.NewService(s.store, s.generator,
		generate.WithLogger(s.log),
		generate.WithRasterizer(s.raster),
	)
	return s
}

func (s *Session) Store() *store.Store { return s.store }

// Generation exposes the session's generation service.
func (s *Session) Generation() *generate.Service { return s.gen }

// Snapshot rasterizes a frame of the shared canvas.
func (s *Session) Snapshot(frameID string) ([]byte, error) {
	if s.raster == nil {
		return nil, engine.ErrNoRasterizer
	}
	return engine.Snapshot(s.store, s.raster, frameID)
}

func (s *Session) markStoreDirty() {
	s.storeDirty.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// post queues fn on the loop. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn on the event loop and waits for it to return.
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Run is the event loop. It returns when ctx is cancelled, after closing
// every client's send channel and cancelling running generations.
func (s *Session) Run(ctx context.Context) {
	defer s.shutdown()

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.wake:
		case <-ctx.Done():
			return
		}
		s.flush()
	}
}

func (s *Session) shutdown() {
	close(s.done)
	for _, id := range s.order {
		close(s.views[id].client.send)
	}
	s.views = make(map[string]*view)
	s.order = nil
	s.gen.Close()
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// flush sends a render to every client whose picture changed, then
// publishes presence changes to everyone else. A render the client had no
// room for is retried on the next flush.
func (s *Session) flush() {
	all := s.storeDirty.Swap(false)
	for _, id := range s.order {
		v := s.views[id]
		if !all && !v.dirty {
			continue
		}
		v.dirty = !v.client.Send(s.renderMessage(v))
	}

	for _, p := range s.presence.drain() {
		msg := newMessage(TypePresenceUpdate, p)
		msg.UserID = p.UserID
		msg.ClientID = p.ClientID
		s.broadcast(msg, p.ClientID)
	}
}

func (s *Session) renderMessage(v *view) *Message {
	e := v.engine
	vp := e.Viewport()
	p := RenderPayload{
		Commands: e.Render(),
		Viewport: ViewportPayload{
			Translate: vp.Translate,
			Scale:     vp.Scale,
			Mode:      vp.Mode.String(),
		},
		Selection: s.store.SelectedIDs(),
		Tool:      e.Tool().String(),
		CanUndo:   s.store.CanUndo(),
		CanRedo:   s.store.CanRedo(),
	}
	if d, ok := e.Draft(); ok {
		p.Draft = &d
	}
	msg := newMessage(TypeRender, p)
	msg.CanvasID = s.ID
	return msg
}

// Join attaches a client and gives it an engine.
func (s *Session) Join(c *Client) bool {
	return s.post(func() { s.join(c) })
}

// Leave detaches a client. Leaving twice is a no-op.
func (s *Session) Leave(c *Client) bool {
	return s.post(func() { s.leave(c) })
}

// Receive queues an inbound client message.
func (s *Session) Receive(c *Client, msg *Message) bool {
	return s.post(func() { s.handle(c, msg) })
}

func (s *Session) join(c *Client) {
	if _, ok := s.views[c.ClientID]; ok {
		return
	}
	v := &view{client: c, dirty: true}
	v.engine = engine.New(s.store,
		engine.WithConfig(s.cfg.Engine),
		engine.WithScheduler(s.newScheduler()),
		engine.WithLogger(s.log.With("client", c.ClientID)),
		engine.WithInvalidate(func() { v.dirty = true }),
		engine.WithRasterizer(s.raster),
	)
	s.views[c.ClientID] = v
	s.order = append(s.order, c.ClientID)

	c.Send(newMessage(TypeWelcome, WelcomePayload{ClientID: c.ClientID, UserID: c.UserID, CanvasID: s.ID}))
	c.Send(newMessage(TypePresenceState, s.presence.state(c.ClientID)))
	s.presence.join(c)

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		ClientID:    c.ClientID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
	})
	joinMsg.UserID = c.UserID
	s.broadcast(joinMsg, c.ClientID)

	s.log.Info("client joined", "user", c.UserID, "client", c.ClientID)
}

func (s *Session) leave(c *Client) {
	v, ok := s.views[c.ClientID]
	if !ok {
		return
	}
	v.engine.PointerCancel()
	delete(s.views, c.ClientID)
	for i, id := range s.order {
		if id == c.ClientID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	close(c.send)
	s.presence.leave(c.ClientID)

	leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{ClientID: c.ClientID, UserID: c.UserID})
	leaveMsg.UserID = c.UserID
	s.broadcast(leaveMsg, "")

	s.log.Info("client left", "user", c.UserID, "client", c.ClientID)
}

// Load replaces the canvas for every client. Each client's gesture is
// abandoned before the store changes under it and every viewport is reset.
func (s *Session) Load(ctx context.Context, p document.Project) error {
	return s.Do(ctx, func() { s.load(p) })
}

func (s *Session) load(p document.Project) {
	for _, id := range s.order {
		s.views[id].engine.ResetInteraction()
	}
	s.store.Load(p)
	for _, id := range s.order {
		v := s.views[id]
		v.engine.Viewport().Reset()
		v.dirty = true
	}
	s.log.Info("project loaded", "shapes", p.Shapes.Len())
}

// resetOthers abandons the gestures of every client but v. Undo and redo
// swap the whole table, so another client's move scratch would be stale.
func (s *Session) resetOthers(v *view) {
	for _, id := range s.order {
		if other := s.views[id]; other != v {
			other.engine.ResetInteraction()
		}
	}
}

func (s *Session) newScheduler() engine.Scheduler {
	dispatch := func(fn func()) { s.post(fn) }
	if s.scheduler != nil {
		return s.scheduler(dispatch)
	}
	return engine.TimerScheduler{Interval: s.cfg.FrameInterval, Dispatch: dispatch}
}

func (s *Session) broadcast(msg *Message, excludeClientID string) {
	for _, id := range s.order {
		if id == excludeClientID {
			continue
		}
		s.views[id].client.Send(msg)
	}
}

func (s *Session) handle(c *Client, msg *Message) {
	v, ok := s.views[c.ClientID]
	if !ok {
		return
	}
	if err := s.dispatch(v, msg); err != nil {
		s.log.Debug("message rejected", "type", msg.Type, "client", c.ClientID, "error", err)
		c.Send(newMessage(TypeError, ErrorPayload{Request: msg.Type, Error: err.Error()}))
		return
	}
	s.presence.track(c.ClientID, v.cursor, v.engine.Tool().String(), v.engine.Gesture().String())
}

func decode[T any](msg *Message) (T, error) {
	var p T
	if len(msg.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return p, nil
}

func (s *Session) dispatch(v *view, msg *Message) error {
	e := v.engine

	switch msg.Type {
	case TypePointerDown, TypePointerMove, TypePointerUp:
		p, err := decode[PointerPayload](msg)
		if err != nil {
			return err
		}
		ev := p.Event()
		switch msg.Type {
		case TypePointerDown:
			e.PointerDown(ev)
		case TypePointerMove:
			e.PointerMove(ev)
		default:
			e.PointerUp(ev)
		}
		world := e.ClientToWorld(ev.Client)
		v.cursor = &world

	case TypePointerCancel:
		e.PointerCancel()

	case TypeWheel:
		p, err := decode[WheelPayload](msg)
		if err != nil {
			return err
		}
		e.Wheel(engine.WheelEvent{Delta: geom.Pt(p.DX, p.DY), Client: geom.Pt(p.X, p.Y), Zoom: p.Zoom})

	case TypeSurface:
		p, err := decode[PointPayload](msg)
		if err != nil {
			return err
		}
		e.SetSurfaceOrigin(geom.Pt(p.X, p.Y))

	case TypeToolSelect:
		p, err := decode[ToolPayload](msg)
		if err != nil {
			return err
		}
		t, err := tool.ParseTool(p.Tool)
		if err != nil {
			return err
		}
		e.SelectTool(t)

	case TypeResizeStart:
		p, err := decode[ResizePayload](msg)
		if err != nil {
			return err
		}
		corner, err := resize.ParseCorner(p.Corner)
		if err != nil {
			return err
		}
		if !e.ResizeStart(p.ShapeID, corner, geom.Pt(p.X, p.Y)) {
			return fmt.Errorf("%w: %s cannot be resized", engine.ErrShapeNotFound, p.ShapeID)
		}

	case TypeResizeMove:
		p, err := decode[ResizePayload](msg)
		if err != nil {
			return err
		}
		e.ResizeMove(geom.Pt(p.X, p.Y))

	case TypeResizeEnd:
		e.ResizeEnd()

	case TypeUndo:
		s.resetOthers(v)
		e.Undo()

	case TypeRedo:
		s.resetOthers(v)
		e.Redo()

	case TypeSelectionDelete:
		e.DeleteSelected()

	case TypeSelectionAll:
		e.SelectAll()

	case TypeSelectionNudge:
		p, err := decode[NudgePayload](msg)
		if err != nil {
			return err
		}
		e.NudgeSelected(p.DX, p.DY)

	case TypeProjectLoad:
		p, err := document.DecodeProject(msg.Payload)
		if err != nil {
			return err
		}
		s.load(p)

	case TypeProjectSample:
		s.load(document.NewSampleProject())

	case TypeZoomToFit:
		p, err := decode[FitPayload](msg)
		if err != nil {
			return err
		}
		if !e.ZoomToFit(p.ShapeID, geom.Pt(p.Width, p.Height), p.Padding) {
			return fmt.Errorf("%w: %s", engine.ErrShapeNotFound, p.ShapeID)
		}

	case TypeGenerate:
		p, err := decode[GeneratePayload](msg)
		if err != nil {
			return err
		}
		s.startGeneration(v.client, p)

	case TypeGenerateCancel:
		p, err := decode[GeneratePayload](msg)
		if err != nil {
			return err
		}
		go s.gen.Cancel(p.FrameID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return nil
}

// startGeneration runs Start off the loop: capturing the frame may take a
// while and the stream patches the store from its own goroutine.
func (s *Session) startGeneration(c *Client, p GeneratePayload) {
	if s.generator == nil {
		c.Send(newMessage(TypeError, ErrorPayload{Request: TypeGenerate, Error: ErrNoGeneration.Error()}))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shapeID, err := s.gen.Start(ctx, p.FrameID, p.Prompt)
		s.post(func() {
			if _, ok := s.views[c.ClientID]; !ok {
				return
			}
			if err != nil {
				c.Send(newMessage(TypeError, ErrorPayload{Request: TypeGenerate, Error: err.Error()}))
				return
			}
			c.Send(newMessage(TypeGenerate, GenerateStartedPayload{FrameID: p.FrameID, ShapeID: shapeID}))
		})
	}()
}
