// Package generate drives external content generation from frames.
//
// A Service captures a frame, inserts a generated-content placeholder next
// to it and streams the generator's output into that placeholder by shape
// id. Each chunk carries the full markup so far, so later chunks simply
// replace earlier ones. If the placeholder is deleted mid-stream the next
// patch is a no-op and the stream ends.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/hittest"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/typeid"
)

// Gap separates a frame from its generated block.
const Gap = 50.0

var ErrNoGenerator = errors.New("no generator configured")

type Request struct {
	FrameID string
	Prompt  string
	// Snapshot is the PNG capture of the frame. Empty when the service has
	// no rasterizer.
	Snapshot []byte
	// Shapes are the shapes over the frame, in paint order, frame first.
	Shapes []document.Shape
	Frame  geom.Rect
}

type Chunk struct {
	Markup string
	Done   bool
	Err    error
}

// Generator produces markup for a frame. The channel is closed when the
// generation finishes or ctx is cancelled.
type Generator interface {
	Generate(ctx context.Context, req Request) (<-chan Chunk, error)
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithRasterizer attaches a PNG capture of the frame to every request.
func WithRasterizer(r engine.Rasterizer) Option {
	return func(s *Service) { s.raster = r }
}

type job struct {
	id      string
	shapeID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Service owns at most one in-flight generation per frame id.
type Service struct {
	store  *store.Store
	gen    Generator
	raster engine.Rasterizer
	log    *slog.Logger

	// serializes Start so a frame never has two jobs
	startMu sync.Mutex

	mu       sync.Mutex
	inflight map[string]*job
}

func NewService(s *store.Store, g Generator, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		gen:      g,
		log:      slog.Default(),
		inflight: make(map[string]*job),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start begins generating for frameID and returns the placeholder's shape
// id. A generation already running for the same frame is cancelled first.
func (s *Service) Start(ctx context.Context, frameID, prompt string) (string, error) {
	if s.gen == nil {
		return "", ErrNoGenerator
	}
	s.startMu.Lock()
	defer s.startMu.Unlock()

	frame, ok := s.store.Shape(frameID)
	if !ok {
		return "", fmt.Errorf("%w: %s", engine.ErrShapeNotFound, frameID)
	}
	if frame.Type != document.ShapeFrame || frame.Bounds == nil {
		return "", fmt.Errorf("%w: %s is %s", engine.ErrNotFrame, frameID, frame.Type)
	}

	req := Request{
		FrameID: frameID,
		Prompt:  prompt,
		Shapes:  hittest.ShapesInRect(s.store.Shapes(), *frame.Bounds),
		Frame:   *frame.Bounds,
	}
	if s.raster != nil {
		png, err := engine.Snapshot(s.store, s.raster, frameID)
		if err != nil {
			return "", fmt.Errorf("snapshot frame: %w", err)
		}
		req.Snapshot = png
	}

	s.Cancel(frameID)

	fb := *frame.Bounds
	placeholder := document.NewGenerated(
		geom.Rect{X: fb.Right() + Gap, Y: fb.Y, Width: fb.Width, Height: fb.Height},
		"", frameID,
	)
	shapeID, err := s.store.AddShape(placeholder)
	if err != nil {
		return "", fmt.Errorf("insert placeholder: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	chunks, err := s.gen.Generate(jobCtx, req)
	if err != nil {
		cancel()
		s.store.RemoveShape(shapeID)
		return "", fmt.Errorf("generate: %w", err)
	}

	j := &job{id: typeid.NewGenID(), shapeID: shapeID, cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.inflight[frameID] = j
	s.mu.Unlock()

	s.log.Info("generation started", "job", j.id, "frame", frameID, "shape", shapeID)
	go s.stream(jobCtx, frameID, j, chunks)
	return shapeID, nil
}

func (s *Service) stream(ctx context.Context, frameID string, j *job, chunks <-chan Chunk) {
	defer func() {
		j.cancel()
		s.mu.Lock()
		if s.inflight[frameID] == j {
			delete(s.inflight, frameID)
		}
		s.mu.Unlock()
		close(j.done)
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("generation cancelled", "job", j.id, "frame", frameID)
			return
		case c, ok := <-chunks:
			if !ok {
				return
			}
			if c.Err != nil {
				s.log.Warn("generation failed", "job", j.id, "frame", frameID, "error", c.Err)
				return
			}
			if c.Markup != "" {
				markup := c.Markup
				if !s.store.UpdateShape(j.shapeID, document.Patch{Markup: &markup}) {
					s.log.Debug("generated block removed mid-stream", "shape", j.shapeID)
					return
				}
			}
			if c.Done {
				s.log.Info("generation finished", "job", j.id, "frame", frameID, "shape", j.shapeID)
				return
			}
		}
	}
}

// Cancel stops the generation for frameID and waits for it to wind down.
// The placeholder keeps whatever markup it had.
func (s *Service) Cancel(frameID string) bool {
	s.mu.Lock()
	j, ok := s.inflight[frameID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	<-j.done
	return true
}

// Wait blocks until the generation for frameID ends or ctx is done.
func (s *Service) Wait(ctx context.Context, frameID string) error {
	s.mu.Lock()
	j, ok := s.inflight[frameID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the frame ids with a running generation.
func (s *Service) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inflight))
	for id := range s.inflight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close cancels every running generation.
func (s *Service) Close() {
	for _, id := range s.InFlight() {
		s.Cancel(id)
	}
}
