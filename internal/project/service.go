// Package project exposes canvas sessions over plain HTTP: creating a
// canvas, reading and replacing its project, capturing frames and starting
// generation.
package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/generate"
	"github.com/inamate/canvas/internal/session"
	"github.com/inamate/canvas/internal/typeid"
)

var (
	ErrNotFound   = errors.New("canvas not found")
	ErrBadRequest = errors.New("bad request")
)

// Sessions is the part of the session hub the service needs.
type Sessions interface {
	Create() *session.Session
	Session(canvasID string) (*session.Session, bool)
}

type Service struct {
	sessions Sessions
}

func NewService(sessions Sessions) *Service {
	return &Service{sessions: sessions}
}

type Canvas struct {
	ID     string `json:"id"`
	Shapes int    `json:"shapes"`
}

func (s *Service) lookup(canvasID string) (*session.Session, error) {
	if err := typeid.Validate(canvasID, typeid.PrefixCanvas); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	sess, ok := s.sessions.Session(canvasID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, canvasID)
	}
	return sess, nil
}

// Create opens a canvas, optionally seeded with the sample project.
func (s *Service) Create(ctx context.Context, sample bool) (*Canvas, error) {
	sess := s.sessions.Create()
	if sample {
		if err := sess.Load(ctx, document.NewSampleProject()); err != nil {
			return nil, fmt.Errorf("seed sample: %w", err)
		}
	}
	return &Canvas{ID: sess.ID, Shapes: sess.Store().Len()}, nil
}

func (s *Service) Get(canvasID string) (*Canvas, error) {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return nil, err
	}
	return &Canvas{ID: sess.ID, Shapes: sess.Store().Len()}, nil
}

func (s *Service) Project(canvasID string) (document.Project, error) {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return document.Project{}, err
	}
	return sess.Store().Project(), nil
}

// Replace loads data into the canvas for every connected client, abandoning
// their gestures and resetting history.
func (s *Service) Replace(ctx context.Context, canvasID string, data []byte) error {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return err
	}
	p, err := document.DecodeProject(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return sess.Load(ctx, p)
}

// FramePNG captures a frame and every shape over it.
func (s *Service) FramePNG(canvasID, frameID string) ([]byte, error) {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return nil, err
	}
	png, err := sess.Snapshot(frameID)
	switch {
	case errors.Is(err, engine.ErrShapeNotFound):
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, engine.ErrNotFrame):
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return png, err
}

type Generation struct {
	FrameID string `json:"frameId"`
	ShapeID string `json:"shapeId"`
}

func (s *Service) Generate(ctx context.Context, canvasID, frameID, prompt string) (*Generation, error) {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return nil, err
	}
	shapeID, err := sess.Generation().Start(ctx, frameID, prompt)
	switch {
	case errors.Is(err, engine.ErrShapeNotFound):
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, engine.ErrNotFrame), errors.Is(err, generate.ErrNoGenerator):
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	case err != nil:
		return nil, err
	}
	return &Generation{FrameID: frameID, ShapeID: shapeID}, nil
}

func (s *Service) CancelGeneration(canvasID, frameID string) error {
	sess, err := s.lookup(canvasID)
	if err != nil {
		return err
	}
	if !sess.Generation().Cancel(frameID) {
		return fmt.Errorf("%w: no generation for %s", ErrNotFound, frameID)
	}
	return nil
}
