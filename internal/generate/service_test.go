package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/store"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

type call struct {
	ctx context.Context
	req Request
	ch  chan Chunk
}

// manualGen hands each request a channel the test feeds by hand.
type manualGen struct {
	mu    sync.Mutex
	calls []*call
	err   error
}

func (g *manualGen) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	if g.err != nil {
		return nil, g.err
	}
	c := &call{ctx: ctx, req: req, ch: make(chan Chunk)}
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
	return c.ch, nil
}

func (g *manualGen) last() *call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

func setup(t *testing.T) (*store.Store, string) {
	t.Helper()
	s := store.New()
	s.Load(document.NewSampleProject())
	for _, sh := range s.Shapes() {
		if sh.Type == document.ShapeFrame {
			return s, sh.ID
		}
	}
	t.Fatal("sample has no frame")
	return nil, ""
}

func TestStartInsertsPlaceholderAndStreams(t *testing.T) {
	s, frameID := setup(t)
	gen := &manualGen{}
	svc := NewService(s, gen, quiet)

	id, err := svc.Start(context.Background(), frameID, "landing page")
	require.NoError(t, err)

	block, ok := s.Shape(id)
	require.True(t, ok)
	assert.Equal(t, document.ShapeGenerated, block.Type)
	assert.Equal(t, geom.Rect{X: 950, Y: 100, Width: 800, Height: 600}, *block.Bounds)
	assert.Equal(t, frameID, block.Generated.SourceFrameID)

	c := gen.last()
	assert.Equal(t, "landing page", c.req.Prompt)
	assert.Len(t, c.req.Shapes, 6)
	assert.Empty(t, c.req.Snapshot)

	c.ch <- Chunk{Markup: "<div>"}
	c.ch <- Chunk{Markup: "<div>hello</div>", Done: true}
	require.NoError(t, svc.Wait(context.Background(), frameID))

	block, _ = s.Shape(id)
	assert.Equal(t, "<div>hello</div>", block.Generated.Markup)
	assert.Empty(t, svc.InFlight())
}

func TestRestartCancelsPrevious(t *testing.T) {
	s, frameID := setup(t)
	gen := &manualGen{}
	svc := NewService(s, gen, quiet)

	first, err := svc.Start(context.Background(), frameID, "a")
	require.NoError(t, err)
	firstCall := gen.last()

	second, err := svc.Start(context.Background(), frameID, "b")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Error(t, firstCall.ctx.Err(), "previous generation cancelled")
	assert.Equal(t, []string{frameID}, svc.InFlight())

	svc.Close()
	assert.Empty(t, svc.InFlight())
}

func TestDeletedPlaceholderEndsStream(t *testing.T) {
	s, frameID := setup(t)
	gen := &manualGen{}
	svc := NewService(s, gen, quiet)

	id, err := svc.Start(context.Background(), frameID, "")
	require.NoError(t, err)
	c := gen.last()

	c.ch <- Chunk{Markup: "<p>1</p>"}
	require.True(t, s.RemoveShape(id))
	c.ch <- Chunk{Markup: "<p>2</p>"}

	require.NoError(t, svc.Wait(context.Background(), frameID))
	_, ok := s.Shape(id)
	assert.False(t, ok)
	assert.Error(t, c.ctx.Err())
}

func TestStartErrors(t *testing.T) {
	s, frameID := setup(t)

	_, err := NewService(s, nil, quiet).Start(context.Background(), frameID, "")
	assert.ErrorIs(t, err, ErrNoGenerator)

	svc := NewService(s, &manualGen{}, quiet)
	_, err = svc.Start(context.Background(), "shape_missing", "")
	assert.ErrorIs(t, err, engine.ErrShapeNotFound)

	rect := s.Shapes()[1]
	_, err = svc.Start(context.Background(), rect.ID, "")
	assert.ErrorIs(t, err, engine.ErrNotFrame)

	n := s.Len()
	boom := errors.New("backend down")
	_, err = NewService(s, &manualGen{err: boom}, quiet).Start(context.Background(), frameID, "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, n, s.Len(), "placeholder removed")
}

type stubRaster struct{}

func (stubRaster) Frame([]document.Shape, document.Shape) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func TestSnapshotAttached(t *testing.T) {
	s, frameID := setup(t)
	gen := &manualGen{}
	svc := NewService(s, gen, quiet, WithRasterizer(stubRaster{}))

	_, err := svc.Start(context.Background(), frameID, "")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gen.last().req.Snapshot)
	assert.True(t, svc.Cancel(frameID))
	assert.False(t, svc.Cancel(frameID))
}

func TestWireframeGenerator(t *testing.T) {
	s, frameID := setup(t)
	s.AddShape(document.NewText(geom.Pt(200, 600), "<b>&</b>", document.DefaultTypography(), document.DefaultStyle()))
	svc := NewService(s, Wireframe{}, quiet)

	id, err := svc.Start(context.Background(), frameID, "hero")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx, frameID))

	block, _ := s.Shape(id)
	markup := block.Generated.Markup
	assert.True(t, strings.HasPrefix(markup, `<div class="frame" title="hero" style="position:relative;width:800px;height:600px">`))
	assert.Contains(t, markup, "Landing page")
	assert.Contains(t, markup, "border-radius:50%")
	assert.Contains(t, markup, "<polyline")
	assert.Contains(t, markup, "&lt;b&gt;&amp;&lt;/b&gt;")
	// card at world (160,180) sits at (60,80) inside the frame
	assert.Contains(t, markup, "left:60px;top:80px;width:320px;height:200px")
}
