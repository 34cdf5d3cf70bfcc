package engine

import (
	"log/slog"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/viewport"
)

const (
	DefaultDrawThreshold    = 1.0
	DefaultFreeDrawInterval = 8 * time.Millisecond
	DefaultFrameInterval    = 16 * time.Millisecond
	DefaultTextPlaceholder  = "Type here..."
)

// Config is the engine tuning block.
type Config struct {
	Viewport viewport.Limits

	// DrawThreshold is the size both draft axes must exceed to commit.
	DrawThreshold float64
	// FreeDrawInterval is the minimum time between free-draw repaints.
	FreeDrawInterval time.Duration

	TextPlaceholder string
	ImageSize       geom.Point
	DrawStyle       document.Style
	FrameLabels     bool
}

func DefaultConfig() Config {
	return Config{
		Viewport:         viewport.DefaultLimits(),
		DrawThreshold:    DefaultDrawThreshold,
		FreeDrawInterval: DefaultFreeDrawInterval,
		TextPlaceholder:  DefaultTextPlaceholder,
		ImageSize:        geom.Point{X: 200, Y: 150},
		DrawStyle:        document.DefaultStyle(),
		FrameLabels:      true,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DrawThreshold <= 0 {
		c.DrawThreshold = d.DrawThreshold
	}
	if c.FreeDrawInterval <= 0 {
		c.FreeDrawInterval = d.FreeDrawInterval
	}
	if c.TextPlaceholder == "" {
		c.TextPlaceholder = d.TextPlaceholder
	}
	if c.ImageSize.X <= 0 || c.ImageSize.Y <= 0 {
		c.ImageSize = d.ImageSize
	}
	if c.DrawStyle.Stroke == "" {
		c.DrawStyle = d.DrawStyle
	}
	return c
}

// Rasterizer renders a frame and the shapes over it to an encoded image.
type Rasterizer interface {
	Frame(shapes []document.Shape, frame document.Shape) ([]byte, error)
}

type Option func(*Engine)

// WithScheduler sets the paint-cycle scheduler used for coalesced pan and
// free-draw updates.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithClock overrides time.Now for the free-draw repaint throttle.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithConfig(c Config) Option {
	return func(e *Engine) { e.cfg = c.withDefaults() }
}

// WithInvalidate registers the callback that asks the host to repaint.
func WithInvalidate(fn func()) Option {
	return func(e *Engine) { e.invalidate = fn }
}

func WithRasterizer(r Rasterizer) Option {
	return func(e *Engine) { e.raster = r }
}
