// Package viewport holds the pan/zoom state of the canvas surface and the
// mapping between screen and world coordinates.
package viewport

import (
	"math"

	"github.com/inamate/canvas/internal/geom"
)

const (
	DefaultMinScale = 0.1
	DefaultMaxScale = 10.0
	DefaultZoomStep = 1.1
)

type Mode int

const (
	ModeIdle Mode = iota
	ModePanning
	ModeShiftPanning
)

func (m Mode) String() string {
	switch m {
	case ModePanning:
		return "panning"
	case ModeShiftPanning:
		return "shift-panning"
	default:
		return "idle"
	}
}

// ScreenToWorld maps a surface-relative point to world space.
func ScreenToWorld(p, translate geom.Point, scale float64) geom.Point {
	return p.Sub(translate).Scale(1 / scale)
}

// WorldToScreen maps a world point to surface-relative coordinates.
func WorldToScreen(p, translate geom.Point, scale float64) geom.Point {
	return p.Scale(scale).Add(translate)
}

// Limits bounds the zoom range and sets the per-notch wheel factor.
type Limits struct {
	MinScale float64
	MaxScale float64
	ZoomStep float64
}

func DefaultLimits() Limits {
	return Limits{MinScale: DefaultMinScale, MaxScale: DefaultMaxScale, ZoomStep: DefaultZoomStep}
}

func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if !(l.MinScale > 0) {
		l.MinScale = d.MinScale
	}
	if !(l.MaxScale >= l.MinScale) {
		l.MaxScale = max(d.MaxScale, l.MinScale)
	}
	if !(l.ZoomStep > 1) {
		l.ZoomStep = d.ZoomStep
	}
	return l
}

// Viewport is the pan/zoom state. The zero value is not usable; call New.
type Viewport struct {
	Translate geom.Point `json:"translate"`
	Scale     float64    `json:"scale"`
	Mode      Mode       `json:"-"`

	limits Limits

	panAnchor    geom.Point
	panTranslate geom.Point
}

func New(limits Limits) *Viewport {
	return &Viewport{Scale: 1, limits: limits.normalized()}
}

func (v *Viewport) Limits() Limits { return v.limits }

func (v *Viewport) ScreenToWorld(p geom.Point) geom.Point {
	return ScreenToWorld(p, v.Translate, v.Scale)
}

func (v *Viewport) WorldToScreen(p geom.Point) geom.Point {
	return WorldToScreen(p, v.Translate, v.Scale)
}

// Matrix returns the world to screen transform, Translate(t) · Scale(s).
func (v *Viewport) Matrix() geom.Matrix2D {
	return geom.Translation(v.Translate.X, v.Translate.Y).Multiply(geom.Scaling(v.Scale, v.Scale))
}

func (v *Viewport) clamp(s float64) float64 {
	if math.IsNaN(s) || s <= 0 {
		return v.limits.MinScale
	}
	if math.IsInf(s, 1) {
		return v.limits.MaxScale
	}
	return min(max(s, v.limits.MinScale), v.limits.MaxScale)
}

// SetScale sets the scale, clamped to the configured range.
func (v *Viewport) SetScale(s float64) {
	v.Scale = v.clamp(s)
}

// WheelZoom zooms out for positive deltaY and in otherwise, keeping the
// world point under origin fixed on screen.
func (v *Viewport) WheelZoom(deltaY float64, origin geom.Point) {
	if deltaY == 0 {
		return
	}
	world := v.ScreenToWorld(origin)

	next := v.Scale * v.limits.ZoomStep
	if deltaY > 0 {
		next = v.Scale / v.limits.ZoomStep
	}
	v.Scale = v.clamp(next)

	v.Translate = origin.Sub(world.Scale(v.Scale))
}

// WheelPan shifts the content opposite to the scroll delta.
func (v *Viewport) WheelPan(dx, dy float64) {
	v.Translate = v.Translate.Sub(geom.Point{X: dx, Y: dy})
}

// PanStart enters a pan gesture anchored at screen.
func (v *Viewport) PanStart(screen geom.Point, shift bool) {
	v.Mode = ModePanning
	if shift {
		v.Mode = ModeShiftPanning
	}
	v.panAnchor = screen
	v.panTranslate = v.Translate
}

// PanTarget returns the translate a pointer at screen would produce without
// applying it. Outside a pan it returns the current translate.
func (v *Viewport) PanTarget(screen geom.Point) geom.Point {
	if v.Mode == ModeIdle {
		return v.Translate
	}
	return v.panTranslate.Add(screen.Sub(v.panAnchor))
}

func (v *Viewport) SetTranslate(t geom.Point) {
	v.Translate = t
}

func (v *Viewport) PanEnd() {
	v.Mode = ModeIdle
}

func (v *Viewport) Panning() bool {
	return v.Mode != ModeIdle
}

func (v *Viewport) Reset() {
	v.Translate = geom.Point{}
	v.Scale = 1
	v.Mode = ModeIdle
}

// FitRect zooms and pans so world fills a surface of the given size with
// padding on every side.
func (v *Viewport) FitRect(world geom.Rect, surface geom.Point, padding float64) {
	availW := surface.X - 2*padding
	availH := surface.Y - 2*padding
	if world.Width <= 0 || world.Height <= 0 || availW <= 0 || availH <= 0 {
		v.Scale = v.clamp(1)
	} else {
		v.Scale = v.clamp(min(availW/world.Width, availH/world.Height))
	}

	center := world.Center()
	v.Translate = surface.Scale(0.5).Sub(center.Scale(v.Scale))
}
