package engine

import (
	"fmt"

	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/tool"
)

type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// ParseButton maps a DOM MouseEvent.button value.
func ParseButton(b int) Button {
	switch b {
	case 1:
		return ButtonMiddle
	case 2:
		return ButtonRight
	default:
		return ButtonLeft
	}
}

// Modifiers are the keys held during a pointer event.
type Modifiers struct {
	Shift bool `json:"shift,omitempty"`
	// Multi is ctrl or meta: extend the selection.
	Multi bool `json:"multi,omitempty"`
	// Hand is the keyboard hand tool (space held).
	Hand bool `json:"hand,omitempty"`
}

// PointerEvent carries client-space coordinates.
type PointerEvent struct {
	Client    geom.Point
	Button    Button
	Modifiers Modifiers
}

// WheelEvent zooms around Client when Zoom is set and pans otherwise.
type WheelEvent struct {
	Delta  geom.Point
	Client geom.Point
	Zoom   bool
}

type GestureKind int

const (
	GestureNone GestureKind = iota
	GesturePan
	GestureMove
	GestureDraw
	GestureFreeDraw
	GestureErase
	GestureResize
)

func (g GestureKind) String() string {
	switch g {
	case GesturePan:
		return "pan"
	case GestureMove:
		return "move"
	case GestureDraw:
		return "draw"
	case GestureFreeDraw:
		return "freedraw"
	case GestureErase:
		return "erase"
	case GestureResize:
		return "resize"
	case GestureNone:
		return "none"
	default:
		return fmt.Sprintf("gesture(%d)", int(g))
	}
}

// Draft is an uncommitted shape preview held outside the store.
type Draft struct {
	Tool    tool.Tool  `json:"tool"`
	Start   geom.Point `json:"start"`
	Current geom.Point `json:"current"`
}

// Box is the normalized box spanned by the draft.
func (d Draft) Box() geom.Rect {
	return geom.Normalize(d.Start, d.Current)
}
