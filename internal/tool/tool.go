// Package tool tracks the active drawing or selection mode.
package tool

import "fmt"

type Tool int

const (
	Select Tool = iota
	Frame
	Rect
	Ellipse
	FreeDraw
	Arrow
	Line
	Text
	Image
	Eraser
)

var names = [...]string{
	Select:   "select",
	Frame:    "frame",
	Rect:     "rect",
	Ellipse:  "ellipse",
	FreeDraw: "freedraw",
	Arrow:    "arrow",
	Line:     "line",
	Text:     "text",
	Image:    "image",
	Eraser:   "eraser",
}

func (t Tool) String() string {
	if t < 0 || int(t) >= len(names) {
		return fmt.Sprintf("tool(%d)", int(t))
	}
	return names[t]
}

// ParseTool resolves a tool name as sent by toolbar collaborators.
func ParseTool(s string) (Tool, error) {
	for i, n := range names {
		if n == s {
			return Tool(i), nil
		}
	}
	return Select, fmt.Errorf("unknown tool %q", s)
}

// IsShapeDraft reports whether the tool draws a start/current draft that
// is committed on pointer-up.
func (t Tool) IsShapeDraft() bool {
	switch t {
	case Frame, Rect, Ellipse, Arrow, Line:
		return true
	default:
		return false
	}
}

func (t Tool) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tool) UnmarshalText(b []byte) error {
	v, err := ParseTool(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Machine holds the current tool. The zero value starts on Select.
type Machine struct {
	current Tool
}

func (m *Machine) Current() Tool { return m.current }

// Set switches tools and reports whether the caller must clear the
// selection, which is the case for every tool except Select.
func (m *Machine) Set(t Tool) (clearSelection bool) {
	m.current = t
	return t != Select
}
