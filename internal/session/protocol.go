package session

import (
	"encoding/json"

	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/render"
)

type Message struct {
	Type     string          `json:"type"`
	CanvasID string          `json:"canvasId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client -> server input
	TypePointerDown   = "pointer.down"
	TypePointerMove   = "pointer.move"
	TypePointerUp     = "pointer.up"
	TypePointerCancel = "pointer.cancel"
	TypeWheel         = "wheel"
	TypeSurface       = "surface.origin"
	TypeToolSelect    = "tool.select"
	TypeResizeStart   = "resize.start"
	TypeResizeMove    = "resize.move"
	TypeResizeEnd     = "resize.end"

	// Client -> server commands
	TypeUndo            = "history.undo"
	TypeRedo            = "history.redo"
	TypeSelectionDelete = "selection.delete"
	TypeSelectionAll    = "selection.all"
	TypeSelectionNudge  = "selection.nudge"
	TypeProjectLoad     = "project.load"
	TypeProjectSample   = "project.sample"
	TypeZoomToFit       = "viewport.fit"
	TypeGenerate        = "generate.start"
	TypeGenerateCancel  = "generate.cancel"

	// Server -> client
	TypeWelcome = "welcome"
	TypeRender  = "render"
	TypeError   = "error"

	// Server -> client presence
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
)

// PointerPayload carries client coordinates and a DOM button index.
type PointerPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button,omitempty"`
	engine.Modifiers
}

func (p PointerPayload) Event() engine.PointerEvent {
	return engine.PointerEvent{
		Client:    geom.Pt(p.X, p.Y),
		Button:    engine.ParseButton(p.Button),
		Modifiers: p.Modifiers,
	}
}

type WheelPayload struct {
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom bool    `json:"zoom,omitempty"`
}

type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ToolPayload struct {
	Tool string `json:"tool"`
}

type ResizePayload struct {
	ShapeID string  `json:"shapeId,omitempty"`
	Corner  string  `json:"corner,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type NudgePayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type FitPayload struct {
	ShapeID string  `json:"shapeId,omitempty"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding float64 `json:"padding,omitempty"`
}

type GeneratePayload struct {
	FrameID string `json:"frameId"`
	Prompt  string `json:"prompt,omitempty"`
}

type GenerateStartedPayload struct {
	FrameID string `json:"frameId"`
	ShapeID string `json:"shapeId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
	CanvasID string `json:"canvasId"`
}

type ViewportPayload struct {
	Translate geom.Point `json:"translate"`
	Scale     float64    `json:"scale"`
	Mode      string     `json:"mode"`
}

type RenderPayload struct {
	Commands  []render.DrawCommand `json:"commands"`
	Viewport  ViewportPayload      `json:"viewport"`
	Selection []string             `json:"selection"`
	Tool      string               `json:"tool"`
	Draft     *engine.Draft        `json:"draft,omitempty"`
	CanUndo   bool                 `json:"canUndo"`
	CanRedo   bool                 `json:"canRedo"`
}

type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Error   string `json:"error"`
}

// PresencePayload is one client as the others see it. Cursor is in world
// space and absent until the client's first pointer event.
type PresencePayload struct {
	ClientID    string      `json:"clientId"`
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName,omitempty"`
	Cursor      *geom.Point `json:"cursor,omitempty"`
	Tool        string      `json:"tool,omitempty"`
	Gesture     string      `json:"gesture,omitempty"`
}

type PresenceStatePayload struct {
	Presences []PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

func newMessage(typ string, payload any) *Message {
	msg := &Message{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			msg.Payload = data
		}
	}
	return msg
}
