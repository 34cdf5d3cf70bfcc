//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/hittest"
	"github.com/inamate/canvas/internal/resize"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/tool"
)

var (
	eng          *engine.Engine
	onInvalidate js.Value
)

func main() {
	eng = engine.New(store.New(),
		engine.WithScheduler(rafScheduler{}),
		engine.WithInvalidate(invalidate),
	)
	eng.Store().Subscribe(func(store.Change) { invalidate() })

	// Create the engine API object
	canvasEngine := js.Global().Get("Object").New()

	// --- Input (frontend → engine) ---
	canvasEngine.Set("pointerDown", js.FuncOf(pointerDown))
	canvasEngine.Set("pointerMove", js.FuncOf(pointerMove))
	canvasEngine.Set("pointerUp", js.FuncOf(pointerUp))
	canvasEngine.Set("pointerCancel", js.FuncOf(pointerCancel))
	canvasEngine.Set("wheel", js.FuncOf(wheel))
	canvasEngine.Set("setSurfaceOrigin", js.FuncOf(setSurfaceOrigin))
	canvasEngine.Set("resizeStart", js.FuncOf(resizeStart))
	canvasEngine.Set("resizeMove", js.FuncOf(resizeMove))
	canvasEngine.Set("resizeEnd", js.FuncOf(resizeEnd))

	// --- Commands ---
	canvasEngine.Set("selectTool", js.FuncOf(selectTool))
	canvasEngine.Set("undo", js.FuncOf(undo))
	canvasEngine.Set("redo", js.FuncOf(redo))
	canvasEngine.Set("deleteSelected", js.FuncOf(deleteSelected))
	canvasEngine.Set("selectAll", js.FuncOf(selectAll))
	canvasEngine.Set("nudge", js.FuncOf(nudge))
	canvasEngine.Set("zoomToFit", js.FuncOf(zoomToFit))
	canvasEngine.Set("loadProject", js.FuncOf(loadProject))
	canvasEngine.Set("loadSampleProject", js.FuncOf(loadSampleProject))
	canvasEngine.Set("updateShape", js.FuncOf(updateShape))
	canvasEngine.Set("onInvalidate", js.FuncOf(setInvalidate))

	// --- Queries (frontend ← engine) ---
	canvasEngine.Set("render", js.FuncOf(render))
	canvasEngine.Set("hitTest", js.FuncOf(hitTest))
	canvasEngine.Set("getProject", js.FuncOf(getProject))
	canvasEngine.Set("getState", js.FuncOf(getState))

	// Register on global scope
	js.Global().Set("canvasEngine", canvasEngine)

	// Signal that WASM is ready
	js.Global().Set("canvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func invalidate() {
	if onInvalidate.Type() == js.TypeFunction {
		onInvalidate.Invoke()
	}
}

func ok() any {
	return js.ValueOf(map[string]any{"ok": true})
}

func fail(msg string) any {
	return js.ValueOf(map[string]any{"error": msg})
}

func arg(args []js.Value, i int) js.Value {
	if i < len(args) {
		return args[i]
	}
	return js.Undefined()
}

func num(args []js.Value, i int) float64 {
	if v := arg(args, i); v.Type() == js.TypeNumber {
		return v.Float()
	}
	return 0
}

func flag(args []js.Value, i int) bool {
	v := arg(args, i)
	return v.Type() == js.TypeBoolean && v.Bool()
}

// pointerEvent reads (clientX, clientY, button, shift, multi, hand).
func pointerEvent(args []js.Value) engine.PointerEvent {
	return engine.PointerEvent{
		Client: geom.Pt(num(args, 0), num(args, 1)),
		Button: engine.ParseButton(int(num(args, 2))),
		Modifiers: engine.Modifiers{
			Shift: flag(args, 3),
			Multi: flag(args, 4),
			Hand:  flag(args, 5),
		},
	}
}

// --- Input Handlers ---

func pointerDown(this js.Value, args []js.Value) any {
	eng.PointerDown(pointerEvent(args))
	return nil
}

func pointerMove(this js.Value, args []js.Value) any {
	eng.PointerMove(pointerEvent(args))
	return nil
}

func pointerUp(this js.Value, args []js.Value) any {
	eng.PointerUp(pointerEvent(args))
	return nil
}

func pointerCancel(this js.Value, args []js.Value) any {
	eng.PointerCancel()
	return nil
}

// wheel reads (deltaX, deltaY, clientX, clientY, zoom).
func wheel(this js.Value, args []js.Value) any {
	eng.Wheel(engine.WheelEvent{
		Delta:  geom.Pt(num(args, 0), num(args, 1)),
		Client: geom.Pt(num(args, 2), num(args, 3)),
		Zoom:   flag(args, 4),
	})
	return nil
}

func setSurfaceOrigin(this js.Value, args []js.Value) any {
	eng.SetSurfaceOrigin(geom.Pt(num(args, 0), num(args, 1)))
	return nil
}

// resizeStart reads (shapeId, corner, clientX, clientY).
func resizeStart(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return fail("missing resize arguments")
	}
	corner, err := resize.ParseCorner(args[1].String())
	if err != nil {
		return fail(err.Error())
	}
	if !eng.ResizeStart(args[0].String(), corner, geom.Pt(num(args, 2), num(args, 3))) {
		return fail("shape cannot be resized")
	}
	return ok()
}

func resizeMove(this js.Value, args []js.Value) any {
	eng.ResizeMove(geom.Pt(num(args, 0), num(args, 1)))
	return nil
}

func resizeEnd(this js.Value, args []js.Value) any {
	eng.ResizeEnd()
	return nil
}

// --- Command Handlers ---

func selectTool(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return fail("missing tool name")
	}
	t, err := tool.ParseTool(args[0].String())
	if err != nil {
		return fail(err.Error())
	}
	eng.SelectTool(t)
	return ok()
}

func undo(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Undo())
}

func redo(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.Redo())
}

func deleteSelected(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.DeleteSelected())
}

func selectAll(this js.Value, args []js.Value) any {
	eng.SelectAll()
	return nil
}

func nudge(this js.Value, args []js.Value) any {
	eng.NudgeSelected(num(args, 0), num(args, 1))
	return nil
}

// zoomToFit reads (shapeId, surfaceWidth, surfaceHeight, padding).
func zoomToFit(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return fail("missing zoomToFit arguments")
	}
	return js.ValueOf(eng.ZoomToFit(args[0].String(), geom.Pt(num(args, 1), num(args, 2)), num(args, 3)))
}

func loadProject(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return fail("missing project JSON")
	}
	p, err := document.DecodeProject([]byte(args[0].String()))
	if err != nil {
		return fail(err.Error())
	}
	eng.LoadProject(p)
	return ok()
}

func loadSampleProject(this js.Value, args []js.Value) any {
	eng.LoadProject(document.NewSampleProject())
	return ok()
}

// updateShape reads (shapeId, patchJSON). Used by text editing and other
// host-side property panels.
func updateShape(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return fail("missing shape id or patch")
	}
	var patch document.Patch
	if err := json.Unmarshal([]byte(args[1].String()), &patch); err != nil {
		return fail("invalid patch: " + err.Error())
	}
	if !eng.Store().UpdateShape(args[0].String(), patch) {
		return fail("shape not found")
	}
	return ok()
}

func setInvalidate(this js.Value, args []js.Value) any {
	onInvalidate = arg(args, 0)
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.RenderJSON())
}

// hitTest takes surface coordinates and returns the topmost shape id.
func hitTest(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	world := eng.Viewport().ScreenToWorld(geom.Pt(num(args, 0), num(args, 1)))
	s, found := hittest.ShapeAtPoint(eng.Store().Shapes(), world)
	if !found {
		return js.ValueOf("")
	}
	return js.ValueOf(s.ID)
}

func getProject(this js.Value, args []js.Value) any {
	data, err := json.Marshal(eng.Store().Project())
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(string(data))
}

type state struct {
	Tool      string       `json:"tool"`
	Gesture   string       `json:"gesture"`
	Selection []string     `json:"selection"`
	Translate geom.Point   `json:"translate"`
	Scale     float64      `json:"scale"`
	Mode      string       `json:"mode"`
	CanUndo   bool         `json:"canUndo"`
	CanRedo   bool         `json:"canRedo"`
	Resize    *resizeState `json:"resize,omitempty"`
}

type resizeState struct {
	ShapeID string    `json:"shapeId"`
	Corner  string    `json:"corner"`
	Bounds  geom.Rect `json:"bounds"`
}

func getState(this js.Value, args []js.Value) any {
	vp := eng.Viewport()
	st := state{
		Tool:      eng.Tool().String(),
		Gesture:   eng.Gesture().String(),
		Selection: eng.Store().SelectedIDs(),
		Translate: vp.Translate,
		Scale:     vp.Scale,
		Mode:      vp.Mode.String(),
		CanUndo:   eng.Store().CanUndo(),
		CanRedo:   eng.Store().CanRedo(),
	}
	if g, ok := eng.Resizing(); ok {
		st.Resize = &resizeState{ShapeID: g.ShapeID, Corner: g.Corner.String(), Bounds: g.Bounds()}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(string(data))
}
