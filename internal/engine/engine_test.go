package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
	"github.com/inamate/canvas/internal/resize"
	"github.com/inamate/canvas/internal/store"
	"github.com/inamate/canvas/internal/tool"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	*Engine
	store   *store.Store
	sched   *ManualScheduler
	clock   *fakeClock
	repaint int
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store: store.New(),
		sched: NewManualScheduler(),
		clock: &fakeClock{t: time.Unix(1700000000, 0)},
	}
	base := []Option{
		WithScheduler(h.sched),
		WithClock(h.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInvalidate(func() { h.repaint++ }),
	}
	h.Engine = New(h.store, append(base, opts...)...)
	return h
}

func left(x, y float64) PointerEvent {
	return PointerEvent{Client: geom.Pt(x, y)}
}

func (h *harness) drag(from geom.Point, to ...geom.Point) {
	h.PointerDown(left(from.X, from.Y))
	for _, p := range to {
		h.PointerMove(left(p.X, p.Y))
	}
	last := from
	if len(to) > 0 {
		last = to[len(to)-1]
	}
	h.PointerUp(left(last.X, last.Y))
}

func TestDrawRectangleNormalized(t *testing.T) {
	want := geom.Rect{X: 10, Y: 10, Width: 100, Height: 50}

	for _, dir := range [][2]geom.Point{
		{geom.Pt(10, 10), geom.Pt(110, 60)},
		{geom.Pt(110, 60), geom.Pt(10, 10)},
	} {
		h := newHarness(t)
		h.SelectTool(tool.Rect)
		h.drag(dir[0], dir[1])

		shapes := h.store.Shapes()
		require.Len(t, shapes, 1)
		assert.Equal(t, document.ShapeRect, shapes[0].Type)
		assert.Equal(t, want, *shapes[0].Bounds)
		assert.Equal(t, GestureNone, h.Gesture())
		_, ok := h.Draft()
		assert.False(t, ok)
	}
}

func TestDraftDoesNotTouchStore(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Ellipse)
	h.PointerDown(left(0, 0))
	h.PointerMove(left(50, 40))

	d, ok := h.Draft()
	require.True(t, ok)
	assert.Equal(t, geom.Pt(50, 40), d.Current)
	assert.Equal(t, 0, h.store.Len())
	assert.False(t, h.store.CanUndo())

	h.PointerUp(left(60, 40))
	shapes := h.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, geom.Rect{Width: 60, Height: 40}, *shapes[0].Bounds)
}

func TestSmallDrawsCommitNothing(t *testing.T) {
	for _, tl := range []tool.Tool{tool.Rect, tool.Frame, tool.Ellipse, tool.Line, tool.Arrow} {
		h := newHarness(t)
		h.SelectTool(tool.Rect)
		h.SelectTool(tl)

		h.drag(geom.Pt(10, 10), geom.Pt(11, 80))
		h.drag(geom.Pt(10, 10), geom.Pt(90, 9))
		h.drag(geom.Pt(10, 10))

		assert.Equal(t, 0, h.store.Len(), tl)
		assert.False(t, h.store.CanUndo(), tl)
	}
}

func TestLineCommitKeepsDirection(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Arrow)
	h.drag(geom.Pt(100, 100), geom.Pt(20, 40))

	shapes := h.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, document.ShapeArrow, shapes[0].Type)
	assert.Equal(t, document.Segment{Start: geom.Pt(100, 100), End: geom.Pt(20, 40)}, *shapes[0].Segment)
}

func TestFrameNumbers(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Frame)
	h.drag(geom.Pt(0, 0), geom.Pt(100, 100))
	h.SelectTool(tool.Frame)
	h.drag(geom.Pt(200, 0), geom.Pt(300, 100))

	shapes := h.store.Shapes()
	require.Len(t, shapes, 2)
	assert.Equal(t, 1, shapes[0].Frame.Number)
	assert.Equal(t, 2, shapes[1].Frame.Number)
}

func TestDrawRespectsViewport(t *testing.T) {
	h := newHarness(t)
	h.SetSurfaceOrigin(geom.Pt(100, 50))
	h.Viewport().SetTranslate(geom.Pt(20, 10))
	h.Viewport().SetScale(2)

	h.SelectTool(tool.Rect)
	// client (120,60) is screen (20,10), world (0,0)
	h.drag(geom.Pt(120, 60), geom.Pt(320, 160))

	shapes := h.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, geom.Rect{Width: 100, Height: 50}, *shapes[0].Bounds)
}

func TestMoveSelectionOnlyChangesPosition(t *testing.T) {
	h := newHarness(t)
	fill := "#123456"
	style := document.Style{Stroke: "#abcdef", StrokeWidth: 3, Fill: &fill}
	rect := document.NewRect(geom.Rect{X: 0, Y: 0, Width: 50, Height: 50}, style)
	text := document.NewText(geom.Pt(200, 200), "Title", document.DefaultTypography(), style)
	line := document.NewLine(geom.Pt(400, 0), geom.Pt(500, 100), style)
	for _, s := range []document.Shape{rect, text, line} {
		_, err := h.store.AddShape(s)
		require.NoError(t, err)
	}
	h.store.SetSelection(rect.ID, text.ID, line.ID)
	h.Viewport().SetScale(2)

	// screen (50,50) is world (25,25) on the rect
	h.PointerDown(left(50, 50))
	h.PointerMove(left(60, 70))
	h.PointerMove(left(70, 90)) // world delta (10,20)
	h.PointerUp(left(70, 90))

	gotRect, _ := h.store.Shape(rect.ID)
	gotText, _ := h.store.Shape(text.ID)
	gotLine, _ := h.store.Shape(line.ID)

	assert.Equal(t, geom.Rect{X: 10, Y: 20, Width: 50, Height: 50}, *gotRect.Bounds)
	assert.Equal(t, geom.Pt(210, 220), gotText.Text.Position)
	assert.Equal(t, document.Segment{Start: geom.Pt(410, 20), End: geom.Pt(510, 120)}, *gotLine.Segment)

	for _, s := range []document.Shape{gotRect, gotText, gotLine} {
		assert.Equal(t, style, s.Style)
	}
	assert.Equal(t, text.Text.Typography, gotText.Text.Typography)
	assert.Equal(t, text.Text.Content, gotText.Text.Content)
}

func TestSelectClickReplacesOrExtends(t *testing.T) {
	h := newHarness(t)
	a, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 10, Height: 10}, document.DefaultStyle()))
	b, _ := h.store.AddShape(document.NewRect(geom.Rect{X: 20, Width: 10, Height: 10}, document.DefaultStyle()))

	h.drag(geom.Pt(5, 5))
	assert.Equal(t, []string{a}, h.store.SelectedIDs())

	h.drag(geom.Pt(25, 5))
	assert.Equal(t, []string{b}, h.store.SelectedIDs())

	h.PointerDown(PointerEvent{Client: geom.Pt(5, 5), Modifiers: Modifiers{Multi: true}})
	h.PointerUp(left(5, 5))
	assert.Equal(t, []string{a, b}, h.store.SelectedIDs())

	// empty canvas clears
	h.drag(geom.Pt(500, 500))
	assert.Empty(t, h.store.SelectedIDs())
}

func TestMoveAgainstUntouchedOrigin(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 10, Height: 10}, document.DefaultStyle()))
	h.LoadProject(h.store.Project())

	h.PointerDown(left(5, 5))
	for i := 1; i <= 10; i++ {
		h.PointerMove(left(5+float64(i), 5))
	}
	h.PointerUp(left(15, 5))

	s, _ := h.store.Shape(id)
	assert.Equal(t, 10.0, s.Bounds.X)

	// each move contributed a history entry
	undos := 0
	for h.Undo() {
		undos++
	}
	assert.Equal(t, 10, undos)
	s, _ = h.store.Shape(id)
	assert.Equal(t, 0.0, s.Bounds.X)
}

func TestEraserRemovesOncePerGesture(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 50, Height: 50}, document.DefaultStyle()))
	other, _ := h.store.AddShape(document.NewRect(geom.Rect{X: 200, Width: 50, Height: 50}, document.DefaultStyle()))
	h.LoadProject(h.store.Project())

	h.SelectTool(tool.Eraser)
	h.PointerDown(left(10, 10))
	h.PointerMove(left(100, 10))
	h.PointerMove(left(20, 20))
	h.PointerMove(left(10, 10))
	h.PointerUp(left(10, 10))

	_, ok := h.store.Shape(id)
	assert.False(t, ok)
	_, ok = h.store.Shape(other)
	assert.True(t, ok)

	require.True(t, h.Undo())
	assert.False(t, h.store.CanUndo(), "exactly one removal recorded")
	assert.Equal(t, 2, h.store.Len())
}

func TestEraserHitsOnMove(t *testing.T) {
	h := newHarness(t)
	h.store.AddShape(document.NewLine(geom.Pt(0, 100), geom.Pt(100, 100), document.DefaultStyle()))

	h.SelectTool(tool.Eraser)
	h.drag(geom.Pt(50, 0), geom.Pt(50, 50), geom.Pt(50, 96))
	assert.Equal(t, 0, h.store.Len())
}

func TestTextToolCommitsAndReturnsToSelect(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Text)
	h.PointerDown(left(40, 30))
	h.PointerUp(left(40, 30))

	shapes := h.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, document.ShapeText, shapes[0].Type)
	assert.Equal(t, DefaultTextPlaceholder, shapes[0].Text.Content)
	assert.Equal(t, geom.Pt(40, 30), shapes[0].Text.Position)
	assert.Equal(t, tool.Select, h.Tool())
	assert.Equal(t, []string{shapes[0].ID}, h.store.SelectedIDs())
}

func TestImageToolRespectsLimit(t *testing.T) {
	h := newHarness(t)
	for i := range store.MaxImages + 1 {
		h.SelectTool(tool.Image)
		h.drag(geom.Pt(float64(i)*300, 0))
	}
	assert.Equal(t, store.MaxImages, h.store.ImageCount())
	assert.Equal(t, tool.Image, h.Tool(), "rejected placement keeps the tool")

	img := h.store.Shapes()[0]
	assert.Equal(t, geom.Rect{Width: 200, Height: 150}, *img.Bounds)
}

func TestFreeDraw(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.FreeDraw)

	h.PointerDown(left(0, 0))
	h.PointerMove(left(5, 5))
	h.PointerMove(left(10, 0))
	assert.Len(t, h.FreeDrawBuffer(), 3)
	assert.Equal(t, 0, h.store.Len())

	h.PointerUp(left(10, 0))
	shapes := h.store.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 0}}, shapes[0].Points)
	assert.Nil(t, h.FreeDrawBuffer())

	// a click alone never reaches two points
	h.drag(geom.Pt(50, 50))
	assert.Equal(t, 1, h.store.Len())
}

func TestFreeDrawRepaintThrottle(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.FreeDraw)
	h.PointerDown(left(0, 0))
	require.Equal(t, 1, h.sched.Pending())

	start := h.repaint
	h.clock.Advance(3 * time.Millisecond)
	h.sched.Flush()
	assert.Equal(t, start, h.repaint, "too soon")
	assert.Equal(t, 1, h.sched.Pending(), "loop reschedules itself")

	h.clock.Advance(5 * time.Millisecond)
	h.sched.Flush()
	assert.Equal(t, start+1, h.repaint)

	h.PointerUp(left(0, 0))
	assert.Equal(t, 0, h.sched.Pending())
}

func TestPanCoalescesMoves(t *testing.T) {
	h := newHarness(t)
	h.PointerDown(PointerEvent{Client: geom.Pt(100, 100), Button: ButtonMiddle})
	assert.Equal(t, GesturePan, h.Gesture())

	h.PointerMove(PointerEvent{Client: geom.Pt(110, 100)})
	h.PointerMove(PointerEvent{Client: geom.Pt(120, 100)})
	h.PointerMove(PointerEvent{Client: geom.Pt(130, 90)})
	assert.Equal(t, 1, h.sched.Pending())
	assert.Equal(t, geom.Point{}, h.Viewport().Translate)

	assert.Equal(t, 1, h.sched.Flush())
	assert.Equal(t, geom.Pt(30, -10), h.Viewport().Translate)

	h.PointerMove(PointerEvent{Client: geom.Pt(140, 90)})
	h.PointerUp(PointerEvent{Client: geom.Pt(150, 100)})
	assert.Equal(t, 0, h.sched.Pending())
	assert.Equal(t, geom.Pt(50, 0), h.Viewport().Translate)
	assert.False(t, h.Viewport().Panning())
}

func TestPanCancelDropsPendingUpdate(t *testing.T) {
	h := newHarness(t)
	h.PointerDown(PointerEvent{Client: geom.Pt(0, 0), Button: ButtonRight})
	h.PointerMove(PointerEvent{Client: geom.Pt(40, 40)})
	h.PointerCancel()

	assert.Equal(t, 0, h.sched.Flush())
	assert.Equal(t, geom.Point{}, h.Viewport().Translate)
}

func TestHandAndShiftPanning(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Rect)
	h.PointerDown(PointerEvent{Client: geom.Pt(0, 0), Modifiers: Modifiers{Hand: true}})
	assert.Equal(t, GesturePan, h.Gesture())
	h.PointerUp(left(10, 0))
	assert.Equal(t, 0, h.store.Len())

	h.SelectTool(tool.Select)
	h.PointerDown(PointerEvent{Client: geom.Pt(0, 0), Modifiers: Modifiers{Shift: true}})
	assert.Equal(t, "shift-panning", h.Viewport().Mode.String())
	h.PointerUp(left(0, 25))
	assert.Equal(t, geom.Pt(10, 25), h.Viewport().Translate)
}

func TestCancelDiscardsDrafts(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Rect)
	h.PointerDown(left(0, 0))
	h.PointerMove(left(100, 100))
	h.PointerCancel()

	h.SelectTool(tool.FreeDraw)
	h.PointerDown(left(0, 0))
	h.PointerMove(left(100, 100))
	h.PointerMove(left(100, 200))
	h.PointerCancel()

	assert.Equal(t, 0, h.store.Len())
	assert.Nil(t, h.FreeDrawBuffer())
	assert.Equal(t, 0, h.sched.Pending())
}

func TestSelectToolCancelsGesture(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 10, Height: 10}, document.DefaultStyle()))
	h.store.SetSelection(id)

	h.PointerDown(PointerEvent{Client: geom.Pt(0, 0), Button: ButtonMiddle})
	h.PointerMove(PointerEvent{Client: geom.Pt(50, 50)})

	h.SelectTool(tool.Ellipse)
	assert.Equal(t, GestureNone, h.Gesture())
	assert.Equal(t, 0, h.sched.Pending())
	assert.Empty(t, h.store.SelectedIDs())

	h.store.SetSelection(id)
	h.SelectTool(tool.Select)
	assert.Equal(t, []string{id}, h.store.SelectedIDs())
}

func TestWheel(t *testing.T) {
	h := newHarness(t)
	h.Wheel(WheelEvent{Delta: geom.Pt(10, 20)})
	assert.Equal(t, geom.Pt(-10, -20), h.Viewport().Translate)

	h.SetSurfaceOrigin(geom.Pt(10, 10))
	before := h.Viewport().ScreenToWorld(geom.Pt(90, 90))
	h.Wheel(WheelEvent{Delta: geom.Pt(0, -100), Client: geom.Pt(100, 100), Zoom: true})
	after := h.Viewport().ScreenToWorld(geom.Pt(90, 90))

	assert.InDelta(t, 1.1, h.Viewport().Scale, 1e-12)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestResizeGesture(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{X: 10, Y: 10, Width: 100, Height: 50}, document.DefaultStyle()))

	require.True(t, h.ResizeStart(id, resize.BottomRight, geom.Pt(110, 60)))
	h.ResizeMove(geom.Pt(150, 90))
	h.ResizeMove(geom.Pt(210, 110))
	h.ResizeEnd()

	s, _ := h.store.Shape(id)
	assert.Equal(t, geom.Rect{X: 10, Y: 10, Width: 200, Height: 100}, *s.Bounds)

	require.True(t, h.ResizeStart(id, resize.TopLeft, geom.Pt(10, 10)))
	h.PointerMove(left(190, 100))
	h.PointerUp(left(190, 100))

	s, _ = h.store.Shape(id)
	assert.Equal(t, 210.0, s.Bounds.Right())
	assert.Equal(t, 110.0, s.Bounds.Bottom())
	assert.Equal(t, geom.Rect{X: 190, Y: 100, Width: 20, Height: 10}, *s.Bounds)
	assert.Equal(t, GestureNone, h.Gesture())
}

func TestResizeRejectsText(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewText(geom.Pt(0, 0), "x", document.DefaultTypography(), document.DefaultStyle()))
	assert.False(t, h.ResizeStart(id, resize.BottomRight, geom.Pt(0, 0)))
	assert.False(t, h.ResizeStart("shape_missing", resize.BottomRight, geom.Pt(0, 0)))
}

func TestResizeShapeDeletedMidGesture(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 100, Height: 100}, document.DefaultStyle()))
	require.True(t, h.ResizeStart(id, resize.BottomRight, geom.Pt(100, 100)))

	h.store.RemoveShape(id)
	h.ResizeMove(geom.Pt(200, 200))
	assert.Equal(t, GestureNone, h.Gesture())
	assert.Equal(t, 0, h.store.Len())
}

func TestLoadProjectResetsInteraction(t *testing.T) {
	h := newHarness(t)
	h.SelectTool(tool.Rect)
	h.drag(geom.Pt(0, 0), geom.Pt(50, 50))
	h.PointerDown(left(0, 0))
	h.PointerMove(left(20, 20))
	h.Wheel(WheelEvent{Delta: geom.Pt(30, 40)})
	h.Wheel(WheelEvent{Delta: geom.Pt(0, -1), Zoom: true})

	h.LoadProject(document.NewSampleProject())
	_, ok := h.Draft()
	assert.False(t, ok)
	assert.Equal(t, GestureNone, h.Gesture())
	assert.Equal(t, geom.Point{}, h.Viewport().Translate)
	assert.Equal(t, 1.0, h.Viewport().Scale)
	assert.False(t, h.store.CanUndo())
	assert.Equal(t, 6, h.store.Len())
}

func TestDeleteSelectAllNudge(t *testing.T) {
	h := newHarness(t)
	h.LoadProject(document.NewSampleProject())

	h.SelectAll()
	assert.Len(t, h.store.SelectedIDs(), 6)

	before := h.store.Shapes()
	h.NudgeSelected(1, -1)
	after := h.store.Shapes()
	for i := range before {
		assert.Equal(t, document.Bounds(before[i]).Translate(geom.Pt(1, -1)), document.Bounds(after[i]))
	}

	assert.Equal(t, 6, h.DeleteSelected())
	assert.Equal(t, 0, h.store.Len())
	require.True(t, h.Undo())
	assert.Equal(t, 6, h.store.Len())
	require.True(t, h.Redo())
	assert.Equal(t, 0, h.store.Len())
}

func TestZoomToFit(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{X: 100, Y: 100, Width: 400, Height: 200}, document.DefaultStyle()))

	require.True(t, h.ZoomToFit(id, geom.Pt(1000, 1000), 100))
	assert.InDelta(t, 2.0, h.Viewport().Scale, 1e-12)
	assert.False(t, h.ZoomToFit("shape_missing", geom.Pt(1000, 1000), 0))
}

type fakeRasterizer struct {
	frame  document.Shape
	shapes int
}

func (f *fakeRasterizer) Frame(shapes []document.Shape, frame document.Shape) ([]byte, error) {
	f.frame = frame
	f.shapes = len(shapes)
	return []byte("png"), nil
}

func TestFrameSnapshot(t *testing.T) {
	h := newHarness(t)
	_, err := h.FrameSnapshot("x")
	assert.ErrorIs(t, err, ErrNoRasterizer)

	r := &fakeRasterizer{}
	h = newHarness(t, WithRasterizer(r))
	h.LoadProject(document.NewSampleProject())

	var frameID, rectID string
	for _, s := range h.store.Shapes() {
		switch s.Type {
		case document.ShapeFrame:
			frameID = s.ID
		case document.ShapeRect:
			rectID = s.ID
		}
	}

	out, err := h.FrameSnapshot(frameID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), out)
	assert.Equal(t, frameID, r.frame.ID)
	assert.Equal(t, 6, r.shapes)

	_, err = h.FrameSnapshot(rectID)
	assert.ErrorIs(t, err, ErrNotFrame)
	_, err = h.FrameSnapshot("shape_missing")
	assert.ErrorIs(t, err, ErrShapeNotFound)
}

func TestRenderIncludesDraftAndSelection(t *testing.T) {
	h := newHarness(t)
	id, _ := h.store.AddShape(document.NewRect(geom.Rect{Width: 10, Height: 10}, document.DefaultStyle()))
	h.store.SetSelection(id)
	assert.Len(t, h.Render(), 2)

	h.SelectTool(tool.Line)
	h.PointerDown(left(100, 100))
	h.PointerMove(left(150, 150))

	cmds := h.Render()
	require.Len(t, cmds, 2)
	assert.Equal(t, "draft", cmds[1].Layer)
	assert.Empty(t, cmds[1].ObjectID)
	assert.Equal(t, cmds, h.Render())
	assert.Contains(t, h.RenderJSON(), `"layer":"draft"`)
}
