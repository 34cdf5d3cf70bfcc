package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
)

func rect(x, y float64) document.Shape {
	return document.NewRect(geom.Rect{X: x, Y: y, Width: 10, Height: 10}, document.DefaultStyle())
}

func TestAddShapeStampsFrames(t *testing.T) {
	s := New()

	id1, err := s.AddShape(document.NewFrame(geom.Rect{Width: 100, Height: 100}, document.Style{}))
	require.NoError(t, err)
	id2, err := s.AddShape(document.NewFrame(geom.Rect{Width: 100, Height: 100}, document.Style{}))
	require.NoError(t, err)

	f1, _ := s.Shape(id1)
	f2, _ := s.Shape(id2)
	assert.Equal(t, 1, f1.Frame.Number)
	assert.Equal(t, 2, f2.Frame.Number)
	assert.Equal(t, 2, s.FrameCounter())
}

func TestAddShapeRejectsShortFreeDraw(t *testing.T) {
	s := New()

	_, err := s.AddShape(document.NewFreeDraw([]geom.Point{{X: 1, Y: 1}}, document.Style{}))
	assert.ErrorIs(t, err, document.ErrInvalidShape)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.CanUndo())
}

func TestSixthImageIsNoop(t *testing.T) {
	s := New()
	for range MaxImages {
		_, err := s.AddShape(document.NewImage(geom.Rect{Width: 10, Height: 10}, nil))
		require.NoError(t, err)
	}
	before := s.Project()

	_, err := s.AddShape(document.NewImage(geom.Rect{Width: 10, Height: 10}, nil))
	assert.ErrorIs(t, err, ErrImageLimit)
	assert.Equal(t, before, s.Project())
	assert.Equal(t, MaxImages, s.ImageCount())

	// other shapes still go in
	_, err = s.AddShape(rect(0, 0))
	assert.NoError(t, err)
}

func TestAddDuplicateID(t *testing.T) {
	s := New()
	r := rect(0, 0)
	_, err := s.AddShape(r)
	require.NoError(t, err)

	_, err = s.AddShape(r)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestUpdateMissingShapeIsNoop(t *testing.T) {
	s := New()
	assert.False(t, s.UpdateShape("shape_missing", document.Patch{Bounds: &geom.Rect{}}))
	assert.False(t, s.CanUndo())
}

func TestUpdateMisfiledShapeIsNoop(t *testing.T) {
	s := New()
	r := rect(0, 0)
	r.ID = "a"
	tbl := document.NewTable()
	tbl.IDs = []string{"b"}
	tbl.Entities["b"] = r
	s.Load(document.Project{Shapes: tbl})

	assert.False(t, s.UpdateShape("b", document.Patch{Bounds: &geom.Rect{X: 20, Width: 10, Height: 10}}))
	assert.Empty(t, s.UpdateShapes(map[string]document.Patch{"b": {Bounds: &geom.Rect{X: 20}}}))
	assert.False(t, s.CanUndo())
}

func TestRemoveCascadesSelection(t *testing.T) {
	s := New()
	a, _ := s.AddShape(rect(0, 0))
	b, _ := s.AddShape(rect(20, 0))
	s.SetSelection(a, b)

	assert.True(t, s.RemoveShape(a))
	assert.False(t, s.RemoveShape(a))
	assert.Equal(t, []string{b}, s.SelectedIDs())
	assert.False(t, s.IsSelected(a))
}

func TestSelectionIsNotRecorded(t *testing.T) {
	s := New()
	a, _ := s.AddShape(rect(0, 0))
	s.Load(s.Project())

	s.SetSelection(a)
	s.ToggleSelection(a)
	s.AddToSelection(a)
	s.ClearSelection()
	assert.False(t, s.CanUndo())
}

func TestUndoRedoExact(t *testing.T) {
	s := New()
	a, _ := s.AddShape(rect(0, 0))
	before := s.Project()

	require.True(t, s.UpdateShape(a, document.Patch{Bounds: &geom.Rect{X: 40, Y: 40, Width: 10, Height: 10}}))
	after := s.Project()

	require.True(t, s.Undo())
	assert.Equal(t, before, s.Project())

	require.True(t, s.Redo())
	assert.Equal(t, after, s.Project())
}

func TestUndoRestoresSelection(t *testing.T) {
	s := New()
	a, _ := s.AddShape(rect(0, 0))
	s.SetSelection(a)

	s.RemoveShape(a)
	assert.Empty(t, s.SelectedIDs())

	s.Undo()
	assert.Equal(t, []string{a}, s.SelectedIDs())
}

func TestHistoryCap(t *testing.T) {
	s := New()
	id, _ := s.AddShape(rect(0, 0))
	s.Load(s.Project())

	for i := 1; i <= 51; i++ {
		require.True(t, s.UpdateShape(id, document.Patch{Bounds: &geom.Rect{X: float64(i), Width: 10, Height: 10}}))
	}

	undone := 0
	for s.Undo() {
		undone++
	}
	assert.Equal(t, 50, undone)

	sh, _ := s.Shape(id)
	assert.Equal(t, 1.0, sh.Bounds.X, "exactly one mutation remains applied")
}

func TestNewMutationClearsRedo(t *testing.T) {
	s := New()
	s.AddShape(rect(0, 0))
	s.Undo()
	require.True(t, s.CanRedo())

	s.AddShape(rect(5, 5))
	assert.False(t, s.CanRedo())
}

func TestLoadResetsHistory(t *testing.T) {
	s := New()
	s.AddShape(rect(0, 0))
	require.True(t, s.CanUndo())

	s.Load(document.NewSampleProject())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, 1, s.FrameCounter())
}

func TestClearKeepsFrameCounter(t *testing.T) {
	s := New()
	s.AddShape(document.NewFrame(geom.Rect{Width: 10, Height: 10}, document.Style{}))
	s.Clear()
	assert.Equal(t, 0, s.Len())

	id, _ := s.AddShape(document.NewFrame(geom.Rect{Width: 10, Height: 10}, document.Style{}))
	f, _ := s.Shape(id)
	assert.Equal(t, 2, f.Frame.Number)

	s.Undo()
	s.Undo()
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.FrameCounter())
}

func TestUpdateShapesBatch(t *testing.T) {
	s := New()
	a, _ := s.AddShape(rect(0, 0))
	b, _ := s.AddShape(rect(20, 0))
	s.Load(s.Project())

	ids := s.UpdateShapes(map[string]document.Patch{
		a:         {Bounds: &geom.Rect{X: 1, Width: 10, Height: 10}},
		b:         {Bounds: &geom.Rect{X: 21, Width: 10, Height: 10}},
		"missing": {},
	})
	assert.Equal(t, []string{a, b}, ids)

	require.True(t, s.Undo())
	assert.False(t, s.CanUndo())
}

func TestSubscribe(t *testing.T) {
	s := New()
	var kinds []ChangeKind
	s.Subscribe(func(c Change) {
		kinds = append(kinds, c.Kind)
		_ = s.Len() // listeners may read the store
	})

	id, _ := s.AddShape(rect(0, 0))
	s.SetSelection(id)
	s.RemoveShape(id)
	s.Undo()

	assert.Equal(t, []ChangeKind{ChangeAdd, ChangeSelection, ChangeRemove, ChangeUndo}, kinds)
}

func TestConcurrentPatches(t *testing.T) {
	s := New()
	id, _ := s.AddShape(document.NewGenerated(geom.Rect{Width: 10, Height: 10}, "", ""))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			markup := string(rune('a' + i))
			s.UpdateShape(id, document.Patch{Markup: &markup})
		}()
	}
	wg.Wait()

	sh, ok := s.Shape(id)
	require.True(t, ok)
	assert.Len(t, sh.Generated.Markup, 1)
}
