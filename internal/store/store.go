// Package store owns the canvas shape table and the selection set.
//
// Every structural mutation records a history snapshot first. Selection
// changes are not recorded. The store is safe for concurrent use so that
// external collaborators (generation, autosave) may patch shapes by id from
// their own goroutines; a patch to an id that no longer exists is a no-op.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/history"
)

// MaxImages is the number of image references that may exist at once.
const MaxImages = 5

var (
	ErrImageLimit  = errors.New("image reference limit reached")
	ErrDuplicateID = errors.New("shape id already exists")
)

type ChangeKind string

const (
	ChangeAdd       ChangeKind = "add"
	ChangeUpdate    ChangeKind = "update"
	ChangeRemove    ChangeKind = "remove"
	ChangeClear     ChangeKind = "clear"
	ChangeLoad      ChangeKind = "load"
	ChangeUndo      ChangeKind = "undo"
	ChangeRedo      ChangeKind = "redo"
	ChangeSelection ChangeKind = "selection"
)

// Change describes a store mutation for subscribers.
type Change struct {
	Kind ChangeKind
	IDs  []string
}

type Option func(*Store)

// WithHistoryLimit caps the number of undo steps.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.history = history.NewManager(n) }
}

type Store struct {
	mu           sync.RWMutex
	table        document.Table
	selection    map[string]struct{}
	frameCounter int
	history      *history.Manager

	listenersMu sync.Mutex
	listeners   []func(Change)
}

func New(opts ...Option) *Store {
	s := &Store{
		table:     document.NewTable(),
		selection: make(map[string]struct{}),
		history:   history.NewManager(history.DefaultLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to be called after every change. Callbacks run
// outside the store lock and may read the store.
func (s *Store) Subscribe(fn func(Change)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(c Change) {
	s.listenersMu.Lock()
	listeners := append([]func(Change){}, s.listeners...)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
}

// snapshotLocked captures the current state (caller must hold lock).
func (s *Store) snapshotLocked() history.Snapshot {
	return history.Snapshot{
		Shapes:       s.table,
		Selection:    s.selectedLocked(),
		FrameCounter: s.frameCounter,
	}
}

// restoreLocked replaces the state with a snapshot (caller must hold lock).
func (s *Store) restoreLocked(snap history.Snapshot) {
	s.table = snap.Shapes.Clone()
	s.frameCounter = snap.FrameCounter
	s.selection = make(map[string]struct{}, len(snap.Selection))
	for _, id := range snap.Selection {
		if _, ok := s.table.Entities[id]; ok {
			s.selection[id] = struct{}{}
		}
	}
}

// --- Mutations ---

// AddShape validates and appends a shape. Free-draw shapes with fewer than
// two points and a sixth concurrent image reference are rejected without
// touching the store or its history. Frames are stamped with the next
// display number.
func (s *Store) AddShape(shape document.Shape) (string, error) {
	if err := document.Validate(shape); err != nil {
		return "", err
	}

	s.mu.Lock()
	if _, exists := s.table.Entities[shape.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, shape.ID)
	}
	if shape.Type == document.ShapeImage && s.table.Count(document.ShapeImage) >= MaxImages {
		s.mu.Unlock()
		return "", ErrImageLimit
	}

	s.history.Record(s.snapshotLocked())

	shape = shape.Clone()
	if shape.Type == document.ShapeFrame {
		s.frameCounter++
		shape.Frame.Number = s.frameCounter
	}
	s.table.Add(shape)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdd, IDs: []string{shape.ID}})
	return shape.ID, nil
}

// UpdateShape merges patch onto the shape with the given id. It reports
// false, and records nothing, if the id does not exist or the stored shape
// is filed under a key other than its own id.
func (s *Store) UpdateShape(id string, patch document.Patch) bool {
	s.mu.Lock()
	current, ok := s.table.Get(id)
	if !ok || current.ID != id {
		s.mu.Unlock()
		return false
	}

	s.history.Record(s.snapshotLocked())
	s.table.Put(document.Apply(current, patch))
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdate, IDs: []string{id}})
	return true
}

// UpdateShapes applies several patches as one history step. Unknown ids are
// skipped. It returns the ids that were updated.
func (s *Store) UpdateShapes(patches map[string]document.Patch) []string {
	s.mu.Lock()
	var ids []string
	for _, id := range s.table.IDs {
		if _, ok := patches[id]; !ok {
			continue
		}
		if current, _ := s.table.Get(id); current.ID == id {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		s.mu.Unlock()
		return nil
	}

	s.history.Record(s.snapshotLocked())
	for _, id := range ids {
		current, _ := s.table.Get(id)
		s.table.Put(document.Apply(current, patches[id]))
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdate, IDs: ids})
	return ids
}

// RemoveShape deletes a shape and drops it from the selection.
func (s *Store) RemoveShape(id string) bool {
	return len(s.RemoveShapes(id)) == 1
}

// RemoveShapes deletes several shapes as one history step and returns the
// ids that existed.
func (s *Store) RemoveShapes(ids ...string) []string {
	s.mu.Lock()
	var existing []string
	for _, id := range ids {
		if _, ok := s.table.Entities[id]; ok {
			existing = append(existing, id)
		}
	}
	if len(existing) == 0 {
		s.mu.Unlock()
		return nil
	}

	s.history.Record(s.snapshotLocked())
	for _, id := range existing {
		s.table.Remove(id)
		delete(s.selection, id)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRemove, IDs: existing})
	return existing
}

// Clear removes every shape. The frame counter is kept so display numbers
// never repeat within a session.
func (s *Store) Clear() {
	s.mu.Lock()
	if s.table.Len() == 0 {
		s.mu.Unlock()
		return
	}
	s.history.Record(s.snapshotLocked())
	s.table = document.NewTable()
	s.selection = make(map[string]struct{})
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeClear})
}

// Load replaces the whole state with an external project, clears the
// selection and resets history.
func (s *Store) Load(p document.Project) {
	s.mu.Lock()
	s.table = p.Shapes.Clone()
	if s.table.Entities == nil {
		s.table = document.NewTable()
	}
	s.frameCounter = p.FrameCounter
	s.selection = make(map[string]struct{})
	s.history.Reset()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoad})
}

func (s *Store) Undo() bool {
	s.mu.Lock()
	prev, ok := s.history.Undo(s.snapshotLocked())
	if ok {
		s.restoreLocked(prev)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Kind: ChangeUndo})
	}
	return ok
}

func (s *Store) Redo() bool {
	s.mu.Lock()
	next, ok := s.history.Redo(s.snapshotLocked())
	if ok {
		s.restoreLocked(next)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Kind: ChangeRedo})
	}
	return ok
}

// --- Selection ---

// SetSelection replaces the selection. Unknown ids are ignored.
func (s *Store) SetSelection(ids ...string) {
	s.mu.Lock()
	s.selection = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.table.Entities[id]; ok {
			s.selection[id] = struct{}{}
		}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelection})
}

// AddToSelection extends the selection with id.
func (s *Store) AddToSelection(id string) {
	s.mu.Lock()
	if _, ok := s.table.Entities[id]; ok {
		s.selection[id] = struct{}{}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelection})
}

// ToggleSelection adds id if unselected, removes it otherwise.
func (s *Store) ToggleSelection(id string) {
	s.mu.Lock()
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
	} else if _, exists := s.table.Entities[id]; exists {
		s.selection[id] = struct{}{}
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelection})
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	empty := len(s.selection) == 0
	s.selection = make(map[string]struct{})
	s.mu.Unlock()

	if !empty {
		s.notify(Change{Kind: ChangeSelection})
	}
}

func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selection[id]
	return ok
}

// SelectedIDs returns the selected ids in paint order.
func (s *Store) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

func (s *Store) selectedLocked() []string {
	ids := make([]string, 0, len(s.selection))
	for _, id := range s.table.IDs {
		if _, ok := s.selection[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// --- Queries ---

// Shape returns a copy of the shape with the given id.
func (s *Store) Shape(id string) (document.Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shape, ok := s.table.Get(id)
	if !ok {
		return document.Shape{}, false
	}
	return shape.Clone(), true
}

// Shapes returns copies of all shapes in paint order.
func (s *Store) Shapes() []document.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.table.Ordered()
	for i := range ordered {
		ordered[i] = ordered[i].Clone()
	}
	return ordered
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len()
}

func (s *Store) FrameCounter() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameCounter
}

func (s *Store) ImageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Count(document.ShapeImage)
}

// Project returns a deep copy of the current state for save collaborators.
func (s *Store) Project() document.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return document.Project{Shapes: s.table.Clone(), FrameCounter: s.frameCounter}
}

func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}
