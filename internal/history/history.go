// Package history implements snapshot-based undo/redo for the shape store.
//
// Every mutating store operation records the state it is about to replace.
// Snapshots are full deep copies of the shape table, the selection and the
// frame counter; selection-only changes are never recorded.
package history

import (
	"github.com/inamate/canvas/internal/document"
)

// DefaultLimit is the maximum number of undo steps kept.
const DefaultLimit = 50

// Snapshot is an immutable copy of the store state.
type Snapshot struct {
	Shapes       document.Table
	Selection    []string
	FrameCounter int
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Shapes:       s.Shapes.Clone(),
		Selection:    append([]string(nil), s.Selection...),
		FrameCounter: s.FrameCounter,
	}
}

// Manager holds the past and future stacks.
type Manager struct {
	past   []Snapshot
	future []Snapshot
	limit  int
}

// NewManager creates a manager keeping at most limit undo steps. A limit
// below 1 falls back to DefaultLimit.
func NewManager(limit int) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Record pushes a copy of current onto the past stack, trims the oldest entry
// beyond the limit and clears the future.
func (m *Manager) Record(current Snapshot) {
	m.past = append(m.past, current.Clone())
	if over := len(m.past) - m.limit; over > 0 {
		clear(m.past[:over])
		m.past = m.past[over:]
	}
	m.future = nil
}

// Undo pops the most recent past state, pushes current onto the future and
// returns the state to restore.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	if len(m.past) == 0 {
		return Snapshot{}, false
	}
	prev := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.future = append(m.future, current.Clone())
	return prev, true
}

// Redo pops the most recent future state, pushes current onto the past and
// returns the state to restore.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	if len(m.future) == 0 {
		return Snapshot{}, false
	}
	next := m.future[len(m.future)-1]
	m.future = m.future[:len(m.future)-1]
	m.past = append(m.past, current.Clone())
	return next, true
}

// Reset empties both stacks.
func (m *Manager) Reset() {
	m.past = nil
	m.future = nil
}

func (m *Manager) CanUndo() bool { return len(m.past) > 0 }
func (m *Manager) CanRedo() bool { return len(m.future) > 0 }

// Depth returns the sizes of the past and future stacks.
func (m *Manager) Depth() (past, future int) {
	return len(m.past), len(m.future)
}

func (m *Manager) Limit() int { return m.limit }
