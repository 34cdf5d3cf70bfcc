package document

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Table is the insertion-ordered entity table of all shapes on a canvas.
// IDs holds the paint order (first inserted = bottom-most).
type Table struct {
	IDs      []string         `json:"ids"`
	Entities map[string]Shape `json:"entities"`
}

func NewTable() Table {
	return Table{IDs: []string{}, Entities: make(map[string]Shape)}
}

func (t Table) Len() int {
	return len(t.IDs)
}

func (t Table) Get(id string) (Shape, bool) {
	s, ok := t.Entities[id]
	return s, ok
}

// Add appends a shape on top of the paint order. An existing id is replaced
// in place.
func (t *Table) Add(s Shape) {
	if t.Entities == nil {
		t.Entities = make(map[string]Shape)
	}
	if _, exists := t.Entities[s.ID]; !exists {
		t.IDs = append(t.IDs, s.ID)
	}
	t.Entities[s.ID] = s
}

// Put replaces an existing shape. It reports false if the id is unknown.
func (t *Table) Put(s Shape) bool {
	if _, ok := t.Entities[s.ID]; !ok {
		return false
	}
	t.Entities[s.ID] = s
	return true
}

func (t *Table) Remove(id string) bool {
	if _, ok := t.Entities[id]; !ok {
		return false
	}
	delete(t.Entities, id)

	ids := make([]string, 0, len(t.IDs))
	for _, existing := range t.IDs {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	t.IDs = ids
	return true
}

// Ordered returns the shapes in paint order.
func (t Table) Ordered() []Shape {
	out := make([]Shape, 0, len(t.IDs))
	for _, id := range t.IDs {
		if s, ok := t.Entities[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many shapes of type st are in the table.
func (t Table) Count(st ShapeType) int {
	n := 0
	for _, s := range t.Entities {
		if s.Type == st {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		IDs:      append(make([]string, 0, len(t.IDs)), t.IDs...),
		Entities: make(map[string]Shape, len(t.Entities)),
	}
	for id, s := range t.Entities {
		out.Entities[id] = s.Clone()
	}
	return out
}

// Project is externally-sourced canvas state handed to the engine by a
// save/load collaborator.
type Project struct {
	Shapes       Table `json:"shapes"`
	FrameCounter int   `json:"frameCounter"`
}

// DecodeProject parses a project from JSON and repairs the table so that IDs
// and Entities agree: ids without an entity are dropped, entities missing
// from IDs are appended in id order, and invalid shapes are rejected. An
// entity's own id is overwritten by its map key.
func DecodeProject(data []byte) (Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("decode project: %w", err)
	}
	if p.Shapes.Entities == nil {
		p.Shapes.Entities = make(map[string]Shape)
	}

	seen := make(map[string]bool, len(p.Shapes.IDs))
	ids := make([]string, 0, len(p.Shapes.Entities))
	for _, id := range p.Shapes.IDs {
		if _, ok := p.Shapes.Entities[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var orphans []string
	for id := range p.Shapes.Entities {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	p.Shapes.IDs = append(ids, orphans...)

	maxFrame := 0
	for id, s := range p.Shapes.Entities {
		if s.ID != id {
			s.ID = id
			p.Shapes.Entities[id] = s
		}
		if err := Validate(s); err != nil {
			return Project{}, fmt.Errorf("decode project: %w", err)
		}
		if s.Type == ShapeFrame {
			maxFrame = max(maxFrame, s.Frame.Number)
		}
	}
	p.FrameCounter = max(p.FrameCounter, maxFrame)

	return p, nil
}
