package session

import "github.com/inamate/canvas/internal/geom"

// presence is what each client last showed the others: where its pointer is
// in world space and which tool and gesture it has. Only the session loop
// touches it.
type presence struct {
	entries map[string]*PresencePayload // clientID -> last published state
	order   []string
	changed map[string]struct{}
}

func newPresence() *presence {
	return &presence{
		entries: make(map[string]*PresencePayload),
		changed: make(map[string]struct{}),
	}
}

func (p *presence) join(c *Client) {
	if _, ok := p.entries[c.ClientID]; ok {
		return
	}
	p.entries[c.ClientID] = &PresencePayload{
		ClientID:    c.ClientID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
	}
	p.order = append(p.order, c.ClientID)
}

func (p *presence) leave(clientID string) {
	delete(p.entries, clientID)
	delete(p.changed, clientID)
	for i, id := range p.order {
		if id == clientID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// track records the client's pointer, tool and gesture. A nil cursor keeps
// the last known one. The entry is published on the next drain only if
// something changed.
func (p *presence) track(clientID string, cursor *geom.Point, toolName, gesture string) {
	e, ok := p.entries[clientID]
	if !ok {
		return
	}
	if cursor == nil {
		cursor = e.Cursor
	}
	if samePoint(e.Cursor, cursor) && e.Tool == toolName && e.Gesture == gesture {
		return
	}
	e.Cursor = cursor
	e.Tool = toolName
	e.Gesture = gesture
	p.changed[clientID] = struct{}{}
}

func samePoint(a, b *geom.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// drain returns the entries changed since the last call, in join order.
func (p *presence) drain() []PresencePayload {
	if len(p.changed) == 0 {
		return nil
	}
	out := make([]PresencePayload, 0, len(p.changed))
	for _, id := range p.order {
		if _, ok := p.changed[id]; ok {
			out = append(out, p.entries[id].copy())
		}
	}
	clear(p.changed)
	return out
}

// state lists every client except exclude, in join order.
func (p *presence) state(exclude string) PresenceStatePayload {
	out := PresenceStatePayload{Presences: make([]PresencePayload, 0, len(p.order))}
	for _, id := range p.order {
		if id != exclude {
			out.Presences = append(out.Presences, p.entries[id].copy())
		}
	}
	return out
}

func (pp *PresencePayload) copy() PresencePayload {
	out := *pp
	if pp.Cursor != nil {
		c := *pp.Cursor
		out.Cursor = &c
	}
	return out
}
