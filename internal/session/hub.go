package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/inamate/canvas/internal/typeid"
)

// Hub keeps one Session per canvas id. Sessions live in memory until the
// hub is closed.
type Hub struct {
	cfg  Config
	opts []Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session // canvasID -> session

	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub whose sessions share cfg and opts.
func NewHub(cfg Config, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.Open(client.CanvasID).Join(client)
			close(client.registered)
		case client := <-h.unregister:
			if sess, ok := h.Session(client.CanvasID); ok {
				sess.Leave(client)
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// Register attaches client to its canvas session. The join is queued on
// the session before Register returns, so it precedes anything the client
// sends afterwards.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		return
	}
	select {
	case <-client.registered:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Deliver routes an inbound message to the client's session. It reports
// false if the session is gone.
func (h *Hub) Deliver(client *Client, msg *Message) bool {
	sess, ok := h.Session(client.CanvasID)
	if !ok {
		return false
	}
	return sess.Receive(client, msg)
}

// Create opens a session under a fresh canvas id.
func (h *Hub) Create() *Session {
	return h.Open(typeid.NewCanvasID())
}

// Open returns the session for canvasID, starting it if needed.
func (h *Hub) Open(canvasID string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[canvasID]; ok {
		return sess
	}
	sess := New(canvasID, h.cfg, h.opts...)
	h.sessions[canvasID] = sess

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sess.Run(h.ctx)
	}()

	slog.Info("session opened", "canvas", canvasID)
	return sess
}

// Session looks up a running session.
func (h *Hub) Session(canvasID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[canvasID]
	return sess, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close stops every session and waits for their loops to exit.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
	slog.Info("hub closed")
}
