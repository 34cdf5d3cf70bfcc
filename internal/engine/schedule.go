package engine

import (
	"sync"
	"time"
)

// Scheduler runs fn once on the host's next paint cycle. The returned func
// cancels the request if it has not run yet.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// Coalescer keeps at most one pending frame callback. Scheduling while a
// request is outstanding overwrites its target instead of queuing another.
type Coalescer struct {
	sched Scheduler

	mu      sync.Mutex
	seq     uint64
	pending func()
	cancel  func()
}

func NewCoalescer(s Scheduler) *Coalescer {
	return &Coalescer{sched: s}
}

// Schedule sets fn as the callback for the next frame.
func (c *Coalescer) Schedule(fn func()) {
	c.mu.Lock()
	c.pending = fn
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	c.seq++
	token := c.seq
	c.cancel = func() {}
	c.mu.Unlock()

	cancel := c.sched.RequestFrame(func() { c.fire(token) })

	c.mu.Lock()
	if c.seq == token && c.cancel != nil {
		c.cancel = cancel
	}
	c.mu.Unlock()
}

func (c *Coalescer) fire(token uint64) {
	c.mu.Lock()
	if token != c.seq {
		// cancelled after the request was made
		c.mu.Unlock()
		return
	}
	fn := c.pending
	c.pending = nil
	c.cancel = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel drops the pending callback. A request that still fires afterwards
// is ignored.
func (c *Coalescer) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.seq++
	c.pending = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Pending reports whether a callback is waiting for a frame.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// ManualScheduler queues frame callbacks until Flush is called.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID int
	queue  []frameRequest
}

type frameRequest struct {
	id int
	fn func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) RequestFrame(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.queue = append(m.queue, frameRequest{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, r := range m.queue {
			if r.id == id {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				return
			}
		}
	}
}

// Flush runs the callbacks queued before the call and returns how many ran.
// Callbacks requested while flushing wait for the next Flush.
func (m *ManualScheduler) Flush() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, r := range queue {
		r.fn()
	}
	return len(queue)
}

func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// TimerScheduler fires callbacks after Interval. Dispatch, when set, posts
// the callback to the goroutine that owns the engine.
type TimerScheduler struct {
	Interval time.Duration
	Dispatch func(func())
}

func (t TimerScheduler) RequestFrame(fn func()) func() {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	timer := time.AfterFunc(interval, func() {
		if t.Dispatch != nil {
			t.Dispatch(fn)
			return
		}
		fn()
	})
	return func() { timer.Stop() }
}
