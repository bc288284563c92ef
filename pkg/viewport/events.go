package viewport

import "sync"

// Subscription is a detachable listener registration. Detach is idempotent.
type Subscription interface {
	Detach()
}

// EventSource delivers container measurements.
type EventSource interface {
	// OnResize registers fn for container width changes.
	OnResize(fn func(width float64)) Subscription

	// OnScroll registers fn for scroll offset and viewport height changes.
	OnScroll(fn func(offset, viewportHeight float64)) Subscription
}

// Emitter is an in-process EventSource. Transports that receive
// measurements (a terminal program, a websocket reader) push them through an
// Emitter to whatever is mounted on it.
type Emitter struct {
	mu     sync.Mutex
	next   int
	resize map[int]func(float64)
	scroll map[int]func(float64, float64)
}

// NewEmitter creates an emitter without listeners.
func NewEmitter() *Emitter {
	return &Emitter{
		resize: make(map[int]func(float64)),
		scroll: make(map[int]func(float64, float64)),
	}
}

// OnResize implements EventSource.
func (e *Emitter) OnResize(fn func(width float64)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	id := e.next
	e.resize[id] = fn
	return &subscription{detach: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.resize, id)
	}}
}

// OnScroll implements EventSource.
func (e *Emitter) OnScroll(fn func(offset, viewportHeight float64)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	id := e.next
	e.scroll[id] = fn
	return &subscription{detach: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.scroll, id)
	}}
}

// Resize delivers a container width to every resize listener.
func (e *Emitter) Resize(width float64) {
	e.mu.Lock()
	fns := make([]func(float64), 0, len(e.resize))
	for _, fn := range e.resize {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(width)
	}
}

// Scroll delivers a scroll offset and viewport height to every scroll
// listener.
func (e *Emitter) Scroll(offset, viewportHeight float64) {
	e.mu.Lock()
	fns := make([]func(float64, float64), 0, len(e.scroll))
	for _, fn := range e.scroll {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(offset, viewportHeight)
	}
}

// Listeners returns the number of attached resize and scroll listeners.
func (e *Emitter) Listeners() (resize, scroll int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resize), len(e.scroll)
}

type subscription struct {
	once   sync.Once
	detach func()
}

func (s *subscription) Detach() {
	s.once.Do(s.detach)
}
