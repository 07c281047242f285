package event

import (
	"context"
	"sync"
)

type Event interface {
	EventType() string
}

type Handler func(event Event)

// Listener fans events out to its handlers in the order they were added.
type Listener struct {
	mu       sync.Mutex
	handlers []Handler
}

func (l *Listener) Fire(event Event) {
	l.mu.Lock()
	handlers := l.handlers
	l.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

func (l *Listener) AddHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers = append(l.handlers[:len(l.handlers):len(l.handlers)], h)
}

type listenerKey struct{}

func FromContext(ctx context.Context) *Listener {
	l, _ := ctx.Value(listenerKey{}).(*Listener)
	return l
}

func SetContext(ctx context.Context, l *Listener) context.Context {
	return context.WithValue(ctx, listenerKey{}, l)
}

// Listen returns a context whose listener runs h after any handlers already
// present in ctx. The listener in ctx itself is left unchanged.
func Listen(ctx context.Context, h Handler) context.Context {
	l := &Listener{}

	if parent := FromContext(ctx); parent != nil {
		parent.mu.Lock()
		l.handlers = append(l.handlers, parent.handlers...)
		parent.mu.Unlock()
	}

	l.AddHandler(h)

	return SetContext(ctx, l)
}

// Fire delivers event to the listener in ctx, if there is one.
func Fire(ctx context.Context, event Event) {
	if l := FromContext(ctx); l != nil {
		l.Fire(event)
	}
}

// Recorder keeps every event it sees, for callers that inspect them after
// the fact.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Types lists the type of every recorded event in order.
func (r *Recorder) Types() []string {
	var out []string

	for _, ev := range r.Events() {
		out = append(out, ev.EventType())
	}

	return out
}
