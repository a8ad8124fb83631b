package feed

import (
	"context"
	"slices"
	"sync"
)

// Local is an in-process Feed. Publish invokes the handlers on the caller's
// goroutine, in subscription order.
type Local struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

// NewLocal creates an empty in-process feed.
func NewLocal() *Local {
	return &Local{handlers: make(map[string]map[uint64]Handler)}
}

func (l *Local) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, h := range l.snapshot(topic) {
		h(ev)
	}
	return nil
}

func (l *Local) Subscribe(topic string, h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	if l.handlers[topic] == nil {
		l.handlers[topic] = make(map[uint64]Handler)
	}
	l.handlers[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(topic, id) })
	}, nil
}

// Subscribers returns the number of handlers on topic.
func (l *Local) Subscribers(topic string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.handlers[topic])
}

func (l *Local) remove(topic string, id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers[topic], id)
	if len(l.handlers[topic]) == 0 {
		delete(l.handlers, topic)
	}
}

// snapshot copies the handlers ordered by subscription id so none run under the lock.
func (l *Local) snapshot(topic string) []Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()

	subs := l.handlers[topic]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, subs[id])
	}
	return out
}
