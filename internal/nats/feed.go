package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/workerpool"
)

// Feed is a feed.Feed backed by core NATS subjects. Every instance receives every
// event, so subscriptions on any node see writes made on any other node. One
// NATS subscription is shared by all local handlers of a subject; delivery to the
// handlers runs on the worker pool.
type Feed struct {
	nc     *nats.Conn
	pool   *workerpool.Pool
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	topics map[string]*topic
}

type topic struct {
	sub      *nats.Subscription
	handlers map[uint64]feed.Handler
}

// NewFeed creates a feed on nc that dispatches through pool.
func NewFeed(nc *nats.Conn, pool *workerpool.Pool) *Feed {
	return &Feed{
		nc:     nc,
		pool:   pool,
		logger: slog.Default(),
		topics: make(map[string]*topic),
	}
}

func (f *Feed) Publish(ctx context.Context, subject string, ev feed.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("Failed to marshal event", "error", err)
		return err
	}
	if err := f.nc.Publish(subject, data); err != nil {
		f.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return err
	}
	f.logger.Debug("Published event", "subject", subject, "kind", ev.Kind)
	return nil
}

func (f *Feed) Subscribe(subject string, h feed.Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.topics[subject]
	if !ok {
		sub, err := f.nc.Subscribe(subject, func(msg *nats.Msg) {
			f.dispatch(subject, msg.Data)
		})
		if err != nil {
			return nil, err
		}
		t = &topic{sub: sub, handlers: make(map[uint64]feed.Handler)}
		f.topics[subject] = t
	}

	f.nextID++
	id := f.nextID
	t.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(subject, id) })
	}, nil
}

func (f *Feed) remove(subject string, id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.topics[subject]
	if !ok {
		return
	}
	delete(t.handlers, id)
	if len(t.handlers) > 0 {
		return
	}
	if err := t.sub.Unsubscribe(); err != nil {
		f.logger.Warn("Failed to unsubscribe", "subject", subject, "error", err)
	}
	delete(f.topics, subject)
}

func (f *Feed) dispatch(subject string, data []byte) {
	var ev feed.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.Error("Failed to unmarshal event", "subject", subject, "error", err)
		return
	}

	f.mu.Lock()
	t, ok := f.topics[subject]
	var handlers []feed.Handler
	if ok {
		handlers = make([]feed.Handler, 0, len(t.handlers))
		for _, h := range t.handlers {
			handlers = append(handlers, h)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		if f.pool.TrySubmit(func() { h(ev) }) {
			continue
		}
		// queue full: deliver on the subscription goroutine
		metrics.FeedOverflow.WithLabelValues(string(ev.Kind)).Inc()
		f.logger.Warn("Feed worker queue full, delivering inline", "subject", subject, "kind", ev.Kind)
		f.deliver(subject, h, ev)
	}
}

func (f *Feed) deliver(subject string, h feed.Handler, ev feed.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Feed handler panic recovered", "subject", subject, "panic", r)
		}
	}()
	h(ev)
}

// Subjects returns the number of subjects with a live NATS subscription.
func (f *Feed) Subjects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}
