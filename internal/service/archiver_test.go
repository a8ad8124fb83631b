package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsponsor.messaging/internal/model"
)

type archiveRecorder struct {
	mu      sync.Mutex
	batches [][]model.Message
	flushed chan struct{}
}

func newArchiveRecorder() *archiveRecorder {
	return &archiveRecorder{flushed: make(chan struct{}, 16)}
}

func (r *archiveRecorder) SaveBatch(ctx context.Context, msgs []model.Message) error {
	r.mu.Lock()
	r.batches = append(r.batches, append([]model.Message(nil), msgs...))
	r.mu.Unlock()
	r.flushed <- struct{}{}
	return nil
}

func (r *archiveRecorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.batches))
	for _, b := range r.batches {
		out = append(out, len(b))
	}
	return out
}

func TestArchiver_FlushesOnBatchSize(t *testing.T) {
	rec := newArchiveRecorder()
	a := NewArchiver(rec, ArchiverConfig{BatchSize: 3, FlushInterval: time.Hour})
	a.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.True(t, a.Enqueue(model.Message{ID: "m"}))
	}

	select {
	case <-rec.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for batch flush")
	}
	a.Stop()

	assert.Equal(t, []int{3}, rec.sizes())
}

func TestArchiver_FlushesOnInterval(t *testing.T) {
	rec := newArchiveRecorder()
	a := NewArchiver(rec, ArchiverConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	a.Start(context.Background())
	defer a.Stop()

	require.True(t, a.Enqueue(model.Message{ID: "m1"}))

	select {
	case <-rec.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for interval flush")
	}
	assert.Equal(t, []int{1}, rec.sizes())
}

func TestArchiver_StopFlushesRemainder(t *testing.T) {
	rec := newArchiveRecorder()
	a := NewArchiver(rec, ArchiverConfig{BatchSize: 100, FlushInterval: time.Hour})
	a.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.True(t, a.Enqueue(model.Message{ID: "m"}))
	}
	a.Stop()
	a.Stop()

	total := 0
	for _, n := range rec.sizes() {
		total += n
	}
	assert.Equal(t, 5, total)
	assert.False(t, a.Enqueue(model.Message{ID: "late"}))
}

func TestArchiver_EnqueueDropsWhenFull(t *testing.T) {
	rec := newArchiveRecorder()
	a := NewArchiver(rec, ArchiverConfig{BatchSize: 1})

	// not started: the queue holds BatchSize*10 messages
	for i := 0; i < 10; i++ {
		require.True(t, a.Enqueue(model.Message{ID: "m"}))
	}
	assert.False(t, a.Enqueue(model.Message{ID: "overflow"}))
	assert.Equal(t, 10, a.QueueSize())
}
