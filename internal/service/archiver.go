package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
)

// ArchiverConfig controls batching of archive writes.
type ArchiverConfig struct {
	BatchSize     int           // flush when this many messages are pending
	FlushInterval time.Duration // flush at least this often
}

// Archiver copies sent messages to the long-term archive in batches.
type Archiver struct {
	archive  repository.MessageArchive
	config   ArchiverConfig
	msgChan  chan model.Message
	logger   *slog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewArchiver(archive repository.MessageArchive, config ArchiverConfig) *Archiver {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	return &Archiver{
		archive:  archive,
		config:   config,
		msgChan:  make(chan model.Message, config.BatchSize*10),
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
}

func (a *Archiver) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.worker(ctx)
	a.logger.Info("Archiver started",
		"batchSize", a.config.BatchSize,
		"flushInterval", a.config.FlushInterval,
	)
}

// Stop flushes what is pending and waits for the worker.
func (a *Archiver) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
	a.wg.Wait()
	a.logger.Info("Archiver stopped")
}

// Enqueue queues msg without blocking. It returns false when the queue is full or
// the archiver is stopped.
func (a *Archiver) Enqueue(msg model.Message) bool {
	select {
	case <-a.stopChan:
		return false
	default:
	}

	select {
	case a.msgChan <- msg:
		metrics.ArchiveQueueSize.Set(float64(len(a.msgChan)))
		return true
	default:
		metrics.ArchivedMessages.WithLabelValues("dropped").Inc()
		a.logger.Warn("Archive queue full, dropping message", "messageId", msg.ID)
		return false
	}
}

// QueueSize returns the number of messages waiting.
func (a *Archiver) QueueSize() int {
	return len(a.msgChan)
}

func (a *Archiver) worker(ctx context.Context) {
	defer a.wg.Done()

	batch := make([]model.Message, 0, a.config.BatchSize)
	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush(context.Background(), a.drain(batch))
			return
		case <-a.stopChan:
			a.flush(context.Background(), a.drain(batch))
			return
		case msg := <-a.msgChan:
			batch = append(batch, msg)
			if len(batch) >= a.config.BatchSize {
				a.flush(ctx, batch)
				batch = make([]model.Message, 0, a.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(ctx, batch)
				batch = make([]model.Message, 0, a.config.BatchSize)
			}
		}
	}
}

// drain appends every queued message to batch.
func (a *Archiver) drain(batch []model.Message) []model.Message {
	for {
		select {
		case msg := <-a.msgChan:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
}

func (a *Archiver) flush(ctx context.Context, batch []model.Message) {
	if len(batch) == 0 {
		return
	}
	metrics.ArchiveQueueSize.Set(float64(len(a.msgChan)))

	start := time.Now()
	if err := a.archive.SaveBatch(ctx, batch); err != nil {
		metrics.ArchivedMessages.WithLabelValues("error").Add(float64(len(batch)))
		a.logger.Error("Archive flush failed",
			"count", len(batch),
			"elapsed", time.Since(start),
			"error", err,
		)
		return
	}

	metrics.ArchivedMessages.WithLabelValues("ok").Add(float64(len(batch)))
	a.logger.Debug("Archive flush completed",
		"count", len(batch),
		"elapsed", time.Since(start),
	)
}
