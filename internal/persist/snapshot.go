package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"tableside/internal/logger"
)

// FlushFunc writes one batched class's consolidated snapshot.
type FlushFunc func(ctx context.Context) error

// Flusher accumulates dirty marks for batched persistence classes and writes
// a consolidated snapshot per class on a fixed schedule. Batching keeps write
// amplification down for rapidly-changing, lower-stakes state; the router
// marks, the flusher writes.
type Flusher struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	dirty   map[Class]bool
	flushes map[Class]FlushFunc
}

// NewFlusher creates a flusher running every interval.
func NewFlusher(interval time.Duration, log *logger.Logger) (*Flusher, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Flusher{
		scheduler: scheduler,
		interval:  interval,
		log:       log,
		dirty:     make(map[Class]bool),
		flushes:   make(map[Class]FlushFunc),
	}, nil
}

// Register installs the snapshot writer for a class.
func (f *Flusher) Register(class Class, fn FlushFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes[class] = fn
}

// MarkDirty records that a class has unsaved batched state.
func (f *Flusher) MarkDirty(class Class) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[class] = true
}

// Start schedules the periodic flush.
func (f *Flusher) Start(ctx context.Context) error {
	_, err := f.scheduler.NewJob(
		gocron.DurationJob(f.interval),
		gocron.NewTask(func() { f.Flush(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule snapshot flush: %w", err)
	}
	f.scheduler.Start()
	return nil
}

// Flush writes every dirty class now. A failed class stays dirty and is
// retried on the next tick.
func (f *Flusher) Flush(ctx context.Context) {
	f.mu.Lock()
	pending := make(map[Class]FlushFunc)
	for class := range f.dirty {
		if fn, ok := f.flushes[class]; ok {
			pending[class] = fn
		}
	}
	f.mu.Unlock()

	for class, fn := range pending {
		if err := fn(ctx); err != nil {
			f.log.Error("snapshot_flush_failed",
				fmt.Sprintf("Failed to flush %s snapshot", class),
				"", err, map[string]interface{}{"class": class.String()})
			continue
		}

		f.mu.Lock()
		delete(f.dirty, class)
		f.mu.Unlock()

		f.log.Debug("snapshot_flushed",
			fmt.Sprintf("Flushed %s snapshot", class),
			"", map[string]interface{}{"class": class.String()})
	}
}

// Stop flushes once more and shuts the scheduler down.
func (f *Flusher) Stop(ctx context.Context) error {
	f.Flush(ctx)
	return f.scheduler.Shutdown()
}
