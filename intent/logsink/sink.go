// Package logsink persists recognition logs asynchronously. Producers never
// block: when the queue is full the entry is dropped and counted, so log
// persistence latency never leaks into recognition latency.
package logsink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrygo/intentd/intent/metrics"
	"github.com/hrygo/intentd/store"
)

const (
	defaultQueueSize = 1000
	drainDeadline    = 5 * time.Second
	persistTimeout   = 3 * time.Second
)

// Sink is a bounded queue with a single background worker.
type Sink struct {
	store *store.Store
	queue chan *store.RecognitionLog

	dropped   atomic.Int64
	persisted atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(st *store.Store, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &Sink{
		store: st,
		queue: make(chan *store.RecognitionLog, queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s
}

// Enqueue offers an entry without blocking. Full queue drops the entry.
func (s *Sink) Enqueue(entry *store.RecognitionLog) {
	select {
	case s.queue <- entry:
	default:
		metrics.LogDroppedTotal.Inc()
		dropped := s.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			slog.Warn("log queue full, dropping entry", "dropped_total", dropped)
		}
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Persisted returns how many entries the worker has written.
func (s *Sink) Persisted() int64 {
	return s.persisted.Load()
}

// Shutdown stops the worker after draining the queue, bounded by a deadline.
func (s *Sink) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		select {
		case <-s.done:
		case <-time.After(drainDeadline):
			slog.Warn("log sink drain deadline exceeded", "remaining", len(s.queue))
		}
	})
}

func (s *Sink) worker() {
	defer close(s.done)
	for {
		select {
		case entry := <-s.queue:
			s.persist(entry)
		case <-s.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case entry := <-s.queue:
					s.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) persist(entry *store.RecognitionLog) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if _, err := s.store.CreateRecognitionLog(ctx, entry); err != nil {
		slog.Error("failed to persist recognition log", "app_key", entry.AppKey, "error", err)
		return
	}
	s.persisted.Add(1)
}
