// Package queue buffers completed-study records between the tracking tick
// path and the asynchronous persistence writers.
//
// Enqueue never blocks: the tick path must not wait on a slow store. A full
// queue drops the write (the record stays live in the metrics engine and is
// recoverable manually), which is the documented best-effort contract.
package queue

import (
	"context"
	"sync"

	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// defaultCapacity bounds the in-memory backlog of unpersisted records.
const defaultCapacity = 4096

// Record is the payload type flowing through the queue.
type Record = model.StudyRecord

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a record. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, rec Record) bool

	// Dequeue returns a channel that receives records as they become
	// available. The channel closes when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Record

	// Len returns the current number of queued records.
	Len(ctx context.Context) int

	// Close stops the queue. No new records can be enqueued afterwards.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	records  chan Record
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.records = make(chan Record, q.capacity)

	metrics.UpdatePersistQueueCapacity(q.capacity)
	metrics.UpdatePersistQueueSize(0)

	return q
}

// Enqueue adds a record without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, rec Record) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordPersistQueueDrop("closed")
		return false
	}

	select {
	case q.records <- rec:
		q.publishSize()
		return true
	case <-ctx.Done():
		metrics.RecordPersistQueueDrop("context_cancelled")
		return false
	default:
		metrics.RecordPersistQueueDrop("queue_full")
		return false
	}
}

// Dequeue returns a channel feeding queued records to a writer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		for rec := range q.records {
			select {
			case out <- rec:
				q.publishSize()
			case <-ctx.Done():
				q.requeue(rec)
				return
			}
		}
	}()
	return out
}

// requeue returns a record pulled for a cancelled consumer to the buffer so
// the next Dequeue call can deliver it. If the queue closed or filled in the
// meantime the loss is counted like any other drop.
func (q *InMemoryQueue) requeue(rec Record) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordPersistQueueDrop("closed")
		return
	}
	select {
	case q.records <- rec:
		q.publishSize()
	default:
		metrics.RecordPersistQueueDrop("queue_full")
	}
}

// Len returns the current number of queued records.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.records)
}

// Close stops the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.records)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publishSize() {
	size := len(q.records)
	metrics.UpdatePersistQueueSize(size)
	if q.capacity > 0 {
		metrics.UpdatePersistQueueUtilization(float64(size) / float64(q.capacity))
	}
}
