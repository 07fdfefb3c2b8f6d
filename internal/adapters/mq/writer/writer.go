// Package writer drains the record queue into the persistence port.
//
// Writes are best-effort: each record is retried with exponential backoff up
// to a bounded attempt count, and exhaustion is surfaced as a non-fatal
// notification. A failed write never touches in-memory tracking state, so
// live metrics stay correct even when the store is down.
package writer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/mq/queue"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/pkg/logger"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// Default writer configuration constants.
const (
	defaultMaxAttempts  = 5
	defaultBackoffBase  = 200 * time.Millisecond
	defaultBackoffMax   = 10 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

// NotifyFunc receives records whose persistence attempts were exhausted.
type NotifyFunc func(rec model.StudyRecord, err error)

// RecordSink is the slice of the persistence port writers need.
type RecordSink interface {
	AddRecord(ctx context.Context, rec model.StudyRecord) (model.StudyRecord, error)
}

// Source defines how writers receive records.
type Source interface {
	Dequeue(ctx context.Context) <-chan queue.Record
}

// Writer persists queued records until stopped.
type Writer struct {
	source Source
	sink   RecordSink
	name   string

	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	notify      NotifyFunc

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewWriter creates a writer with configuration options.
func NewWriter(source Source, sink RecordSink, opts ...Option) *Writer {
	w := &Writer{
		source:      source,
		sink:        sink,
		name:        "writer",
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Get().Named(w.name)
	}
	return w
}

// Run drains the queue until ctx is canceled, shutdown is requested, or the
// queue closes.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	records := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			w.persist(ctx, rec)
		}
	}
}

// Shutdown stops the writer, waiting for the in-flight record.
func (w *Writer) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("writer shutdown timed out: %w", ctx.Err())
	}
}

// persist writes one record with bounded exponential backoff.
func (w *Writer) persist(ctx context.Context, rec model.StudyRecord) {
	start := time.Now()
	defer func() {
		metrics.RecordWriteLatency(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	delay := w.backoffBase
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		_, err := w.sink.AddRecord(ctx, rec)
		if err == nil {
			metrics.RecordPersisted()
			return
		}
		lastErr = err

		metrics.RecordPersistRetry()
		w.log.Warn(ctx, "persist attempt failed",
			logger.String("record_id", rec.ID),
			logger.Int("attempt", attempt),
			logger.Error(lastErr),
		)

		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.RecordPersistFailure()
			return
		case <-w.shutdown:
			metrics.RecordPersistFailure()
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.backoffMax {
			delay = w.backoffMax
		}
	}

	metrics.RecordPersistFailure()
	w.log.Error(ctx, "persist attempts exhausted; record kept in memory only",
		logger.String("record_id", rec.ID),
		logger.Int("attempts", w.maxAttempts),
		logger.Error(lastErr),
	)
	if w.notify != nil {
		w.notify(rec, lastErr)
	}
}

// Pool manages a fixed set of writers sharing one queue.
type Pool struct {
	writers []*Writer
	log     logger.Logger
}

// NewPool creates and configures writerCount writers.
func NewPool(writerCount int, source Source, sink RecordSink, opts ...Option) *Pool {
	if writerCount < 1 {
		writerCount = 1
	}
	p := &Pool{
		writers: make([]*Writer, writerCount),
		log:     logger.Get().Named("writer-pool"),
	}
	for i := range p.writers {
		named := append([]Option{WithName("writer-" + strconv.Itoa(i))}, opts...)
		p.writers[i] = NewWriter(source, sink, named...)
	}
	metrics.UpdateWriterActiveCount(writerCount)
	return p
}

// Start launches all writers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.writers {
		go w.Run(ctx)
	}
}

// Shutdown stops all writers, bounded by the grace period.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()

	for i, w := range p.writers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.log.Warn(ctx, "writer shutdown timed out", logger.Int("writer_id", i))
		}
	}
	metrics.UpdateWriterActiveCount(0)
	return nil
}
