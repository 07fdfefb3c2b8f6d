package writer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/mq/queue"
	"github.com/erichter2018/rvutrack/internal/adapters/mq/writer"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	logging "github.com/erichter2018/rvutrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

// flakySink fails a configured number of times before succeeding.
type flakySink struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	persisted []model.StudyRecord
}

func (s *flakySink) AddRecord(ctx context.Context, rec model.StudyRecord) (model.StudyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return model.StudyRecord{}, errors.New("store unavailable")
	}
	s.persisted = append(s.persisted, rec)
	return rec, nil
}

func (s *flakySink) snapshot() (int, []model.StudyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, append([]model.StudyRecord(nil), s.persisted...)
}

func TestWriterPersist(t *testing.T) {
	ctx := context.Background()

	Convey("Given a writer over a queue and a healthy sink", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		sink := &flakySink{}
		w := writer.NewWriter(q, sink, writer.WithBackoff(time.Millisecond, 2*time.Millisecond))

		Convey("When a record flows through", func() {
			go w.Run(ctx)
			So(q.Enqueue(ctx, queue.Record{ID: "r1"}), ShouldBeTrue)

			So(waitFor(func() bool { _, p := sink.snapshot(); return len(p) == 1 }), ShouldBeTrue)
			_ = q.Close()
			So(w.Shutdown(ctx), ShouldBeNil)

			Convey("Then it is persisted exactly once", func() {
				attempts, persisted := sink.snapshot()
				So(attempts, ShouldEqual, 1)
				So(persisted[0].ID, ShouldEqual, "r1")
			})
		})
	})

	Convey("Given a sink that fails twice before recovering", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		sink := &flakySink{failures: 2}
		w := writer.NewWriter(q, sink,
			writer.WithMaxAttempts(5),
			writer.WithBackoff(time.Millisecond, 2*time.Millisecond),
		)

		Convey("When a record flows through", func() {
			go w.Run(ctx)
			q.Enqueue(ctx, queue.Record{ID: "r1"})

			So(waitFor(func() bool { _, p := sink.snapshot(); return len(p) == 1 }), ShouldBeTrue)
			_ = q.Close()
			So(w.Shutdown(ctx), ShouldBeNil)

			Convey("Then the write is retried until it lands", func() {
				attempts, persisted := sink.snapshot()
				So(attempts, ShouldEqual, 3)
				So(persisted, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a sink that never recovers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		sink := &flakySink{failures: 1 << 30}

		var notifyMu sync.Mutex
		var notified []string
		w := writer.NewWriter(q, sink,
			writer.WithMaxAttempts(3),
			writer.WithBackoff(time.Millisecond, 2*time.Millisecond),
			writer.WithNotify(func(rec model.StudyRecord, err error) {
				notifyMu.Lock()
				defer notifyMu.Unlock()
				notified = append(notified, rec.ID)
			}),
		)

		Convey("When a record flows through", func() {
			go w.Run(ctx)
			q.Enqueue(ctx, queue.Record{ID: "doomed"})

			So(waitFor(func() bool {
				notifyMu.Lock()
				defer notifyMu.Unlock()
				return len(notified) == 1
			}), ShouldBeTrue)
			_ = q.Close()
			So(w.Shutdown(ctx), ShouldBeNil)

			Convey("Then attempts are bounded and the notification fires", func() {
				attempts, persisted := sink.snapshot()
				So(attempts, ShouldEqual, 3)
				So(persisted, ShouldBeEmpty)
				So(notified, ShouldResemble, []string{"doomed"})
			})
		})
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool of writers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		store := &flakySink{}
		p := writer.NewPool(3, q, store, writer.WithBackoff(time.Millisecond, 2*time.Millisecond))

		Convey("When many records are enqueued", func() {
			p.Start(ctx)
			for i := 0; i < 20; i++ {
				So(q.Enqueue(ctx, queue.Record{RVU: 1}), ShouldBeTrue)
			}

			So(waitFor(func() bool { _, persisted := store.snapshot(); return len(persisted) == 20 }), ShouldBeTrue)
			_ = q.Close()
			So(p.Shutdown(ctx), ShouldBeNil)

			Convey("Then every record is persisted", func() {
				_, persisted := store.snapshot()
				So(persisted, ShouldHaveLength, 20)
			})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
