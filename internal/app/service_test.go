package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	service "github.com/erichter2018/rvutrack/internal/app"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/internal/domain/stats"
	logging "github.com/erichter2018/rvutrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func obs(accession, text string, offset time.Duration) model.Observation {
	return model.Observation{
		Accession:     accession,
		ProcedureText: text,
		PatientClass:  model.ED,
		ObservedAt:    base.Add(offset),
	}
}

func newService(store *repository.MemoryStore, now *time.Time, opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithStore(store),
		service.WithClock(func() time.Time { return *now }),
		service.WithMinStudyDuration(time.Second),
		service.WithPersistRetry(3, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	return service.New(opts...)
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

func TestObservationPipeline(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with an active shift", t, func() {
		store := repository.NewMemoryStore()
		now := base
		svc := newService(store, &now)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		_, err := svc.StartShift(ctx, "day")
		So(err, ShouldBeNil)

		Convey("When one accession is observed and then replaced by a placeholder", func() {
			_, ok := svc.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			So(ok, ShouldBeFalse)
			_, ok = svc.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 30*time.Second))
			So(ok, ShouldBeFalse)
			rec, ok := svc.Observe(ctx, obs("", "", 65*time.Second))

			Convey("Then one classified, hashed record is produced", func() {
				So(ok, ShouldBeTrue)
				So(rec.StudyType, ShouldEqual, "CT Head")
				So(rec.RVU, ShouldAlmostEqual, 0.85)
				So(rec.DurationSeconds, ShouldEqual, 65)
				So(rec.AccessionHash, ShouldNotBeEmpty)
				So(rec.AccessionHash, ShouldNotEqual, "ACC1")
				So(rec.Source, ShouldEqual, model.SourceTracker)
			})

			Convey("And it lands in the store asynchronously", func() {
				So(waitFor(func() bool {
					records, _ := store.QueryRecords(ctx, repository.RecordFilter{})
					return len(records) == 1
				}), ShouldBeTrue)
			})

			Convey("And the summary reflects it", func() {
				now = base.Add(2 * time.Hour)
				s, err := svc.Summary(ctx, stats.Window{})
				So(err, ShouldBeNil)
				So(s.Totals.Records, ShouldEqual, 1)
				So(s.Totals.RVUSum, ShouldAlmostEqual, 0.85)
			})
		})

		Convey("When a procedure matches no rule", func() {
			_, ok := svc.Observe(ctx, obs("ACC9", "INTERPRETIVE DANCE STUDY", 0))
			So(ok, ShouldBeFalse)
			rec, ok := svc.Observe(ctx, obs("", "", 30*time.Second))

			Convey("Then the record still exists with the unknown type", func() {
				So(ok, ShouldBeTrue)
				So(rec.StudyType, ShouldEqual, "Unknown")
				So(rec.RVU, ShouldAlmostEqual, 0)
			})
		})

		Convey("When the shift ends while a study is open", func() {
			_, ok := svc.Observe(ctx, obs("ACC2", "MRI BRAIN W WO", 0))
			So(ok, ShouldBeFalse)
			now = base.Add(10 * time.Minute)
			shift, err := svc.EndShift(ctx)

			Convey("Then the open window is flushed into the shift", func() {
				So(err, ShouldBeNil)
				So(shift.End, ShouldNotBeNil)
				// The flushed record reaches the store asynchronously.
				So(waitFor(func() bool {
					records, _ := svc.Records(ctx, repository.RecordFilter{ShiftID: shift.ID})
					return len(records) == 1
				}), ShouldBeTrue)
				records, err := svc.Records(ctx, repository.RecordFilter{ShiftID: shift.ID})
				So(err, ShouldBeNil)
				So(records[0].StudyType, ShouldEqual, "MRI Brain")
			})
		})
	})
}

func TestTemporaryRecords(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with no shift", t, func() {
		store := repository.NewMemoryStore()
		now := base
		svc := newService(store, &now, service.WithTempFoldCutoff(2.0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When studies complete before any shift and their RVU exceeds the cutoff", func() {
			svc.Observe(ctx, obs("ACC1", "MRI BRAIN W WO", -60*time.Minute))
			svc.Observe(ctx, obs("ACC2", "CT ABDOMEN PELVIS W", -40*time.Minute))
			svc.Observe(ctx, obs("", "", -20*time.Minute))

			shift, err := svc.StartShift(ctx, "")
			So(err, ShouldBeNil)

			Convey("Then the shift folds them in with a retroactive effective start", func() {
				So(shift.EffectiveStart, ShouldNotBeNil)
				So(shift.EffectiveStart.Equal(base.Add(-60*time.Minute)), ShouldBeTrue)

				records, err := svc.Records(ctx, repository.RecordFilter{ShiftID: shift.ID})
				So(err, ShouldBeNil)
				So(records, ShouldHaveLength, 2)
			})
		})
	})
}

func TestManualRecords(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service with an active shift", t, func() {
		store := repository.NewMemoryStore()
		now := base
		svc := newService(store, &now)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		_, err := svc.StartShift(ctx, "")
		So(err, ShouldBeNil)

		Convey("When a manual record is added with a raw accession", func() {
			rec, err := svc.AddManualRecord(ctx, "ACC77", model.StudyRecord{
				Procedure:  "CT CHEST W CONTRAST",
				StartedAt:  base.Add(5 * time.Minute),
				FinishedAt: base.Add(10 * time.Minute),
			})

			Convey("Then it is classified, hashed, and tagged as manual", func() {
				So(err, ShouldBeNil)
				So(rec.StudyType, ShouldEqual, "CT Chest")
				So(rec.RVU, ShouldAlmostEqual, 1.08)
				So(rec.AccessionHash, ShouldNotBeEmpty)
				So(rec.Source, ShouldEqual, model.SourceManual)
				So(rec.DurationSeconds, ShouldEqual, 300)
			})
		})

		Convey("When a manual record fails validation", func() {
			_, err := svc.AddManualRecord(ctx, "", model.StudyRecord{
				Procedure:  "",
				StartedAt:  base,
				FinishedAt: base.Add(time.Minute),
			})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidRecord), ShouldBeTrue)
			})
		})

		Convey("When a record is corrected and then deleted", func() {
			rec, err := svc.AddManualRecord(ctx, "ACC88", model.StudyRecord{
				Procedure:  "XR CHEST 1 VIEW",
				StartedAt:  base,
				FinishedAt: base.Add(time.Minute),
			})
			So(err, ShouldBeNil)
			So(waitFor(func() bool {
				records, _ := store.QueryRecords(ctx, repository.RecordFilter{})
				return len(records) == 1
			}), ShouldBeTrue)

			rec.RVU = 0.5
			So(svc.UpdateRecord(ctx, rec), ShouldBeNil)

			s, err := svc.Summary(ctx, stats.Window{})
			So(err, ShouldBeNil)
			So(s.Totals.RVUSum, ShouldAlmostEqual, 0.5)

			So(svc.DeleteRecord(ctx, rec.ID), ShouldBeNil)
			s, err = svc.Summary(ctx, stats.Window{})
			So(err, ShouldBeNil)

			Convey("Then the live view tracks both changes", func() {
				So(s.Totals.Records, ShouldEqual, 0)
			})
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then operations are rejected", func() {
			_, err := svc.StartShift(ctx, "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Summary(ctx, stats.Window{})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a store holding an open shift", t, func() {
		store := repository.NewMemoryStore()
		shift, err := store.CreateShift(context.Background(), model.Shift{Start: base.Add(-time.Hour)})
		So(err, ShouldBeNil)
		now := base
		svc := newService(store, &now)

		Convey("When the service starts", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)

			Convey("Then the shift is resumed", func() {
				active, ok := svc.ActiveShift()
				So(ok, ShouldBeTrue)
				So(active.ID, ShouldEqual, shift.ID)
			})
		})
	})
}
