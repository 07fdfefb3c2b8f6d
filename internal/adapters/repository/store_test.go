package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func record(shiftID string, rvu float64, finish time.Duration) model.StudyRecord {
	return model.StudyRecord{
		ShiftID:        shiftID,
		AccessionHash:  "hash",
		Procedure:      "CT HEAD WO CONTRAST",
		StudyType:      "CT Head",
		RVU:            rvu,
		StartedAt:      base,
		FinishedAt:     base.Add(finish),
		DurationSeconds: int64(finish / time.Second),
		PatientClass:   model.ED,
		AccessionCount: 1,
		Source:         model.SourceTracker,
	}
}

// storeUnderTest runs the same contract against every Store implementation.
func storeUnderTest(t *testing.T, name string, open func(t *testing.T) repository.Store) {
	ctx := context.Background()

	Convey("Given an empty "+name, t, func() {
		store := open(t)
		defer store.Close()

		Convey("When a shift is created", func() {
			shift, err := store.CreateShift(ctx, model.Shift{Name: "day", Start: base})
			So(err, ShouldBeNil)
			So(shift.ID, ShouldNotBeEmpty)

			Convey("Then a second active shift is rejected", func() {
				_, err := store.CreateShift(ctx, model.Shift{Start: base.Add(time.Hour)})
				So(errors.Is(err, repository.ErrActiveShiftExists), ShouldBeTrue)
			})

			Convey("And it can be closed exactly once", func() {
				closed, err := store.EndShift(ctx, shift.ID, base.Add(8*time.Hour))
				So(err, ShouldBeNil)
				So(closed.Active(), ShouldBeFalse)

				_, err = store.EndShift(ctx, shift.ID, base.Add(9*time.Hour))
				So(errors.Is(err, repository.ErrShiftClosed), ShouldBeTrue)
			})

			Convey("And its effective start can be rewritten", func() {
				eff := base.Add(-30 * time.Minute)
				shift.EffectiveStart = &eff
				So(store.UpdateShift(ctx, shift), ShouldBeNil)

				shifts, err := store.ListShifts(ctx, repository.ShiftFilter{})
				So(err, ShouldBeNil)
				So(shifts, ShouldHaveLength, 1)
				So(shifts[0].EffectiveStart, ShouldNotBeNil)
				So(shifts[0].EffectiveStart.Equal(eff), ShouldBeTrue)
			})

			Convey("And records attached to it round-trip", func() {
				rec, err := store.AddRecord(ctx, record(shift.ID, 1.82, 20*time.Minute))
				So(err, ShouldBeNil)
				So(rec.ID, ShouldNotBeEmpty)

				got, err := store.QueryRecords(ctx, repository.RecordFilter{ShiftID: shift.ID})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].RVU, ShouldEqual, 1.82)
				So(got[0].StudyType, ShouldEqual, "CT Head")
				So(got[0].PatientClass, ShouldEqual, model.ED)
				So(got[0].FinishedAt.Equal(base.Add(20*time.Minute)), ShouldBeTrue)
			})
		})

		Convey("When records span a time range", func() {
			shift, _ := store.CreateShift(ctx, model.Shift{Start: base})
			for i, finish := range []time.Duration{10 * time.Minute, 30 * time.Minute, 2 * time.Hour} {
				_, err := store.AddRecord(ctx, record(shift.ID, float64(i+1), finish))
				So(err, ShouldBeNil)
			}

			Convey("Then the half-open range filter applies to finish time", func() {
				got, err := store.QueryRecords(ctx, repository.RecordFilter{
					From: base.Add(10 * time.Minute),
					To:   base.Add(2 * time.Hour),
				})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
			})

			Convey("And results come back ordered by finish time", func() {
				got, err := store.QueryRecords(ctx, repository.RecordFilter{})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(got[0].FinishedAt.Before(got[1].FinishedAt), ShouldBeTrue)
				So(got[1].FinishedAt.Before(got[2].FinishedAt), ShouldBeTrue)
			})
		})

		Convey("When finish times carry sub-second precision", func() {
			shift, _ := store.CreateShift(ctx, model.Shift{Start: base})
			for _, finish := range []time.Duration{
				30 * time.Second,
				30*time.Second + 500*time.Millisecond,
				31 * time.Second,
			} {
				_, err := store.AddRecord(ctx, record(shift.ID, 1.0, finish))
				So(err, ShouldBeNil)
			}

			Convey("Then a whole-second From does not skip fractional finishes", func() {
				got, err := store.QueryRecords(ctx, repository.RecordFilter{
					From: base.Add(30 * time.Second),
					To:   base.Add(31 * time.Second),
				})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
			})

			Convey("And ordering interleaves whole and fractional seconds", func() {
				got, err := store.QueryRecords(ctx, repository.RecordFilter{})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 3)
				So(got[1].FinishedAt.Equal(base.Add(30*time.Second+500*time.Millisecond)), ShouldBeTrue)
			})
		})

		Convey("When a record is updated and deleted", func() {
			rec, _ := store.AddRecord(ctx, record("", 1.0, 15*time.Minute))

			rec.StudyType = "CT Abdomen Pelvis"
			rec.RVU = 1.82
			So(store.UpdateRecord(ctx, rec), ShouldBeNil)

			got, _ := store.QueryRecords(ctx, repository.RecordFilter{})
			So(got[0].StudyType, ShouldEqual, "CT Abdomen Pelvis")

			So(store.DeleteRecord(ctx, rec.ID), ShouldBeNil)
			So(errors.Is(store.DeleteRecord(ctx, rec.ID), repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When operating on unknown IDs", func() {
			Convey("Then the not-found sentinel surfaces", func() {
				_, err := store.EndShift(ctx, "missing", base)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				err = store.UpdateRecord(ctx, model.StudyRecord{ID: "missing"})
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When shifts are listed with filters", func() {
			s1, _ := store.CreateShift(ctx, model.Shift{Start: base})
			_, _ = store.EndShift(ctx, s1.ID, base.Add(8*time.Hour))
			s2, _ := store.CreateShift(ctx, model.Shift{Start: base.Add(24 * time.Hour)})

			Convey("Then ActiveOnly returns just the open shift", func() {
				got, err := store.ListShifts(ctx, repository.ShiftFilter{ActiveOnly: true})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, s2.ID)
			})

			Convey("Then Limit with most-recent-first ordering holds", func() {
				got, err := store.ListShifts(ctx, repository.ShiftFilter{Limit: 1})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, s2.ID)
			})
		})
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, "memory store", func(t *testing.T) repository.Store {
		return repository.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeUnderTest(t, "sqlite store", func(t *testing.T) repository.Store {
		store, err := repository.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "rvutrack.db"))
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		return store
	})
}
