package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/internal/domain/tracker"
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
		PatientClass:  model.Outpatient,
		ObservedAt:    base.Add(offset),
	}
}

func TestObserve(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracker with a one-second minimum", t, func() {
		tr := tracker.New(tracker.WithMinStudyDuration(time.Second))
		tr.SetShiftActive(true)

		Convey("When one accession is observed twice and then replaced", func() {
			_, ok := tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			So(ok, ShouldBeFalse)
			_, ok = tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 30*time.Second))
			So(ok, ShouldBeFalse)

			done, ok := tr.Observe(ctx, obs("ACC2", "XR CHEST 1 VIEW", 65*time.Second))

			Convey("Then exactly one completion is emitted for the first accession", func() {
				So(ok, ShouldBeTrue)
				So(done.Accession, ShouldEqual, "ACC1")
				So(done.ProcedureText, ShouldEqual, "CT HEAD WO CONTRAST")
			})

			Convey("And the window runs from first sight to the replacing tick", func() {
				So(done.StartedAt, ShouldEqual, base)
				So(done.FinishedAt, ShouldEqual, base.Add(65*time.Second))
				So(done.Duration(), ShouldEqual, 65*time.Second)
			})

			Convey("And the new accession is now being tracked", func() {
				cur, tracking := tr.Tracking()
				So(tracking, ShouldBeTrue)
				So(cur.Accession, ShouldEqual, "ACC2")
			})
		})

		Convey("When a placeholder marker arrives while tracking", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, ok := tr.Observe(ctx, obs("", "", 40*time.Second))

			Convey("Then the tracked study is force-completed", func() {
				So(ok, ShouldBeTrue)
				So(done.Accession, ShouldEqual, "ACC1")
				So(done.Duration(), ShouldEqual, 40*time.Second)
			})

			Convey("And no new tracking begins", func() {
				_, tracking := tr.Tracking()
				So(tracking, ShouldBeFalse)
			})
		})

		Convey("When a placeholder arrives while idle", func() {
			_, ok := tr.Observe(ctx, obs("", "", 0))

			Convey("Then nothing happens", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When an observation has an empty procedure text on a new accession", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			_, ok := tr.Observe(ctx, obs("ACC2", "", 30*time.Second))

			Convey("Then the observation is ignored and state is unaffected", func() {
				So(ok, ShouldBeFalse)
				cur, tracking := tr.Tracking()
				So(tracking, ShouldBeTrue)
				So(cur.Accession, ShouldEqual, "ACC1")
			})
		})

		Convey("When a repeat observation goes backwards in time", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 30*time.Second))
			_, ok := tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 10*time.Second))

			Convey("Then it is ignored", func() {
				So(ok, ShouldBeFalse)
				cur, _ := tr.Tracking()
				So(cur.LastSeenAt, ShouldEqual, base.Add(30*time.Second))
			})
		})

		Convey("When the same accession reappears after a placeholder gap", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, ok := tr.Observe(ctx, obs("", "", 20*time.Second))
			So(ok, ShouldBeTrue)
			So(done.Accession, ShouldEqual, "ACC1")

			_, ok = tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 21*time.Second))

			Convey("Then a fresh window starts rather than merging", func() {
				So(ok, ShouldBeFalse)
				cur, tracking := tr.Tracking()
				So(tracking, ShouldBeTrue)
				So(cur.FirstSeenAt, ShouldEqual, base.Add(21*time.Second))
			})
		})
	})
}

func TestThreshold(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracker with a two-minute minimum", t, func() {
		tr := tracker.New(tracker.WithMinStudyDuration(2 * time.Minute))
		tr.SetShiftActive(true)

		Convey("When a window closes after 65 seconds", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 30*time.Second))
			_, ok := tr.Observe(ctx, obs("ACC2", "XR CHEST 1 VIEW", 65*time.Second))

			Convey("Then no completion is emitted", func() {
				So(ok, ShouldBeFalse)
			})

			Convey("And the replacing accession still begins tracking", func() {
				cur, tracking := tr.Tracking()
				So(tracking, ShouldBeTrue)
				So(cur.Accession, ShouldEqual, "ACC2")
			})
		})

		Convey("When a window closes exactly at the threshold", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, ok := tr.Observe(ctx, obs("ACC2", "XR CHEST 1 VIEW", 2*time.Minute))

			Convey("Then exactly one completion is emitted with the full duration", func() {
				So(ok, ShouldBeTrue)
				So(done.Duration(), ShouldEqual, 2*time.Minute)
			})
		})
	})
}

func TestHooks(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracker with a grouping hook and no active shift", t, func() {
		tr := tracker.New(
			tracker.WithMinStudyDuration(time.Second),
			tracker.WithGroupKeyFunc(func(c model.Completion) string {
				return c.ProcedureText
			}),
		)

		Convey("When a completion is emitted", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, ok := tr.Flush(ctx, base.Add(30*time.Second))

			Convey("Then it carries the grouping key", func() {
				So(ok, ShouldBeTrue)
				So(done.GroupKey, ShouldEqual, "CT HEAD WO CONTRAST")
			})

			Convey("And it is marked temporary", func() {
				So(done.Temporary, ShouldBeTrue)
			})
		})

		Convey("When a shift becomes active", func() {
			tr.SetShiftActive(true)
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, _ := tr.Flush(ctx, base.Add(30*time.Second))

			Convey("Then completions are no longer temporary", func() {
				So(done.Temporary, ShouldBeFalse)
			})
		})
	})

	Convey("Given placeholder markers that omit the empty string", t, func() {
		tr := tracker.New(
			tracker.WithMinStudyDuration(time.Second),
			tracker.WithPlaceholderMarkers("no accession"),
		)
		tr.SetShiftActive(true)

		Convey("When an empty accession arrives with procedure text", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			_, ok := tr.Observe(ctx, obs("", "CT HEAD WO CONTRAST", 30*time.Second))

			Convey("Then the tick is ignored and tracking continues", func() {
				So(ok, ShouldBeFalse)
				cur, tracking := tr.Tracking()
				So(tracking, ShouldBeTrue)
				So(cur.Accession, ShouldEqual, "ACC1")
				So(cur.LastSeenAt, ShouldEqual, base)
			})
		})

		Convey("When an empty accession arrives while idle", func() {
			_, ok := tr.Observe(ctx, obs("", "CT HEAD WO CONTRAST", 0))

			Convey("Then no tracking begins", func() {
				So(ok, ShouldBeFalse)
				_, tracking := tr.Tracking()
				So(tracking, ShouldBeFalse)
			})
		})
	})

	Convey("Given custom placeholder markers", t, func() {
		tr := tracker.New(
			tracker.WithMinStudyDuration(time.Second),
			tracker.WithPlaceholderMarkers("", "N/A"),
		)
		tr.SetShiftActive(true)

		Convey("When the custom marker arrives while tracking", func() {
			tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))
			done, ok := tr.Observe(ctx, obs("n/a", "", 30*time.Second))

			Convey("Then it force-completes like the default markers", func() {
				So(ok, ShouldBeTrue)
				So(done.Accession, ShouldEqual, "ACC1")
			})
		})
	})
}

func TestFlush(t *testing.T) {
	ctx := context.Background()

	Convey("Given a tracker with an open window", t, func() {
		tr := tracker.New(tracker.WithMinStudyDuration(time.Second))
		tr.SetShiftActive(true)
		tr.Observe(ctx, obs("ACC1", "CT HEAD WO CONTRAST", 0))

		Convey("When the tracker is flushed", func() {
			done, ok := tr.Flush(ctx, base.Add(90*time.Second))

			Convey("Then the open window completes at the flush instant", func() {
				So(ok, ShouldBeTrue)
				So(done.Duration(), ShouldEqual, 90*time.Second)
				_, tracking := tr.Tracking()
				So(tracking, ShouldBeFalse)
			})
		})

		Convey("When flushed while idle", func() {
			tr.Flush(ctx, base.Add(time.Minute))
			_, ok := tr.Flush(ctx, base.Add(2*time.Minute))

			Convey("Then nothing is emitted", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}
