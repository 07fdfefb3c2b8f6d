package simfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logging "github.com/erichter2018/rvutrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

func TestGeneratePlan(t *testing.T) {
	Convey("Given a feed plan", t, func() {
		cfg := &Config{
			Studies:      5,
			MinReadTicks: 2,
			MaxReadTicks: 4,
			GapTicks:     1,
			TickSpacing:  30 * time.Second,
		}
		start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		plan := generatePlan(cfg, start)

		Convey("Then every study run ends with a placeholder tick", func() {
			So(len(plan), ShouldBeGreaterThan, 0)
			So(plan[len(plan)-1].Accession, ShouldBeEmpty)

			var studies int
			last := ""
			for _, obs := range plan {
				if obs.Accession != "" && obs.Accession != last {
					studies++
				}
				last = obs.Accession
			}
			So(studies, ShouldEqual, 5)
		})

		Convey("Then timestamps advance monotonically by the spacing", func() {
			prev, err := time.Parse(time.RFC3339, plan[0].ObservedAt)
			So(err, ShouldBeNil)
			So(prev.Equal(start), ShouldBeTrue)
			for _, obs := range plan[1:] {
				at, err := time.Parse(time.RFC3339, obs.ObservedAt)
				So(err, ShouldBeNil)
				So(at.Sub(prev), ShouldEqual, 30*time.Second)
				prev = at
			}
		})

		Convey("Then each study spans at least the minimum read ticks", func() {
			runs := map[string]int{}
			for _, obs := range plan {
				if obs.Accession != "" {
					runs[obs.Accession]++
				}
			}
			for _, n := range runs {
				So(n, ShouldBeGreaterThanOrEqualTo, 2)
				So(n, ShouldBeLessThanOrEqualTo, 4)
			}
		})
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a stub service", t, func() {
		var ticks, shiftStarts int
		var lastAccession string
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/shifts/start", func(w http.ResponseWriter, r *http.Request) {
			shiftStarts++
			w.WriteHeader(http.StatusCreated)
		})
		mux.HandleFunc("/observations", func(w http.ResponseWriter, r *http.Request) {
			var obs Observation
			_ = json.NewDecoder(r.Body).Decode(&obs)
			ticks++
			// A placeholder after a tracked accession completes a study.
			completed := obs.Accession == "" && lastAccession != ""
			lastAccession = obs.Accession
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			resp := map[string]any{"status": "accepted", "completed": completed}
			if completed {
				resp["record"] = map[string]any{"study_type": "CT Head", "rvu": 0.85}
			}
			_ = json.NewEncoder(w).Encode(resp)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When the simulation runs", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:      srv.URL,
				Studies:      3,
				MinReadTicks: 1,
				MaxReadTicks: 2,
				GapTicks:     1,
				StartShift:   true,
			})

			Convey("Then every planned tick reached the service", func() {
				So(err, ShouldBeNil)
				So(shiftStarts, ShouldEqual, 1)
				So(stats.TicksSent, ShouldEqual, ticks)
				So(stats.StudiesOpened, ShouldEqual, 3)
				So(stats.RecordsCompleted, ShouldEqual, 3)
				So(stats.RVUSum, ShouldAlmostEqual, 3*0.85)
				So(stats.Failed, ShouldEqual, 0)
			})
		})

		Convey("When the service is unreachable", func() {
			_, err := Run(ctx, &Config{BaseURL: "http://127.0.0.1:1", Studies: 1})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
