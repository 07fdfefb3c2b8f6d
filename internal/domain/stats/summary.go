package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// Window presets.
const (
	PresetToday    = "today"
	PresetThisWeek = "this_week"
)

// Window selects the records a summary covers. Exactly one of ShiftID,
// Preset, or an explicit range should be set; an empty window means the
// active shift.
type Window struct {
	ShiftID string
	Preset  string
	From    time.Time
	To      time.Time
}

// Totals are the aggregate figures over a window. Studies counts every
// accession in multi-accession groups; Records counts stored records. The
// per-record RVU statistics count each group's value once.
type Totals struct {
	Records   int     `json:"records"`
	Studies   int     `json:"studies"`
	RVUSum    float64 `json:"rvu_sum"`
	RVUMean   float64 `json:"rvu_mean"`
	RVUMedian float64 `json:"rvu_median"`
	RVUMin    float64 `json:"rvu_min"`
	RVUMax    float64 `json:"rvu_max"`
}

// Rates are RVU-per-hour figures over three horizons.
type Rates struct {
	WholeWindowPerHour float64 `json:"whole_window_per_hour"`
	RollingHourPerHour float64 `json:"rolling_hour_per_hour"`
	LastClockHour      float64 `json:"last_clock_hour"`
}

// BreakdownEntry is one bucket of a summary breakdown.
type BreakdownEntry struct {
	Studies int     `json:"studies"`
	RVU     float64 `json:"rvu"`
}

// Summary is the full windowed view over completed studies.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Totals Totals `json:"totals"`
	Rates  Rates  `json:"rates"`

	ByModality     map[string]BreakdownEntry `json:"by_modality"`
	ByRegion       map[string]BreakdownEntry `json:"by_region"`
	ByPatientClass map[string]BreakdownEntry `json:"by_patient_class"`

	Earnings float64 `json:"earnings"`
}

// CompensationSummary is the month-to-date pay view.
type CompensationSummary struct {
	MonthStart    time.Time `json:"month_start"`
	MonthRVU      float64   `json:"month_rvu"`
	TargetRVU     float64   `json:"target_rvu"`
	TargetReached bool      `json:"target_reached"`
	BaseEarnings  float64   `json:"base_earnings"`
	BonusEarnings float64   `json:"bonus_earnings"`
	TotalEarnings float64   `json:"total_earnings"`

	// DaysToTarget projects how many more days of the current daily pace
	// reach the monthly target. Nil when the target is met or no pace exists.
	DaysToTarget *float64 `json:"days_to_target,omitempty"`
}

// regionRules maps study text keywords onto anatomical regions, first match
// wins.
var regionRules = []struct {
	region   string
	keywords []string
}{
	{"Head/Neck", []string{"head", "brain", "neck", "sinus", "orbit"}},
	{"Spine", []string{"spine", "cervical", "lumbar"}},
	{"Chest", []string{"chest", "thorax", "lung", "rib"}},
	{"Abdomen/Pelvis", []string{"abd", "pelvis", "liver", "renal", "kidney"}},
	{"Extremity", []string{"extremity", "hand", "wrist", "elbow", "shoulder", "hip", "knee", "ankle", "foot", "femur", "tibia"}},
}

// Summary computes totals, rates, and breakdowns over the given window.
func (e *Engine) Summary(ctx context.Context, w Window) (Summary, error) {
	from, to, records, err := e.resolveWindow(ctx, w)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		From:           from,
		To:             to,
		ByModality:     make(map[string]BreakdownEntry),
		ByRegion:       make(map[string]BreakdownEntry),
		ByPatientClass: make(map[string]BreakdownEntry),
	}

	rvus := make([]float64, 0, len(records))
	for _, rec := range records {
		studies := rec.AccessionCount
		if studies < 1 {
			studies = 1
		}
		s.Totals.Records++
		s.Totals.Studies += studies
		s.Totals.RVUSum += rec.RVU
		rvus = append(rvus, rec.RVU)

		addBucket(s.ByModality, modality(rec.StudyType), studies, rec.RVU)
		addBucket(s.ByRegion, region(rec.StudyType, rec.Procedure), studies, rec.RVU)
		addBucket(s.ByPatientClass, string(rec.PatientClass), studies, rec.RVU)
	}

	if len(rvus) > 0 {
		sort.Float64s(rvus)
		s.Totals.RVUMean = s.Totals.RVUSum / float64(len(rvus))
		s.Totals.RVUMedian = median(rvus)
		s.Totals.RVUMin = rvus[0]
		s.Totals.RVUMax = rvus[len(rvus)-1]
	}

	s.Rates = e.rates(records, from, to, s.Totals.RVUSum)
	s.Earnings = s.Totals.RVUSum * e.comp.RatePerRVU
	return s, nil
}

// Compensation computes the month-to-date pay view: base rate up to the
// monthly target, bonus rate above it, and a days-to-target projection from
// the current daily pace.
func (e *Engine) Compensation(ctx context.Context) (CompensationSummary, error) {
	now := e.clock()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	stored, err := e.store.QueryRecords(ctx, repository.RecordFilter{From: monthStart, To: now})
	if err != nil {
		return CompensationSummary{}, fmt.Errorf("query month records: %w", err)
	}
	records := mergeLive(stored, e.recordsInRange(monthStart, now))

	var monthRVU float64
	for _, rec := range records {
		monthRVU += rec.RVU
	}

	c := CompensationSummary{
		MonthStart: monthStart,
		MonthRVU:   monthRVU,
		TargetRVU:  e.comp.MonthlyTargetRVU,
	}
	if e.comp.MonthlyTargetRVU > 0 && monthRVU >= e.comp.MonthlyTargetRVU {
		c.TargetReached = true
		c.BaseEarnings = e.comp.MonthlyTargetRVU * e.comp.RatePerRVU
		c.BonusEarnings = (monthRVU - e.comp.MonthlyTargetRVU) * e.comp.BonusRatePerRVU
	} else {
		c.BaseEarnings = monthRVU * e.comp.RatePerRVU
	}
	c.TotalEarnings = c.BaseEarnings + c.BonusEarnings

	if !c.TargetReached && e.comp.MonthlyTargetRVU > 0 {
		daysElapsed := now.Sub(monthStart).Hours() / 24
		if daysElapsed > 0 && monthRVU > 0 {
			dailyPace := monthRVU / daysElapsed
			days := (e.comp.MonthlyTargetRVU - monthRVU) / dailyPace
			c.DaysToTarget = &days
		}
	}
	return c, nil
}

// resolveWindow turns a Window into a concrete range plus its records. Live
// records take precedence over their stored copies, so an unhealthy store
// never stales the active shift's figures.
func (e *Engine) resolveWindow(ctx context.Context, w Window) (time.Time, time.Time, []model.StudyRecord, error) {
	now := e.clock()

	if w.ShiftID != "" || (w.Preset == "" && w.From.IsZero() && w.To.IsZero()) {
		shift, live, err := e.windowShift(ctx, w.ShiftID)
		if err != nil {
			return time.Time{}, time.Time{}, nil, err
		}
		from := shift.StartForRates()
		to := now
		if shift.End != nil {
			to = *shift.End
		}
		if live {
			return from, to, e.LiveRecords(), nil
		}
		records, err := e.store.QueryRecords(ctx, repository.RecordFilter{ShiftID: shift.ID})
		if err != nil {
			return time.Time{}, time.Time{}, nil, fmt.Errorf("query shift records: %w", err)
		}
		return from, to, records, nil
	}

	from, to := w.From, w.To
	switch w.Preset {
	case "":
	case PresetToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		to = now
	case PresetThisWeek:
		from = weekStart(now)
		to = now
	default:
		return time.Time{}, time.Time{}, nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidWindow, w.Preset)
	}
	if to.IsZero() {
		to = now
	}
	if from.IsZero() || !from.Before(to) {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("%w: empty range", ErrInvalidWindow)
	}

	stored, err := e.store.QueryRecords(ctx, repository.RecordFilter{From: from, To: to})
	if err != nil {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("query records: %w", err)
	}
	return from, to, mergeLive(stored, e.recordsInRange(from, to)), nil
}

// windowShift resolves the shift a shift-scoped window refers to, reporting
// whether it is the active one.
func (e *Engine) windowShift(ctx context.Context, shiftID string) (model.Shift, bool, error) {
	if shiftID == "" {
		if e.active == nil {
			return model.Shift{}, false, ErrNoActiveShift
		}
		return *e.active, true, nil
	}
	if e.active != nil && e.active.ID == shiftID {
		return *e.active, true, nil
	}
	shifts, err := e.store.ListShifts(ctx, repository.ShiftFilter{})
	if err != nil {
		return model.Shift{}, false, fmt.Errorf("list shifts: %w", err)
	}
	for _, shift := range shifts {
		if shift.ID == shiftID {
			return shift, false, nil
		}
	}
	return model.Shift{}, false, repository.ErrNotFound
}

// rates computes the three RVU/hour horizons, all anchored on the window end.
func (e *Engine) rates(records []model.StudyRecord, from, to time.Time, sum float64) Rates {
	var r Rates

	if hours := to.Sub(from).Hours(); hours >= minElapsedForRateHours {
		r.WholeWindowPerHour = sum / hours
	}

	rollingFrom := to.Add(-time.Hour)
	hourEnd := to.Truncate(time.Hour)
	hourStart := hourEnd.Add(-time.Hour)
	for _, rec := range records {
		if rec.FinishedAt.After(rollingFrom) && !rec.FinishedAt.After(to) {
			r.RollingHourPerHour += rec.RVU
		}
		if !rec.FinishedAt.Before(hourStart) && rec.FinishedAt.Before(hourEnd) {
			r.LastClockHour += rec.RVU
		}
	}
	return r
}

// recordsInRange filters live and pending records to the half-open range.
func (e *Engine) recordsInRange(from, to time.Time) []model.StudyRecord {
	var out []model.StudyRecord
	for _, set := range [][]model.StudyRecord{e.live, e.pending} {
		for _, rec := range set {
			if !rec.FinishedAt.Before(from) && rec.FinishedAt.Before(to) {
				out = append(out, rec)
			}
		}
	}
	return out
}

// mergeLive overlays live records onto stored ones, de-duplicated by ID with
// the live copy winning, ordered by finish time.
func mergeLive(stored, live []model.StudyRecord) []model.StudyRecord {
	byID := make(map[string]struct{}, len(live))
	for _, rec := range live {
		byID[rec.ID] = struct{}{}
	}
	out := make([]model.StudyRecord, 0, len(stored)+len(live))
	for _, rec := range stored {
		if _, dup := byID[rec.ID]; !dup {
			out = append(out, rec)
		}
	}
	out = append(out, live...)
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out
}

func addBucket(m map[string]BreakdownEntry, key string, studies int, rvu float64) {
	entry := m[key]
	entry.Studies += studies
	entry.RVU += rvu
	m[key] = entry
}

// modality extracts the imaging technique prefix from a study type, e.g.
// "CT Head" reads CT.
func modality(studyType string) string {
	fields := strings.Fields(studyType)
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[0]
}

// region maps study text onto a fixed anatomical grouping.
func region(studyType, procedure string) string {
	text := strings.ToLower(studyType + " " + procedure)
	for _, rule := range regionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.region
			}
		}
	}
	return "Other"
}

// median expects a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// weekStart returns the Monday midnight preceding t.
func weekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
