package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS shifts (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	start           TEXT NOT NULL,
	end_time        TEXT,
	effective_start TEXT
);

CREATE TABLE IF NOT EXISTS records (
	id                  TEXT PRIMARY KEY,
	shift_id            TEXT NOT NULL DEFAULT '',
	accession_hash      TEXT NOT NULL,
	procedure           TEXT NOT NULL,
	study_type          TEXT NOT NULL,
	rvu                 REAL NOT NULL,
	started_at          TEXT NOT NULL,
	finished_at         TEXT NOT NULL,
	duration_seconds    INTEGER NOT NULL,
	patient_class       TEXT NOT NULL,
	accession_count     INTEGER NOT NULL DEFAULT 1,
	group_id            TEXT NOT NULL DEFAULT '',
	has_critical_result INTEGER NOT NULL DEFAULT 0,
	source              TEXT NOT NULL DEFAULT 'tracker'
);

CREATE INDEX IF NOT EXISTS idx_records_finished_at ON records(finished_at);
CREATE INDEX IF NOT EXISTS idx_records_shift_id ON records(shift_id);
CREATE INDEX IF NOT EXISTS idx_shifts_start ON shifts(start);
`

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. WAL keeps the async writer from blocking readers.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under the writer pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateShift stores a new shift, enforcing the single-active-shift rule.
func (s *SQLiteStore) CreateShift(ctx context.Context, shift model.Shift) (model.Shift, error) {
	var open int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shifts WHERE end_time IS NULL`).Scan(&open)
	if err != nil {
		return model.Shift{}, fmt.Errorf("check active shift: %w", err)
	}
	if open > 0 {
		return model.Shift{}, ErrActiveShiftExists
	}

	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shifts (id, name, start, end_time, effective_start) VALUES (?, ?, ?, ?, ?)`,
		shift.ID, shift.Name, encodeTime(shift.Start), encodeTimePtr(shift.End), encodeTimePtr(shift.EffectiveStart),
	)
	if err != nil {
		return model.Shift{}, fmt.Errorf("insert shift: %w", err)
	}
	return shift, nil
}

// UpdateShift rewrites a stored shift.
func (s *SQLiteStore) UpdateShift(ctx context.Context, shift model.Shift) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE shifts SET name = ?, start = ?, end_time = ?, effective_start = ? WHERE id = ?`,
		shift.Name, encodeTime(shift.Start), encodeTimePtr(shift.End), encodeTimePtr(shift.EffectiveStart), shift.ID,
	)
	if err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	return requireRow(res)
}

// EndShift closes an open shift.
func (s *SQLiteStore) EndShift(ctx context.Context, shiftID string, at time.Time) (model.Shift, error) {
	shift, err := s.getShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	if !shift.Active() {
		return model.Shift{}, ErrShiftClosed
	}
	shift.End = &at
	if err := s.UpdateShift(ctx, shift); err != nil {
		return model.Shift{}, err
	}
	return shift, nil
}

// AddRecord stores a record, assigning an ID when absent.
func (s *SQLiteStore) AddRecord(ctx context.Context, rec model.StudyRecord) (model.StudyRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (id, shift_id, accession_hash, procedure, study_type, rvu,
			started_at, finished_at, duration_seconds, patient_class, accession_count,
			group_id, has_critical_result, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ShiftID, rec.AccessionHash, rec.Procedure, rec.StudyType, rec.RVU,
		encodeTime(rec.StartedAt), encodeTime(rec.FinishedAt), rec.DurationSeconds,
		string(rec.PatientClass), rec.AccessionCount, rec.GroupID,
		boolToInt(rec.HasCriticalResult), rec.Source,
	)
	if err != nil {
		return model.StudyRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// UpdateRecord rewrites a stored record.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, rec model.StudyRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET shift_id = ?, accession_hash = ?, procedure = ?, study_type = ?,
			rvu = ?, started_at = ?, finished_at = ?, duration_seconds = ?, patient_class = ?,
			accession_count = ?, group_id = ?, has_critical_result = ?, source = ?
		 WHERE id = ?`,
		rec.ShiftID, rec.AccessionHash, rec.Procedure, rec.StudyType,
		rec.RVU, encodeTime(rec.StartedAt), encodeTime(rec.FinishedAt), rec.DurationSeconds,
		string(rec.PatientClass), rec.AccessionCount, rec.GroupID,
		boolToInt(rec.HasCriticalResult), rec.Source, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireRow(res)
}

// DeleteRecord removes a record by ID.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRow(res)
}

// QueryRecords returns matching records ordered by finish time.
func (s *SQLiteStore) QueryRecords(ctx context.Context, f RecordFilter) ([]model.StudyRecord, error) {
	q := `SELECT id, shift_id, accession_hash, procedure, study_type, rvu,
			started_at, finished_at, duration_seconds, patient_class, accession_count,
			group_id, has_critical_result, source
		  FROM records WHERE 1=1`
	args := make([]any, 0, 4)
	if f.ShiftID != "" {
		q += ` AND shift_id = ?`
		args = append(args, f.ShiftID)
	}
	if f.Source != "" {
		q += ` AND source = ?`
		args = append(args, f.Source)
	}
	if !f.From.IsZero() {
		q += ` AND finished_at >= ?`
		args = append(args, encodeTime(f.From))
	}
	if !f.To.IsZero() {
		q += ` AND finished_at < ?`
		args = append(args, encodeTime(f.To))
	}
	q += ` ORDER BY finished_at ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make([]model.StudyRecord, 0)
	for rows.Next() {
		var rec model.StudyRecord
		var started, finished, class string
		var critical int
		if err := rows.Scan(&rec.ID, &rec.ShiftID, &rec.AccessionHash, &rec.Procedure,
			&rec.StudyType, &rec.RVU, &started, &finished, &rec.DurationSeconds,
			&class, &rec.AccessionCount, &rec.GroupID, &critical, &rec.Source); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.StartedAt, _ = decodeTime(started)
		rec.FinishedAt, _ = decodeTime(finished)
		rec.PatientClass = model.ParsePatientClass(class)
		rec.HasCriticalResult = critical != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ListShifts returns matching shifts, most recent first.
func (s *SQLiteStore) ListShifts(ctx context.Context, f ShiftFilter) ([]model.Shift, error) {
	q := `SELECT id, name, start, end_time, effective_start FROM shifts WHERE 1=1`
	args := make([]any, 0, 3)
	if f.ActiveOnly {
		q += ` AND end_time IS NULL`
	}
	if !f.From.IsZero() {
		q += ` AND start >= ?`
		args = append(args, encodeTime(f.From))
	}
	if !f.To.IsZero() {
		q += ` AND start < ?`
		args = append(args, encodeTime(f.To))
	}
	q += ` ORDER BY start DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	out := make([]model.Shift, 0)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shifts: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) getShift(ctx context.Context, id string) (model.Shift, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, start, end_time, effective_start FROM shifts WHERE id = ?`, id)
	shift, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Shift{}, ErrNotFound
	}
	return shift, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShift(row scanner) (model.Shift, error) {
	var shift model.Shift
	var start string
	var end, effective sql.NullString
	if err := row.Scan(&shift.ID, &shift.Name, &start, &end, &effective); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Shift{}, err
		}
		return model.Shift{}, fmt.Errorf("scan shift: %w", err)
	}
	shift.Start, _ = decodeTime(start)
	shift.End = decodeTimeNull(end)
	shift.EffectiveStart = decodeTimeNull(effective)
	return shift, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// timeLayout is fixed-width: RFC3339Nano trims trailing zeros, so strings of
// mixed sub-second precision would not sort lexicographically and the SQL
// range filters and ORDER BY would misorder them.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func decodeTimeNull(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
