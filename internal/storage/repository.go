// Package storage keeps the recurring-transaction scheduler state in SQLite:
// one row per schedule plus a log of every date it fired on.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bilancio/internal/core"
	"bilancio/internal/recurrence"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrDuplicateRun is returned when a schedule already fired on a date.
	ErrDuplicateRun = errors.New("schedule already fired on this date")
)

// Schedule is a stored recurring transaction together with its scheduling state.
type Schedule struct {
	Template  core.RecurringTransaction
	State     recurrence.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is one entry of the fire log.
type Run struct {
	RecurringID string
	RunDate     core.Date
	MessageID   string
	FiredAt     time.Time
	// PublishedAt is zero until the fired message reached the broker.
	PublishedAt time.Time
}

// payload holds the template fields the scheduler does not query on.
type payload struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	AccountID   string `json:"accountId"`
	CategoryID  string `json:"categoryId"`
	Notes       string `json:"notes,omitempty"`
}

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version the store was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertSchedule stores the template and state of a recurring transaction,
// replacing any previous version.
func (r *SQLiteRepository) UpsertSchedule(ctx context.Context, rt core.RecurringTransaction, s recurrence.State) error {
	if rt.ID == "" {
		return errors.New("upsert schedule: missing recurring id")
	}
	body, err := json.Marshal(payload{
		Description: rt.Description,
		AmountCents: rt.Amount.Cents,
		Currency:    string(rt.Currency),
		Type:        string(rt.Type),
		AccountID:   rt.AccountID,
		CategoryID:  rt.CategoryID,
		Notes:       rt.Notes,
	})
	if err != nil {
		return fmt.Errorf("encode schedule payload: %w", err)
	}

	dow, dom := s.Anchor.Wire()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO schedules (recurring_id, frequency, day_of_week, day_of_month, start_date, end_date, next_run_date, is_active, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (recurring_id) DO UPDATE SET
			frequency = excluded.frequency,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			next_run_date = excluded.next_run_date,
			is_active = excluded.is_active,
			payload = excluded.payload,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		rt.ID, string(s.Frequency), nullInt(dow), nullDayOfMonth(dom),
		s.StartDate.String(), nullDate(s.EndDate), s.NextRunDate.String(), s.IsActive, string(body))
	if err != nil {
		return fmt.Errorf("upsert schedule %s: %w", rt.ID, err)
	}
	return nil
}

const scheduleColumns = `recurring_id, frequency, day_of_week, day_of_month, start_date, end_date,
	next_run_date, is_active, payload, created_at, updated_at`

func (r *SQLiteRepository) GetSchedule(ctx context.Context, recurringID string) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE recurring_id = ?`, recurringID)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("%s: %w", recurringID, ErrScheduleNotFound)
	}
	return s, err
}

// ListDueSchedules returns active schedules whose next run is on or before
// asOf, oldest first.
func (r *SQLiteRepository) ListDueSchedules(ctx context.Context, asOf core.Date) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules
		WHERE is_active = 1 AND next_run_date <= ?
		ORDER BY next_run_date, recurring_id`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordRun logs a fire and stores the advanced state in one transaction.
// A second run for the same schedule and date fails with ErrDuplicateRun and
// leaves the state untouched.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run Run, next recurrence.State) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record run: %w", err)
	}
	defer tx.Rollback()

	firedAt := run.FiredAt
	if firedAt.IsZero() {
		firedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO schedule_runs (recurring_id, run_date, message_id, fired_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (recurring_id, run_date) DO NOTHING`,
		run.RecurringID, run.RunDate.String(), run.MessageID, firedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run %s@%s: %w", run.RecurringID, run.RunDate, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert run: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%s@%s: %w", run.RecurringID, run.RunDate, ErrDuplicateRun)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE schedules
		SET next_run_date = ?, is_active = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE recurring_id = ?`,
		next.NextRunDate.String(), next.IsActive, run.RecurringID)
	if err != nil {
		return fmt.Errorf("advance schedule %s: %w", run.RecurringID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", run.RecurringID, ErrScheduleNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record run: %w", err)
	}
	return nil
}

// DeactivateSchedule marks a schedule inactive without firing it.
func (r *SQLiteRepository) DeactivateSchedule(ctx context.Context, recurringID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET is_active = 0, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE recurring_id = ?`, recurringID)
	if err != nil {
		return fmt.Errorf("deactivate schedule %s: %w", recurringID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", recurringID, ErrScheduleNotFound)
	}
	return nil
}

// SaveState overwrites the scheduling state of a schedule without logging a run.
func (r *SQLiteRepository) SaveState(ctx context.Context, recurringID string, s recurrence.State) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET next_run_date = ?, is_active = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE recurring_id = ?`,
		s.NextRunDate.String(), s.IsActive, recurringID)
	if err != nil {
		return fmt.Errorf("save state %s: %w", recurringID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", recurringID, ErrScheduleNotFound)
	}
	return nil
}

// MarkRunPublished records that the message of a run was accepted by the broker.
func (r *SQLiteRepository) MarkRunPublished(ctx context.Context, recurringID string, runDate core.Date) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedule_runs SET published_at = ?
		WHERE recurring_id = ? AND run_date = ? AND published_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), recurringID, runDate.String())
	if err != nil {
		return fmt.Errorf("mark run %s@%s published: %w", recurringID, runDate, err)
	}
	return nil
}

// ListPendingRuns returns runs whose message was never published, oldest first.
func (r *SQLiteRepository) ListPendingRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT recurring_id, run_date, message_id, fired_at, published_at FROM schedule_runs
		WHERE published_at IS NULL ORDER BY run_date, recurring_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ListRuns returns the fire log of a schedule, most recent first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, recurringID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT recurring_id, run_date, message_id, fired_at, published_at FROM schedule_runs
		WHERE recurring_id = ? ORDER BY run_date DESC LIMIT ?`, recurringID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var (
			run              Run
			runDate, firedAt string
			publishedAt      sql.NullString
			err              error
		)
		if err := rows.Scan(&run.RecurringID, &runDate, &run.MessageID, &firedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.RunDate, err = core.ParseDate(runDate); err != nil {
			return nil, err
		}
		run.FiredAt, _ = time.Parse(time.RFC3339, firedAt)
		if publishedAt.Valid {
			run.PublishedAt, _ = time.Parse(time.RFC3339, publishedAt.String)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row scanner) (Schedule, error) {
	var (
		id, freq, start, next, body, created, updated string
		dow, dom                                      sql.NullInt64
		end                                           sql.NullString
		active                                        bool
	)
	if err := row.Scan(&id, &freq, &dow, &dom, &start, &end, &next, &active, &body, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, err
		}
		return Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Schedule{}, fmt.Errorf("decode schedule %s payload: %w", id, err)
	}

	rt := core.RecurringTransaction{
		ID:          id,
		Description: p.Description,
		Amount:      core.Money{Cents: p.AmountCents},
		Currency:    core.Currency(p.Currency),
		Type:        core.TransactionType(p.Type),
		Frequency:   core.Frequency(freq),
		AccountID:   p.AccountID,
		CategoryID:  p.CategoryID,
		Notes:       p.Notes,
		IsActive:    active,
	}
	if dow.Valid {
		d := int(dow.Int64)
		rt.DayOfWeek = &d
	}
	if dom.Valid {
		rt.DayOfMonth = int(dom.Int64)
	}
	var err error
	if rt.StartDate, err = core.ParseDate(start); err != nil {
		return Schedule{}, err
	}
	if end.Valid && end.String != "" {
		if rt.EndDate, err = core.ParseDate(end.String); err != nil {
			return Schedule{}, err
		}
	}
	if rt.NextRunDate, err = core.ParseDate(next); err != nil {
		return Schedule{}, err
	}

	anchor, err := recurrence.AnchorFromWire(rt.DayOfWeek, rt.DayOfMonth)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", id, err)
	}

	s := Schedule{
		Template: rt,
		State: recurrence.State{
			Frequency:   rt.Frequency,
			Anchor:      anchor,
			StartDate:   rt.StartDate,
			EndDate:     rt.EndDate,
			NextRunDate: rt.NextRunDate,
			IsActive:    active,
		},
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, created)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return s, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDayOfMonth(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
