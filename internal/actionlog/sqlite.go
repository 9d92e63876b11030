package actionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// List page size limits.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Filter controls which records List returns.
type Filter struct {
	Point  string    // optional: exact point identifier
	Action string    // optional: force, unforce, read, auto_evaluate, ...
	Source string    // optional: cli, batch, auto, scheduler
	Failed bool      // only unsuccessful records
	Since  time.Time // optional: records at or after this time
	Limit  int       // default 50, max 500
	Offset int       // pagination offset
}

// ListResult contains one page of records, most recent first.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// SQLiteLog stores records in the action_records table.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog creates a history store over a migrated database.
func NewSQLiteLog(db *sql.DB) *SQLiteLog {
	return &SQLiteLog{db: db}
}

// Append inserts one record.
func (l *SQLiteLog) Append(ctx context.Context, rec Record) error {
	rec.normalise()

	var detailsJSON *string
	if rec.Details != nil {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("marshalling action details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO action_records
		 (id, timestamp, action, source, point, value, dry_run, success, message, observed_value, attempt, screenshot_ref, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(timestampLayout), rec.Action,
		nullableString(rec.Source), nullableString(rec.Point), rec.Value,
		rec.DryRun, rec.Success, nullableString(rec.Message), rec.ObservedValue,
		rec.Attempt, nullableString(rec.ScreenshotRef), detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting action record: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching the filter, most recent first.
func (l *SQLiteLog) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Point != "" {
		conditions = append(conditions, "point = ?")
		args = append(args, filter.Point)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Failed {
		conditions = append(conditions, "success = 0")
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(timestampLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM action_records " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := l.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting action records: %w", err)
	}

	query := "SELECT id, timestamp, action, source, point, value, dry_run, success, message, observed_value, attempt, screenshot_ref, details " + //nolint:gosec // WHERE built from parameterised conditions
		"FROM action_records " + where + " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var ts string
	var source, point, message, shot, details sql.NullString
	var value, observed sql.NullFloat64

	if err := rows.Scan(&rec.ID, &ts, &rec.Action, &source, &point, &value,
		&rec.DryRun, &rec.Success, &message, &observed, &rec.Attempt, &shot, &details); err != nil {
		return rec, fmt.Errorf("scanning action record: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return rec, fmt.Errorf("parsing action record timestamp %q: %w", ts, err)
	}
	rec.Timestamp = t
	rec.Source = source.String
	rec.Point = point.String
	rec.Message = message.String
	rec.ScreenshotRef = shot.String
	if value.Valid {
		v := value.Float64
		rec.Value = &v
	}
	if observed.Valid {
		v := observed.Float64
		rec.ObservedValue = &v
	}
	if details.Valid && details.String != "" {
		var d map[string]any
		if json.Unmarshal([]byte(details.String), &d) == nil {
			rec.Details = d
		}
	}
	return rec, nil
}
