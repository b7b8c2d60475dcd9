// Package store persists detection results and monitor change events in
// SQLite (modernc.org/sqlite, no cgo). Field lists and job context travel
// as JSON blobs; queries stay on indexed scalar columns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hireloop/formsense/detect"
	"github.com/hireloop/formsense/monitor"
)

const schema = `
CREATE TABLE IF NOT EXISTS forms (
	form_id          TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	platform         TEXT NOT NULL,
	confidence       REAL NOT NULL,
	fingerprint      TEXT NOT NULL DEFAULT '',
	is_multi_step    INTEGER NOT NULL DEFAULT 0,
	fields_json      TEXT NOT NULL,
	job_context_json TEXT,
	detected_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forms_url ON forms(url);

CREATE TABLE IF NOT EXISTS events (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	form_id    TEXT NOT NULL,
	field_id   TEXT NOT NULL DEFAULT '',
	old_value  TEXT NOT NULL DEFAULT '',
	new_value  TEXT NOT NULL DEFAULT '',
	at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_form ON events(form_id, at);
`

// ErrNotFound is returned when a looked-up form does not exist.
var ErrNotFound = errors.New("store: form not found")

// StoredForm is the persisted shape of a detected form.
type StoredForm struct {
	FormID      string             `json:"form_id"`
	URL         string             `json:"url"`
	Platform    detect.Platform    `json:"platform"`
	Confidence  float64            `json:"confidence"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	IsMultiStep bool               `json:"is_multi_step"`
	Fields      []detect.Field     `json:"fields"`
	JobContext  *detect.JobContext `json:"job_context,omitempty"`
	DetectedAt  time.Time          `json:"detected_at"`
}

// Stats summarizes the store for health endpoints.
type Stats struct {
	TotalForms      int            `json:"total_forms"`
	TotalEvents     int            `json:"total_events"`
	FormsByPlatform map[string]int `json:"forms_by_platform,omitempty"`
}

// Store is a persistent record of detections and change events.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the store at path. Use ":memory:" for
// an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// OpenMemory opens an in-memory store for testing. MaxOpenConns(1) keeps
// every query on the same in-memory database; Close is registered via
// t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:", slog.Default())
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

func (s *Store) Close() error { return s.db.Close() }

// SaveResult upserts every form from a detection result in one
// transaction.
func (s *Store) SaveResult(ctx context.Context, res *detect.Result) error {
	if res == nil || len(res.Forms) == 0 {
		return nil
	}
	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		for i := range res.Forms {
			if err := upsertForm(ctx, tx, &res.Forms[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("result saved", "forms", len(res.Forms), "platform", string(res.Platform))
	return nil
}

func upsertForm(ctx context.Context, tx *sql.Tx, form *detect.DetectedForm) error {
	fieldsJSON, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("store: marshal fields: %w", err)
	}
	var jcJSON any
	if form.JobContext != nil {
		b, err := json.Marshal(form.JobContext)
		if err != nil {
			return fmt.Errorf("store: marshal job context: %w", err)
		}
		jcJSON = string(b)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forms
			(form_id, url, platform, confidence, fingerprint, is_multi_step,
			 fields_json, job_context_json, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(form_id) DO UPDATE SET
			url = excluded.url,
			platform = excluded.platform,
			confidence = excluded.confidence,
			fingerprint = excluded.fingerprint,
			is_multi_step = excluded.is_multi_step,
			fields_json = excluded.fields_json,
			job_context_json = excluded.job_context_json,
			detected_at = excluded.detected_at`,
		form.FormID, form.URL, string(form.Platform), form.Confidence,
		form.Fingerprint, boolInt(form.IsMultiStep),
		string(fieldsJSON), jcJSON, form.DetectedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: upsert form %s: %w", form.FormID, err)
	}
	return nil
}

// Form returns one stored form by id, or ErrNotFound.
func (s *Store) Form(ctx context.Context, formID string) (*StoredForm, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT form_id, url, platform, confidence, fingerprint, is_multi_step,
		       fields_json, job_context_json, detected_at
		FROM forms WHERE form_id = ?`, formID)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// RecentForms returns the newest forms, most recent first.
func (s *Store) RecentForms(ctx context.Context, limit int) ([]StoredForm, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT form_id, url, platform, confidence, fingerprint, is_multi_step,
		       fields_json, job_context_json, detected_at
		FROM forms ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query forms: %w", err)
	}
	defer rows.Close()

	var out []StoredForm
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(r rowScanner) (*StoredForm, error) {
	var (
		f         StoredForm
		platform  string
		multiStep int
		fieldsRaw string
		jcRaw     sql.NullString
		at        string
	)
	if err := r.Scan(&f.FormID, &f.URL, &platform, &f.Confidence, &f.Fingerprint,
		&multiStep, &fieldsRaw, &jcRaw, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan form: %w", err)
	}
	f.Platform = detect.Platform(platform)
	f.IsMultiStep = multiStep != 0
	if err := json.Unmarshal([]byte(fieldsRaw), &f.Fields); err != nil {
		return nil, fmt.Errorf("store: unmarshal fields: %w", err)
	}
	if jcRaw.Valid && jcRaw.String != "" {
		f.JobContext = &detect.JobContext{}
		if err := json.Unmarshal([]byte(jcRaw.String), f.JobContext); err != nil {
			return nil, fmt.Errorf("store: unmarshal job context: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("store: parse detected_at: %w", err)
	}
	f.DetectedAt = t
	return &f, nil
}

// AppendEvent records one monitor change event.
func (s *Store) AppendEvent(ctx context.Context, ev monitor.ChangeEvent) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO events
				(event_id, event_type, form_id, field_id, old_value, new_value, at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, string(ev.Type), ev.FormID, ev.FieldID,
			ev.OldValue, ev.NewValue, ev.At.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("store: insert event %s: %w", ev.ID, err)
		}
		return nil
	})
}

// Events returns a form's events in chronological order.
func (s *Store) Events(ctx context.Context, formID string, limit int) ([]monitor.ChangeEvent, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, form_id, field_id, old_value, new_value, at
		FROM events WHERE form_id = ? ORDER BY at ASC LIMIT ?`, formID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var out []monitor.ChangeEvent
	for rows.Next() {
		var (
			ev  monitor.ChangeEvent
			typ string
			at  string
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.FormID, &ev.FieldID,
			&ev.OldValue, &ev.NewValue, &at); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		ev.Type = monitor.EventType(typ)
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("store: parse event time: %w", err)
		}
		ev.At = t
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats reports store-wide counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forms`).Scan(&st.TotalForms); err != nil {
		return st, fmt.Errorf("store: count forms: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events`).Scan(&st.TotalEvents); err != nil {
		return st, fmt.Errorf("store: count events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, COUNT(*) FROM forms GROUP BY platform`)
	if err != nil {
		return st, fmt.Errorf("store: count by platform: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return st, fmt.Errorf("store: scan platform count: %w", err)
		}
		if st.FormsByPlatform == nil {
			st.FormsByPlatform = make(map[string]int)
		}
		st.FormsByPlatform[p] = n
	}
	return st, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
