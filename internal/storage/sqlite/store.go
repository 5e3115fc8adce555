// Package sqlite is a SQLite-backed trace archive.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
)

// Store is a SQLite implementation of TraceArchive.
type Store struct {
	db *sqlx.DB
}

var _ storage.TraceArchive = (*Store)(nil)

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS traces (
id TEXT PRIMARY KEY,
company_id TEXT NOT NULL,
session_id TEXT NOT NULL,
status TEXT NOT NULL,
started_at TIMESTAMP NOT NULL,
duration_ns INTEGER NOT NULL,
steps TEXT NOT NULL,
archived_at TIMESTAMP NOT NULL
)`)
	return err
}

type traceRow struct {
	ID         string    `db:"id"`
	CompanyID  string    `db:"company_id"`
	SessionID  string    `db:"session_id"`
	Status     string    `db:"status"`
	StartedAt  time.Time `db:"started_at"`
	DurationNs int64     `db:"duration_ns"`
	Steps      string    `db:"steps"`
	ArchivedAt time.Time `db:"archived_at"`
}

func (s *Store) Save(ctx context.Context, companyID string, tr *trace.Trace) error {
	steps, err := json.Marshal(tr.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, company_id, session_id, status, started_at, duration_ns, steps, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, companyID, tr.SessionID, string(tr.Status), tr.StartedAt, int64(tr.Duration), string(steps), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	var row traceRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM traces WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	return row.toRecord()
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	query := `SELECT * FROM traces`
	args := []any{}
	if opts.CompanyID != "" {
		query += ` WHERE company_id = ?`
		args = append(args, opts.CompanyID)
	}
	query += ` ORDER BY started_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	var rows []traceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	records := make([]*storage.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (r traceRow) toRecord() (*storage.Record, error) {
	var steps []trace.Step
	if err := json.Unmarshal([]byte(r.Steps), &steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps for trace %s: %w", r.ID, err)
	}
	return &storage.Record{
		CompanyID: r.CompanyID,
		Trace: &trace.Trace{
			ID:        r.ID,
			SessionID: r.SessionID,
			Status:    trace.Status(r.Status),
			StartedAt: r.StartedAt,
			Duration:  time.Duration(r.DurationNs),
			Steps:     steps,
		},
	}, nil
}
