package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/envelope-ocr/constants"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one invocation recorded in the ledger.
type Run struct {
	ID           uuid.UUID
	ReportKey    string
	Filename     string
	Ext          string
	Source       string
	Status       constants.RunStatus
	RowsAppended int
	Pages        int
	Attempts     int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Outcome is what Finish records.
type Outcome struct {
	Status       constants.RunStatus
	Ext          string
	RowsAppended int
	Pages        int
	Attempts     int
	ErrorMessage string
}

type RunRepository interface {
	Start(ctx context.Context, run Run) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, out Outcome) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	ListByReport(ctx context.Context, reportKey string) ([]Run, error)
}

const runsSchema = `CREATE TABLE IF NOT EXISTS ocr_runs (
	id            TEXT PRIMARY KEY,
	report_key    TEXT NOT NULL,
	filename      TEXT NOT NULL,
	ext           TEXT NOT NULL,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL,
	rows_appended INTEGER NOT NULL DEFAULT 0,
	pages         INTEGER NOT NULL DEFAULT 0,
	attempts      INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NULL
)`

const runsIndex = `CREATE INDEX IF NOT EXISTS ocr_runs_report_key_idx ON ocr_runs (report_key, started_at)`

const runColumns = `id, report_key, filename, ext, source, status, rows_appended, pages, attempts, error_message, started_at, finished_at`

type runRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

// NewRunRepository creates the ocr_runs table if needed.
func NewRunRepository(ctx context.Context, db *DB, log *slog.Logger) (RunRepository, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, stmt := range []string{runsSchema, runsIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate ocr_runs: %w", err)
		}
	}
	return &runRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *runRepo) Start(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = constants.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, r.db.rebind(`INSERT INTO ocr_runs
		(id, report_key, filename, ext, source, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.ReportKey, run.Filename, run.Ext, run.Source, string(run.Status), run.StartedAt.UTC())
	if err != nil {
		r.log.Error("ocr_run start failed", "filename", run.Filename, "err", err)
		return uuid.Nil, err
	}
	r.log.Debug("ocr_run started", "run_id", run.ID, "filename", run.Filename, "report_key", run.ReportKey)
	return run.ID, nil
}

func (r *runRepo) Finish(ctx context.Context, id uuid.UUID, out Outcome) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`UPDATE ocr_runs
		SET status = ?, ext = ?, rows_appended = ?, pages = ?, attempts = ?, error_message = ?, finished_at = ?
		WHERE id = ?`),
		string(out.Status), out.Ext, out.RowsAppended, out.Pages, out.Attempts, out.ErrorMessage, r.now(), id.String())
	if err != nil {
		r.log.Error("ocr_run finish failed", "run_id", id, "err", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	r.log.Debug("ocr_run finished", "run_id", id, "status", out.Status, "rows", out.RowsAppended)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT `+runColumns+` FROM ocr_runs WHERE id = ?`), id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepo) ListByReport(ctx context.Context, reportKey string) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(`SELECT `+runColumns+` FROM ocr_runs
		WHERE report_key = ? ORDER BY started_at, id`), reportKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run      Run
		id       string
		status   string
		finished sql.NullTime
	)
	if err := s.Scan(&id, &run.ReportKey, &run.Filename, &run.Ext, &run.Source, &status,
		&run.RowsAppended, &run.Pages, &run.Attempts, &run.ErrorMessage, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Status = constants.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
