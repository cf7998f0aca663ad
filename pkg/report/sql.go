package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"lifelog-migrate/pkg/db"
	"lifelog-migrate/pkg/domain"
)

const (
	runTable     = "import_run"
	outcomeTable = "import_outcome"
)

// The DDL sticks to types both Postgres and SQLite accept.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS import_run (
  run_id TEXT PRIMARY KEY,
  started_at TIMESTAMP NOT NULL,
  finished_at TIMESTAMP NOT NULL,
  dry_run BOOLEAN NOT NULL,
  date_window TEXT NOT NULL DEFAULT '',
  total INTEGER NOT NULL,
  success INTEGER NOT NULL,
  partial INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  interrupted INTEGER NOT NULL DEFAULT 0,
  conversations INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS import_outcome (
  run_id TEXT NOT NULL REFERENCES import_run(run_id),
  position INTEGER NOT NULL,
  lifelog_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  parts INTEGER NOT NULL,
  total_parts INTEGER NOT NULL,
  errors TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (run_id, position)
);`

// SQLSink writes reports to any DBProvider (Postgres, Supabase direct, SQLite).
type SQLSink struct {
	provider db.DBProvider
	logger   *slog.Logger
}

// NewSQLSink wraps a connected provider.
func NewSQLSink(provider db.DBProvider, logger *slog.Logger) (*SQLSink, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLSink{provider: provider, logger: logger.With("component", "report")}, nil
}

// Save creates the schema if needed and inserts the run and its outcomes in
// one transaction. Saving the same run twice is a no-op.
func (s *SQLSink) Save(ctx context.Context, report *domain.RunReport) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if err := s.insertTx(ctx, report); err != nil {
		return err
	}
	s.logger.Info("run report saved", "run_id", report.ID, "outcomes", len(report.Outcomes))
	return nil
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	if s.provider.DB() == nil {
		return fmt.Errorf("database not connected")
	}
	// Some drivers refuse multiple statements per Exec.
	for _, stmt := range strings.Split(schemaDDL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.provider.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create report schema: %w", err)
		}
	}
	return nil
}

func (s *SQLSink) insertTx(ctx context.Context, report *domain.RunReport) error {
	tx, err := s.provider.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := s.provider.Dialect()
	res, err := tx.ExecContext(ctx, insertQuery(d, runTable,
		"run_id", "started_at", "finished_at", "dry_run", "date_window",
		"total", "success", "partial", "failed", "skipped", "interrupted", "conversations")+" ON CONFLICT (run_id) DO NOTHING",
		report.ID, report.StartedAt, report.FinishedAt, report.DryRun, report.Window,
		report.Total, report.Success, report.Partial, report.Failed, report.Skipped, report.Interrupted, report.Created)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit()
	}

	if err := insertOutcomes(ctx, tx, d, report.Outcomes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertOutcomes(ctx context.Context, tx *sql.Tx, d db.Dialect, rows []domain.OutcomeRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertQuery(d, outcomeTable,
		"run_id", "position", "lifelog_id", "title", "status", "parts", "total_parts", "errors"))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Index, r.LifelogID, r.Title, r.Status,
			r.Parts, r.Total, strings.Join(r.Errors, "\n")); err != nil {
			return fmt.Errorf("insert outcome lifelog=%q: %w", r.LifelogID, err)
		}
	}
	return nil
}

func insertQuery(d db.Dialect, table string, columns ...string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "))
}
