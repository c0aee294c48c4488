package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"callsignal/internal/domain"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal records telemetry reports in a SQLite database.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenJournal opens (or creates) the journal at path and runs the schema
// migration. Parent directories are created as needed.
func OpenJournal(path string, logger *slog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal db: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id         TEXT PRIMARY KEY,
			severity   TEXT NOT NULL,
			code       TEXT NOT NULL,
			message    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)")
	return err
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Report implements domain.TelemetryReporter. Write failures are logged,
// never returned to the reporting component.
func (j *Journal) Report(ctx context.Context, err error, severity domain.Severity, metadata map[string]string) {
	r := domain.Report{
		Severity: severity,
		Code:     domain.ErrorCodeOf(err),
		Message:  err.Error(),
		Metadata: metadata,
	}
	if recErr := j.Record(ctx, &r); recErr != nil {
		j.logger.Warn("telemetry journal write failed", "error", recErr)
	}
}

// Record stores r, filling in its ID and CreatedAt.
func (j *Journal) Record(ctx context.Context, r *domain.Report) error {
	metaJSON, err := json.Marshal(r.Metadata)
	if err != nil {
		return domain.NewDomainError("Journal.Record", domain.ErrTelemetryWrite, "marshal metadata").WithCause(err)
	}
	now := time.Now().UTC()
	r.ID = newReportID(now)
	r.CreatedAt = now
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO reports (id, severity, code, message, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.Severity.String(), string(r.Code), r.Message, string(metaJSON), now.Format(timeLayout),
	)
	if err != nil {
		return domain.NewDomainError("Journal.Record", domain.ErrTelemetryWrite, "insert").WithCause(err)
	}
	return nil
}

// List returns up to limit reports, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]domain.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, severity, code, message, metadata, created_at FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		var (
			r                                domain.Report
			severity, code, meta, createdStr string
		)
		if err := rows.Scan(&r.ID, &severity, &code, &r.Message, &meta, &createdStr); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Severity = domain.ParseSeverity(severity)
		r.Code = domain.ErrorCode(code)
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal report metadata: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored reports with the given severity.
func (j *Journal) Count(ctx context.Context, severity domain.Severity) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports WHERE severity = ?", severity.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func newReportID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)).String()
}

var _ domain.TelemetryReporter = (*Journal)(nil)
