// Package store keeps a ledger of conversion outcomes so repeated batches
// can skip subjects that were already converted.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"bidsconv/internal/errors"
	"bidsconv/internal/log"
	"bidsconv/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Entry is one recorded conversion.
type Entry struct {
	RunID      string
	Subject    string
	Session    string
	Status     string
	Duration   time.Duration
	Error      string
	RecordedAt time.Time
}

// Ledger records conversion results in SQLite or PostgreSQL.
type Ledger struct {
	db     *sql.DB
	driver string
	logger log.Logging
	now    func() time.Time
}

// DriverFor picks the database/sql driver and data source for dsn.
// postgres:// and postgresql:// URLs use lib/pq. Anything else is a SQLite
// path, with an optional sqlite:// prefix; an empty dsn is an in-memory
// database.
func DriverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn
	case dsn == "":
		return DriverSQLite, ":memory:"
	default:
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://")
	}
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger log.Logging) (*Ledger, error) {
	driver, source := DriverFor(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		dbErr := errors.NewDatabaseError("failed to open ledger database", err)
		dbErr.WithContext("driver", driver)
		return nil, dbErr
	}
	if driver == DriverSQLite {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewDatabaseError("failed to connect to ledger database", err).WithOperation("ping")
	}

	l := New(db, driver, logger)
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an open database. driver selects the placeholder style.
func New(db *sql.DB, driver string, logger log.Logging) *Ledger {
	if logger == nil {
		logger = log.Nop()
	}
	return &Ledger{db: db, driver: driver, logger: logger, now: time.Now}
}

// Migrate creates the ledger tables if they don't exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.NewDatabaseError("failed to initialize ledger schema", err).WithOperation("migrate")
	}
	return nil
}

// Record stores result under runID.
func (l *Ledger) Record(ctx context.Context, runID string, result types.ConversionResult) error {
	errText := ""
	if result.Error != nil {
		errText = result.Error.Error()
	}

	query := l.rebind(`
		INSERT INTO conversions (run_id, subject, session, status, duration_ms, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := l.db.ExecContext(ctx, query,
		runID,
		result.Subject,
		result.Session,
		result.Status(),
		result.Duration.Milliseconds(),
		errText,
		l.now().UTC(),
	)
	if err != nil {
		dbErr := errors.NewDatabaseError("failed to record conversion", err).WithOperation("record")
		dbErr.WithContext("subject", result.Subject)
		return dbErr
	}

	l.logger.With(log.F("subject", result.Subject), log.F("status", result.Status())).Debug("conversion recorded")
	return nil
}

// Succeeded reports whether the latest attempt for subject and session
// converted successfully. Skipped entries are ignored.
func (l *Ledger) Succeeded(ctx context.Context, subject, session string) (bool, error) {
	query := l.rebind(`
		SELECT status FROM conversions
		WHERE subject = ? AND session = ? AND status <> 'skipped'
		ORDER BY recorded_at DESC
		LIMIT 1
	`)

	var status string
	err := l.db.QueryRowContext(ctx, query, subject, session).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		dbErr := errors.NewDatabaseError("failed to query ledger", err).WithOperation("succeeded")
		dbErr.WithContext("subject", subject)
		return false, dbErr
	}
	return status == "converted", nil
}

// History returns every entry for subject, newest first.
func (l *Ledger) History(ctx context.Context, subject string) ([]Entry, error) {
	query := l.rebind(`
		SELECT run_id, subject, session, status, duration_ms, error, recorded_at
		FROM conversions
		WHERE subject = ?
		ORDER BY recorded_at DESC
	`)

	rows, err := l.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to query ledger", err).WithOperation("history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.RunID, &e.Subject, &e.Session, &e.Status, &ms, &e.Error, &e.RecordedAt); err != nil {
			return nil, errors.NewDatabaseError("failed to scan ledger row", err).WithOperation("history")
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("failed to read ledger rows", err).WithOperation("history")
	}
	return entries, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (l *Ledger) rebind(query string) string {
	if l.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
