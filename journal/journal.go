package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openfund/treasury"
)

//go:embed schema.sql
var schemaSQL string

// Journal provides durable storage for the treasury event trail.
// Uses SQLite with WAL mode for concurrent read access.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a SQLite journal at the given path.
// Applies required pragmas and the schema automatically; safe to call on an
// existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Append inserts an event record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored, so a host-level retry of an emission cannot double an
// audit record.
func (j *Journal) Append(ctx context.Context, ev treasury.Event) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(id, seq, kind, project, terminal, caller, beneficiary,
		 period_number, configuration, amount, settled, currency, fee_rate, memo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.Seq,
		string(ev.Kind),
		uint64(ev.Project),
		string(ev.Terminal),
		string(ev.Caller),
		string(ev.Beneficiary),
		ev.PeriodNumber,
		ev.Configuration,
		decOrZero(ev.Amount),
		decOrZero(ev.Settled),
		uint32(ev.Currency),
		ev.FeeRate,
		ev.Memo,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// Events returns every journaled event in seq order.
func (j *Journal) Events(ctx context.Context) ([]treasury.Event, error) {
	return j.query(ctx, `
		SELECT id, seq, kind, project, terminal, caller, beneficiary,
		       period_number, configuration, amount, settled, currency, fee_rate, memo
		FROM events
		ORDER BY seq ASC, id ASC
	`)
}

// EventsOf returns a project's journaled events in seq order.
func (j *Journal) EventsOf(ctx context.Context, project treasury.ProjectID) ([]treasury.Event, error) {
	return j.query(ctx, `
		SELECT id, seq, kind, project, terminal, caller, beneficiary,
		       period_number, configuration, amount, settled, currency, fee_rate, memo
		FROM events
		WHERE project = ?
		ORDER BY seq ASC, id ASC
	`, uint64(project))
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]treasury.Event, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []treasury.Event
	for rows.Next() {
		var (
			ev       treasury.Event
			kind     string
			project  uint64
			terminal string
			caller   string
			benef    string
			amount   string
			settled  string
			currency uint32
		)
		if err := rows.Scan(
			&ev.ID, &ev.Seq, &kind, &project, &terminal, &caller, &benef,
			&ev.PeriodNumber, &ev.Configuration, &amount, &settled, &currency,
			&ev.FeeRate, &ev.Memo,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Kind = treasury.EventKind(kind)
		ev.Project = treasury.ProjectID(project)
		ev.Terminal = treasury.Identity(terminal)
		ev.Caller = treasury.Identity(caller)
		ev.Beneficiary = treasury.Identity(benef)
		ev.Currency = treasury.CurrencyID(currency)

		if ev.Amount, err = uint256.FromDecimal(amount); err != nil {
			return nil, fmt.Errorf("parse amount of event %s: %w", ev.ID, err)
		}
		if ev.Settled, err = uint256.FromDecimal(settled); err != nil {
			return nil, fmt.Errorf("parse settled of event %s: %w", ev.ID, err)
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func decOrZero(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

// Sink adapts a Journal to the engine's EventSink interface.
//
// Record must not fail the emitting operation, so append errors are logged
// and dropped; the slog line carries the full event for manual recovery.
type Sink struct {
	j *Journal
}

// NewSink wraps a journal as an event sink.
func NewSink(j *Journal) *Sink {
	return &Sink{j: j}
}

// Record implements treasury.EventSink.
func (s *Sink) Record(ev treasury.Event) {
	if err := s.j.Append(context.Background(), ev); err != nil {
		slog.Error("journal append failed",
			"error", err,
			"event", ev.String(),
		)
	}
}
