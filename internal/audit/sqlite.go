package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/epochd/internal/epoch"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	epoch_id  TEXT NOT NULL,
	phase     TEXT NOT NULL,
	role      TEXT NOT NULL,
	ts        TEXT NOT NULL,
	payload   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_epoch ON audit_events (epoch_id);
`

// SQLiteTrail is a durable Trail backed by a sqlite database. The driver is
// pure Go, so the worker needs no cgo toolchain. database/sql serializes
// access, which covers the concurrent-epoch requirement.
type SQLiteTrail struct {
	db *sql.DB
}

// OpenSQLiteTrail opens (creating if needed) the trail database at path.
func OpenSQLiteTrail(path string) (*SQLiteTrail, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &SQLiteTrail{db: db}, nil
}

// Close releases the underlying database handle.
func (t *SQLiteTrail) Close() error {
	return t.db.Close()
}

// RecordEvent appends one event.
func (t *SQLiteTrail) RecordEvent(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO audit_events (epoch_id, phase, role, ts, payload) VALUES (?, ?, ?, ?, ?)`,
		ev.EpochID, string(ev.Phase), ev.Role, ev.Timestamp.UTC().Format(time.RFC3339Nano), string(payload),
	)
	if err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// QueryEvents returns matching events in insertion order.
func (t *SQLiteTrail) QueryEvents(ctx context.Context, f Filter) ([]Event, error) {
	query := `SELECT epoch_id, phase, role, ts, payload FROM audit_events WHERE 1=1`
	var args []any
	if f.EpochID != "" {
		query += ` AND epoch_id = ?`
		args = append(args, f.EpochID)
	}
	if f.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(f.Phase))
	}
	if f.Role != "" {
		query += ` AND role = ?`
		args = append(args, f.Role)
	}
	query += ` ORDER BY id`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var phase, ts, payload string
		if err := rows.Scan(&ev.EpochID, &phase, &ev.Role, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		ev.Phase = epoch.Phase(phase)
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decoding audit payload: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit events: %w", err)
	}
	return out, nil
}
