// Package sqlite persists the append-only audit streams named in spec §6
// (assignment_logs, route_optimizations, escalation_logs,
// reassignment_events, sla_breaches, dispatch_alerts, order_alerts,
// traffic_incidents, driver_transitions) to a local sqlite file via
// mattn/go-sqlite3. It does not persist the mutable
// order/driver/route/batch tables — those are the in-process tables owned
// by internal/engine, per §1's framing that the relational layer for those
// entities is an external collaborator whose SQL is out of scope here.
//
// Generalized from the teacher's consumer.Store abstraction (go/consumer/
// store.go): a narrow persistence boundary the rest of the engine depends
// on through an interface, not a direct driver reference.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the append-only audit log persistence boundary.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures
// the audit stream schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite audit store: %w", err)
	}
	var s = &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite audit store: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

var streams = []string{
	"assignment_logs",
	"route_optimizations",
	"escalation_logs",
	"reassignment_events",
	"sla_breaches",
	"dispatch_alerts",
	"order_alerts",
	"driver_transitions",
	"traffic_incidents",
}

func (s *Store) migrate() error {
	for _, table := range streams {
		var stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		)`, table)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", table, err)
		}
		var idx = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity ON %s(entity_id)`, table, table)
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("creating index on %s: %w", table, err)
		}
	}
	return nil
}

// Append writes one row to the named audit stream. payload is marshaled to
// JSON; entityID is whatever the stream is keyed by (order id, driver id,
// batch id) so operators can filter one entity's history.
func (s *Store) Append(table, entityID string, at time.Time, payload any) error {
	if !validTable(table) {
		return fmt.Errorf("sqlite store: unknown audit stream %q", table)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	var stmt = fmt.Sprintf(`INSERT INTO %s(entity_id, created_at, payload) VALUES (?, ?, ?)`, table)
	_, err = s.db.Exec(stmt, entityID, at.UTC().Format(time.RFC3339Nano), string(encoded))
	if err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	return nil
}

// Row is one decoded audit stream record.
type Row struct {
	ID        int64
	EntityID  string
	CreatedAt time.Time
	Payload   json.RawMessage
}

// ForEntity returns every row in a stream for a given entity id, oldest
// first.
func (s *Store) ForEntity(table, entityID string) ([]Row, error) {
	if !validTable(table) {
		return nil, fmt.Errorf("sqlite store: unknown audit stream %q", table)
	}
	var stmt = fmt.Sprintf(`SELECT id, entity_id, created_at, payload FROM %s WHERE entity_id = ? ORDER BY id ASC`, table)
	rows, err := s.db.Query(stmt, entityID)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var createdAt string
		var payload string
		if err := rows.Scan(&r.ID, &r.EntityID, &createdAt, &payload); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

func validTable(table string) bool {
	for _, t := range streams {
		if t == table {
			return true
		}
	}
	return false
}
