/*
Package sqlite provides a SQLite-backed implementation of record.Store.

PURPOSE:
  Persists records, dynamically-typed fields, and ordered relations with
  edge attributes. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  records: one row per record (library + id)
  fields:  one row per set field, value JSON-encoded with a type tag
  edges:   one row per relation edge, positional, attributes JSON-encoded

VALUE ENCODING:
  Field and attribute values keep their dynamic type across the round
  trip. Each value is stored as {"t": <type>, "v": <payload>} where t is
  one of decimal, time, string, int, float, bool. Decimals travel as
  strings so no precision is lost.

RELATION CONTRACT:
  SetLinked replaces the edge rows for a relation but carries the
  attribute JSON over for targets that remain linked, as record.Store
  requires: re-linking a record must not wipe what a previous settlement
  run stamped on its edge.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and WAL mode so readers don't
  block. The engine itself runs one settlement at a time per record;
  the store only guarantees individual operations are consistent.

USAGE:
  store, err := sqlite.New("./data/settlement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - record/store.go: interface definition
  - record/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/record"
)

// Store implements record.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		library    TEXT NOT NULL,
		id         TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (library, id)
	);

	CREATE TABLE IF NOT EXISTS fields (
		library    TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		name       TEXT NOT NULL,
		value_json TEXT NOT NULL,
		PRIMARY KEY (library, record_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_fields_lookup
		ON fields(library, name, value_json);

	CREATE TABLE IF NOT EXISTS edges (
		source_library TEXT NOT NULL,
		source_id      TEXT NOT NULL,
		relation       TEXT NOT NULL,
		position       INTEGER NOT NULL,
		target_library TEXT NOT NULL,
		target_id      TEXT NOT NULL,
		attrs_json     TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (source_library, source_id, relation, position)
	);

	-- Reverse relation lookup (LinkedFrom) hot path
	CREATE INDEX IF NOT EXISTS idx_edges_reverse
		ON edges(target_library, target_id, source_library, relation);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VALUE ENCODING
// =============================================================================

type taggedValue struct {
	T string `json:"t"`
	V string `json:"v"`
}

func encodeValue(v any) (string, error) {
	var tv taggedValue
	switch x := v.(type) {
	case nil:
		tv = taggedValue{T: "null"}
	case decimal.Decimal:
		tv = taggedValue{T: "decimal", V: x.String()}
	case time.Time:
		tv = taggedValue{T: "time", V: x.UTC().Format(time.RFC3339Nano)}
	case string:
		tv = taggedValue{T: "string", V: x}
	case bool:
		tv = taggedValue{T: "bool", V: fmt.Sprintf("%t", x)}
	case int:
		tv = taggedValue{T: "int", V: fmt.Sprintf("%d", x)}
	case int64:
		tv = taggedValue{T: "int", V: fmt.Sprintf("%d", x)}
	case float64:
		tv = taggedValue{T: "float", V: fmt.Sprintf("%g", x)}
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
	b, err := json.Marshal(tv)
	return string(b), err
}

func decodeValue(s string) (any, error) {
	var tv taggedValue
	if err := json.Unmarshal([]byte(s), &tv); err != nil {
		return nil, err
	}
	switch tv.T {
	case "null":
		return nil, nil
	case "decimal":
		return decimal.NewFromString(tv.V)
	case "time":
		return time.Parse(time.RFC3339Nano, tv.V)
	case "string":
		return tv.V, nil
	case "bool":
		return tv.V == "true", nil
	case "int":
		var n int64
		_, err := fmt.Sscanf(tv.V, "%d", &n)
		return n, err
	case "float":
		var f float64
		_, err := fmt.Sscanf(tv.V, "%g", &f)
		return f, err
	default:
		return nil, fmt.Errorf("unknown value tag %q", tv.T)
	}
}

// =============================================================================
// FIELD ACCESS
// =============================================================================

func (s *Store) Get(ctx context.Context, rec record.Ref, field string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.exists(ctx, rec); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value_json FROM fields WHERE library = ? AND record_id = ? AND name = ?`,
		rec.Library, rec.ID, field).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

func (s *Store) Set(ctx context.Context, rec record.Ref, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exists(ctx, rec); err != nil {
		return err
	}

	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fields (library, record_id, name, value_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT (library, record_id, name) DO UPDATE SET value_json = excluded.value_json`,
		rec.Library, rec.ID, field, raw)
	return err
}

// =============================================================================
// RELATIONS
// =============================================================================

func (s *Store) Linked(ctx context.Context, rec record.Ref, relation string) ([]record.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.exists(ctx, rec); err != nil {
		return nil, err
	}
	edges, err := s.loadEdges(ctx, rec, relation)
	if err != nil {
		return nil, err
	}
	targets := make([]record.Ref, len(edges))
	for i, e := range edges {
		targets[i] = e.target
	}
	return targets, nil
}

func (s *Store) SetLinked(ctx context.Context, rec record.Ref, relation string, targets []record.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exists(ctx, rec); err != nil {
		return err
	}
	old, err := s.loadEdges(ctx, rec, relation)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM edges WHERE source_library = ? AND source_id = ? AND relation = ?`,
		rec.Library, rec.ID, relation); err != nil {
		return err
	}

	used := make([]bool, len(old))
	for i, t := range targets {
		attrs := "{}"
		for j, oe := range old {
			if !used[j] && oe.target == t {
				attrs = oe.attrs
				used[j] = true
				break
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (source_library, source_id, relation, position, target_library, target_id, attrs_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Library, rec.ID, relation, i, t.Library, t.ID, attrs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) EdgeAttribute(ctx context.Context, rec record.Ref, relation string, index int, attr string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.exists(ctx, rec); err != nil {
		return nil, err
	}

	attrs, err := s.loadAttrs(ctx, rec, relation, index)
	if err != nil {
		return nil, err
	}
	raw, ok := attrs[attr]
	if !ok {
		return nil, nil
	}
	return decodeValue(raw)
}

func (s *Store) SetEdgeAttribute(ctx context.Context, rec record.Ref, relation string, index int, attr string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.exists(ctx, rec); err != nil {
		return err
	}

	attrs, err := s.loadAttrs(ctx, rec, relation, index)
	if err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	attrs[attr] = raw

	b, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE edges SET attrs_json = ?
		 WHERE source_library = ? AND source_id = ? AND relation = ? AND position = ?`,
		string(b), rec.Library, rec.ID, relation, index)
	return err
}

func (s *Store) LinkedFrom(ctx context.Context, target record.Ref, sourceLibrary, sourceRelation string) ([]record.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Source order follows record creation so traversal order is stable
	// across runs; the rate resolver's tie-break and the price catalog's
	// last-entry-wins both depend on it. rowid is the insertion counter;
	// created_at is display metadata, not an ordering key.
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT e.source_id, r.rowid
		 FROM edges e
		 JOIN records r ON r.library = e.source_library AND r.id = e.source_id
		 WHERE e.target_library = ? AND e.target_id = ? AND e.source_library = ? AND e.relation = ?
		 ORDER BY r.rowid`,
		target.Library, target.ID, sourceLibrary, sourceRelation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []record.Ref
	for rows.Next() {
		var id string
		var rowid int64
		if err := rows.Scan(&id, &rowid); err != nil {
			return nil, err
		}
		result = append(result, record.Ref{Library: sourceLibrary, ID: id})
	}
	return result, rows.Err()
}

// =============================================================================
// FIND / CREATE
// =============================================================================

func (s *Store) FindOne(ctx context.Context, library, field string, value any) (record.Ref, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := encodeValue(value)
	if err != nil {
		return record.Ref{}, false, err
	}

	var id string
	err = s.db.QueryRowContext(ctx,
		`SELECT f.record_id FROM fields f
		 JOIN records r ON r.library = f.library AND r.id = f.record_id
		 WHERE f.library = ? AND f.name = ? AND f.value_json = ?
		 ORDER BY r.rowid LIMIT 1`,
		library, field, raw).Scan(&id)
	if err == sql.ErrNoRows {
		return record.Ref{}, false, nil
	}
	if err != nil {
		return record.Ref{}, false, err
	}
	return record.Ref{Library: library, ID: id}, true, nil
}

func (s *Store) Create(ctx context.Context, library string, fields map[string]any) (record.Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record.Ref{Library: library, ID: uuid.NewString()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return record.Ref{}, err
	}
	defer tx.Rollback()

	// Fixed-width fractional seconds: RFC3339Nano trims trailing zeros,
	// which would make the lexicographic order of these strings diverge
	// from chronological order.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (library, id, created_at) VALUES (?, ?, ?)`,
		rec.Library, rec.ID, time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")); err != nil {
		return record.Ref{}, err
	}
	for name, v := range fields {
		raw, err := encodeValue(v)
		if err != nil {
			return record.Ref{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fields (library, record_id, name, value_json) VALUES (?, ?, ?, ?)`,
			rec.Library, rec.ID, name, raw); err != nil {
			return record.Ref{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return record.Ref{}, err
	}
	return rec, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

type edgeRow struct {
	target record.Ref
	attrs  string
}

func (s *Store) loadEdges(ctx context.Context, rec record.Ref, relation string) ([]edgeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_library, target_id, attrs_json FROM edges
		 WHERE source_library = ? AND source_id = ? AND relation = ?
		 ORDER BY position`,
		rec.Library, rec.ID, relation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []edgeRow
	for rows.Next() {
		var e edgeRow
		if err := rows.Scan(&e.target.Library, &e.target.ID, &e.attrs); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *Store) loadAttrs(ctx context.Context, rec record.Ref, relation string, index int) (map[string]string, error) {
	var attrsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT attrs_json FROM edges
		 WHERE source_library = ? AND source_id = ? AND relation = ? AND position = ?`,
		rec.Library, rec.ID, relation, index).Scan(&attrsJSON)
	if err == sql.ErrNoRows {
		return nil, record.ErrEdgeOutOfRange
	}
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]string)
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (s *Store) exists(ctx context.Context, rec record.Ref) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE library = ? AND id = ?`, rec.Library, rec.ID).Scan(&one)
	if err == sql.ErrNoRows {
		return record.ErrRecordNotFound
	}
	return err
}

var _ record.Store = (*Store)(nil)
