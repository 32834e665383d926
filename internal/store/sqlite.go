package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/srg/bleherd/internal/peripheral"
)

const schema = `
CREATE TABLE IF NOT EXISTS peripherals (
	id      TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	record  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_peripherals_address ON peripherals(address);
`

// SQLite is the durable Store implementation. Records are kept as JSON rows
// keyed by a generated id.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the peripheral database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open peripheral store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init peripheral store schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Add(rec *peripheral.Record) (string, error) {
	id := uuid.NewString()
	cp := *rec
	cp.ID = id
	raw, err := json.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO peripherals (id, address, record) VALUES (?, ?, ?)`,
		id, peripheral.NormalizeAddr(cp.Address), string(raw))
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (s *SQLite) Get(id string) (*peripheral.Record, error) {
	var raw string
	err := s.db.QueryRow(`SELECT record FROM peripherals WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	var rec peripheral.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLite) Set(id string, rec *peripheral.Record) error {
	cp := *rec
	cp.ID = id
	raw, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO peripherals (id, address, record) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET address = excluded.address, record = excluded.record`,
		id, peripheral.NormalizeAddr(cp.Address), string(raw))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Remove(id string) error {
	if _, err := s.db.Exec(`DELETE FROM peripherals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) ExportAll() ([]*peripheral.Record, error) {
	rows, err := s.db.Query(`SELECT record FROM peripherals ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	defer rows.Close()

	var out []*peripheral.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec peripheral.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
