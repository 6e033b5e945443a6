// Package store persists imported patient records to a SQLite database.
// Records are stored in their serialized form; the demographic columns exist
// so listings and lookups never need to deserialize the full record.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/santemetrics/recordkit/record"
)

// Schema for the patient_records table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS patient_records (
	patient_id TEXT PRIMARY KEY,
	first TEXT NOT NULL,
	last TEXT NOT NULL,
	birthdate INTEGER,
	body TEXT NOT NULL,
	imported_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patient_records_name ON patient_records(last, first);
`

// ErrNotFound is returned by Get when no record exists for a patient id.
var ErrNotFound = errors.New("store: record not found")

// Summary is one row of a record listing: demographics without the body.
type Summary struct {
	PatientID  string `json:"patient_id"`
	First      string `json:"first"`
	Last       string `json:"last"`
	Birthdate  *int64 `json:"birthdate,omitempty"`
	ImportedAt int64  `json:"imported_at"`
}

// Store wraps a database connection for patient record persistence.
type Store struct {
	db *sql.DB

	// now is swapped in tests to pin imported_at.
	now func() time.Time
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens (creating if necessary) a record database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// each connection to ":memory:" creates a separate database
		db.SetMaxOpenConns(1)
	}
	s := NewStore(db)
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the patient_records table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// Save upserts a patient record keyed by its patient id. Re-importing a
// document for the same patient replaces the stored record.
func (s *Store) Save(ctx context.Context, pt *record.Patient) error {
	if pt.PatientID == "" {
		return errors.New("store: record has no patient id")
	}
	body, err := json.Marshal(pt)
	if err != nil {
		return fmt.Errorf("store: serialize record %s: %w", pt.PatientID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patient_records (patient_id, first, last, birthdate, body, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			first = excluded.first,
			last = excluded.last,
			birthdate = excluded.birthdate,
			body = excluded.body,
			imported_at = excluded.imported_at`,
		pt.PatientID, pt.First, pt.Last, nullableEpoch(pt.Birthdate), string(body), s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: save record %s: %w", pt.PatientID, err)
	}
	return nil
}

// Get returns the serialized record for a patient id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, patientID string) (json.RawMessage, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM patient_records WHERE patient_id = ?`, patientID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get record %s: %w", patientID, err)
	}
	return json.RawMessage(body), nil
}

// List returns a summary of every stored record, ordered by name.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, first, last, birthdate, imported_at
		FROM patient_records ORDER BY last, first`)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var birth sql.NullInt64
		if err := rows.Scan(&sm.PatientID, &sm.First, &sm.Last, &birth, &sm.ImportedAt); err != nil {
			return nil, fmt.Errorf("store: scan record row: %w", err)
		}
		if birth.Valid {
			sm.Birthdate = &birth.Int64
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes a stored record. Deleting an absent record is not an error.
func (s *Store) Delete(ctx context.Context, patientID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM patient_records WHERE patient_id = ?`, patientID)
	if err != nil {
		return fmt.Errorf("store: delete record %s: %w", patientID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullableEpoch(t *int64) any {
	if t == nil {
		return nil
	}
	return *t
}
