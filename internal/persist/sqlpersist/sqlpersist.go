// Package sqlpersist implements persist.Store on top of PostgreSQL via
// database/sql and lib/pq, grounded on the teacher's db package
// (connection pooling, config validation, upsert-by-primary-key style).
package sqlpersist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/workflowforge/engine/internal/persist"
)

// Config mirrors db.Config's shape.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Store persists Artifacts in a checkpoints table keyed by run_id.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection pool with the same tuning as the
// teacher's db.NewDatabase, pings once, and ensures the checkpoints table
// exists.
func New(cfg Config) (*Store, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("sqlpersist: failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("sqlpersist: failed to ping database: %w", err)
	}

	s := &Store{db: sqlDB}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewForTesting wraps an existing *sql.DB (e.g. from go-sqlmock) without
// running migrations, for test dependency injection only.
func NewForTesting(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS workflow_checkpoints (
		run_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		current_unit TEXT NOT NULL,
		current_unit_kind TEXT NOT NULL,
		data JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("sqlpersist: failed to migrate checkpoints table: %w", err)
	}
	return nil
}

// Save implements persist.Store as an upsert keyed by run_id.
func (s *Store) Save(runID string, a persist.Artifact) error {
	data, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("sqlpersist: failed to marshal checkpoint data: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO workflow_checkpoints (run_id, status, current_unit, current_unit_kind, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_unit = EXCLUDED.current_unit,
			current_unit_kind = EXCLUDED.current_unit_kind,
			data = EXCLUDED.data,
			updated_at = now()`,
		runID, string(a.Status), a.CurrentUnit, a.CurrentUnitKind, data)
	if err != nil {
		return fmt.Errorf("sqlpersist: failed to save checkpoint for %s: %w", runID, err)
	}
	return nil
}

// Load implements persist.Store.
func (s *Store) Load(runID string) (*persist.Artifact, bool, error) {
	var status, currentUnit, currentUnitKind string
	var rawData []byte
	var updatedAt time.Time

	row := s.db.QueryRow(`SELECT status, current_unit, current_unit_kind, data, updated_at FROM workflow_checkpoints WHERE run_id = $1`, runID)
	if err := row.Scan(&status, &currentUnit, &currentUnitKind, &rawData, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlpersist: failed to load checkpoint for %s: %w", runID, err)
	}

	var data map[string]any
	if err := json.Unmarshal(rawData, &data); err != nil {
		return nil, false, fmt.Errorf("sqlpersist: failed to unmarshal checkpoint data for %s: %w", runID, err)
	}

	return &persist.Artifact{
		Status:          persist.Status(status),
		CurrentUnit:     currentUnit,
		CurrentUnitKind: currentUnitKind,
		Data:            data,
		UpdatedAt:       updatedAt,
	}, true, nil
}

// StaleRunIDs implements sweep.ScanStore via a direct predicate on
// updated_at, avoiding a Load round-trip per row.
func (s *Store) StaleRunIDs(olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := s.db.Query(`SELECT run_id FROM workflow_checkpoints WHERE status = 'running' AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlpersist: failed to query stale checkpoints: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("sqlpersist: failed to scan stale checkpoint row: %w", err)
		}
		stale = append(stale, runID)
	}
	return stale, rows.Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
