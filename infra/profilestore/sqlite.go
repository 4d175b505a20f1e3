package profilestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/smartcharge/core/model"
)

// SQLiteStore persists profiles in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	cp string
}

// NewSQLiteStore opens or creates the database at cfg.DSN and ensures schema.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite profile store: dsn is required")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS charging_profiles (
        charge_point_id TEXT NOT NULL,
        purpose TEXT NOT NULL,
        position INTEGER NOT NULL,
        connector_id INTEGER NOT NULL,
        profile_id INTEGER NOT NULL,
        stack_level INTEGER NOT NULL,
        profile TEXT NOT NULL,
        PRIMARY KEY (charge_point_id, purpose, position)
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, cp: cfg.ChargePointID}, nil
}

func (s *SQLiteStore) Get(ctx context.Context) (model.ProfileSet, error) {
	var set model.ProfileSet
	rows, err := s.db.QueryContext(ctx,
		`SELECT purpose, profile FROM charging_profiles WHERE charge_point_id = ? ORDER BY purpose, position`, s.cp)
	if err != nil {
		return set, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var purpose, data string
		if err := rows.Scan(&purpose, &data); err != nil {
			return set, err
		}
		if err := decodeInto(&set, purpose, []byte(data)); err != nil {
			return set, err
		}
	}
	return set, rows.Err()
}

// Set replaces the bucket of purpose inside a single transaction.
func (s *SQLiteStore) Set(ctx context.Context, purpose model.Purpose, profiles []model.ChargingProfile) (err error) {
	if err := checkBucket(purpose); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM charging_profiles WHERE charge_point_id = ? AND purpose = ?`, s.cp, purpose.String()); err != nil {
		return err
	}
	for i, p := range profiles {
		var data []byte
		if data, err = encode(p); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO charging_profiles (charge_point_id, purpose, position, connector_id, profile_id, stack_level, profile)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.cp, purpose.String(), i, p.ConnectorID, p.ProfileID, p.StackLevel, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
