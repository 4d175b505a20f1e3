package profilestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/smartcharge/core/model"
)

const postgresSchema = `
create table if not exists charging_profiles (
  charge_point_id text not null,
  purpose text not null,
  position integer not null,
  connector_id integer not null,
  profile_id integer not null,
  stack_level integer not null,
  profile jsonb not null,
  primary key (charge_point_id, purpose, position)
)`

// PostgresStore persists profiles in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	cp   string
}

// NewPostgresStore connects to cfg.DSN and ensures schema.
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return ConnectPostgres(ctx, cfg)
}

// ConnectPostgres is NewPostgresStore with a caller supplied context.
func ConnectPostgres(ctx context.Context, cfg Config) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres profile store: dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MinConns = 1
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool, cp: cfg.ChargePointID}, nil
}

func (s *PostgresStore) Get(ctx context.Context) (model.ProfileSet, error) {
	var set model.ProfileSet
	rows, err := s.pool.Query(ctx, `
		select purpose, profile from charging_profiles
		where charge_point_id=$1
		order by purpose, position asc
	`, s.cp)
	if err != nil {
		return set, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			purpose string
			data    []byte
		)
		if err := rows.Scan(&purpose, &data); err != nil {
			return set, err
		}
		if err := decodeInto(&set, purpose, data); err != nil {
			return set, err
		}
	}
	return set, rows.Err()
}

// Set replaces the bucket of purpose inside a single transaction.
func (s *PostgresStore) Set(ctx context.Context, purpose model.Purpose, profiles []model.ChargingProfile) error {
	if err := checkBucket(purpose); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `delete from charging_profiles where charge_point_id=$1 and purpose=$2`, s.cp, purpose.String()); err != nil {
			return err
		}
		for i, p := range profiles {
			data, err := encode(p)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				insert into charging_profiles (charge_point_id, purpose, position, connector_id, profile_id, stack_level, profile)
				values ($1,$2,$3,$4,$5,$6,$7)
			`, s.cp, purpose.String(), i, p.ConnectorID, p.ProfileID, p.StackLevel, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
