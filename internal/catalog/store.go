package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const instrumentsSchema = `
CREATE TABLE IF NOT EXISTS instruments (
	symbol     TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	exchange   TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
)`

// Store persists the instrument directory in PostgreSQL so catalog
// edits survive restarts.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a store on an existing pool.
func NewStore(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Ensure creates the instruments table if missing.
func (s *Store) Ensure(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, instrumentsSchema); err != nil {
		return fmt.Errorf("create instruments table: %w", err)
	}
	return nil
}

// UpsertAll writes instruments in one batch.
func (s *Store) UpsertAll(ctx context.Context, instruments []Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, inst := range instruments {
		batch.Queue(`
			INSERT INTO instruments (symbol, name, exchange, type, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (symbol) DO UPDATE SET
				name = EXCLUDED.name,
				exchange = EXCLUDED.exchange,
				type = EXCLUDED.type,
				updated_at = EXCLUDED.updated_at
		`, inst.Symbol, inst.Name, inst.Exchange, inst.Type, now)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range instruments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert instrument: %w", err)
		}
	}

	s.logger.Debug("instruments upserted", "count", len(instruments))
	return nil
}

// LoadAll reads every instrument from the table.
func (s *Store) LoadAll(ctx context.Context) ([]Instrument, error) {
	rows, err := s.db.Query(ctx,
		`SELECT symbol, name, exchange, type, updated_at FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var inst Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.Exchange, &inst.Type, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}
