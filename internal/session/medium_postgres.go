package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMedium stores session keys in the portal_session_kv table.
type PostgresMedium struct {
	pool *pgxpool.Pool
}

// NewPostgresMedium returns a medium backed by pool. The table is created by migrations.
func NewPostgresMedium(pool *pgxpool.Pool) *PostgresMedium {
	return &PostgresMedium{pool: pool}
}

func (m *PostgresMedium) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM portal_session_kv WHERE key=$1`

	var val string
	if err := m.pool.QueryRow(ctx, query, key).Scan(&val); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("postgres session get %s: %w", key, err)
	}
	return val, true, nil
}

func (m *PostgresMedium) SetMany(ctx context.Context, values map[string]string) error {
	const query = `
        INSERT INTO portal_session_kv (key, value)
        VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`

	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx, query, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres session set: %w", err)
	}
	return nil
}

func (m *PostgresMedium) Delete(ctx context.Context, keys ...string) error {
	const query = `DELETE FROM portal_session_kv WHERE key = ANY($1)`

	if len(keys) == 0 {
		return nil
	}
	if _, err := m.pool.Exec(ctx, query, keys); err != nil {
		return fmt.Errorf("postgres session delete: %w", err)
	}
	return nil
}
