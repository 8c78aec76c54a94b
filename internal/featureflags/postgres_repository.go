package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gpstunnel/gpstunnel/internal/database"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.TxQuerier
}

// NewPostgresRepository creates a new PostgreSQL feature flags repository.
func NewPostgresRepository(db database.TxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetFlag retrieves a single feature flag by key.
func (r *PostgresRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	query := `
		SELECT key, value, updated_at
		FROM feature_flags
		WHERE key = $1
	`

	flag, err := scanFlag(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFlagNotFound
		}
		return nil, err
	}
	return flag, nil
}

// GetAllFlags retrieves all stored feature flags.
func (r *PostgresRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	query := `
		SELECT key, value, updated_at
		FROM feature_flags
		ORDER BY key
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]*Flag)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags[flag.Key] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return flags, nil
}

func scanFlag(row pgx.Row) (*Flag, error) {
	var (
		flag      Flag
		valueJSON []byte
	)
	if err := row.Scan(&flag.Key, &valueJSON, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(valueJSON, &flag.Value); err != nil {
		return nil, fmt.Errorf("decode flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

// SetFlags upserts flags in one transaction.
func (r *PostgresRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}

	if err := upsertFlags(ctx, tx, flags); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // the upsert error is what matters
		return err
	}

	return tx.Commit(ctx)
}

func upsertFlags(ctx context.Context, tx pgx.Tx, flags []*Flag) error {
	query := `
		INSERT INTO feature_flags (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	for _, flag := range flags {
		valueJSON, err := json.Marshal(flag.Value)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, flag.Key, valueJSON, flag.UpdatedAt); err != nil {
			return fmt.Errorf("upsert flag %s: %w", flag.Key, err)
		}
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
