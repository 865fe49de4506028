// Package users provides the PostgreSQL-backed user repository. Users are
// created lazily the first time an authenticated subject id is seen.
package users

import (
	"context"
	"fmt"

	"github.com/tastediary/syncserver/internal/dbx"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate inserts a user row for uid if none exists and returns its id.
// The no-op upsert makes RETURNING yield the id on conflict as well.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, uid, email string) (int64, error) {
	query := `
		INSERT INTO users (uid, email)
		VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE SET uid = EXCLUDED.uid
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, uid, email).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
