// Package tombstones provides the PostgreSQL-backed deletion log used to
// propagate deletes to clients that were offline when they happened.
package tombstones

import (
	"context"
	"fmt"

	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/models"
)

// PostgresRepository implements the deletion log over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert records a deletion with deleted_at = now().
func (r *PostgresRepository) Insert(ctx context.Context, t *models.Tombstone) error {
	query := `
		INSERT INTO tombstones (user_id, kind, cat, uuid, client_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, t.UserID, t.Kind, t.Cat, t.UUID, t.ClientID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByUUID purges any tombstone for a resurrected uuid.
func (r *PostgresRepository) DeleteByUUID(ctx context.Context, userID int64, uuid string) error {
	query := `DELETE FROM tombstones WHERE user_id = $1 AND uuid = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, uuid); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListSince returns recent deletions by other clients as uuid -> age ms.
func (r *PostgresRepository) ListSince(ctx context.Context, userID, clientID int64, kind string) (map[string]int64, error) {
	query := `
		SELECT uuid, (EXTRACT(EPOCH FROM (now() - deleted_at)) * 1000)::bigint
		FROM tombstones
		WHERE user_id = $1 AND client_id <> $2 AND kind = $3
		  AND deleted_at > (SELECT last_sync FROM clients WHERE id = $2)
	`
	rows, err := r.db.QueryContext(ctx, query, userID, clientID, kind)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var uuid string
		var age int64
		if err := rows.Scan(&uuid, &age); err != nil {
			return nil, err
		}
		result[uuid] = age
	}
	return result, rows.Err()
}
