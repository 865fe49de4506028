// Package categories provides PostgreSQL-backed category persistence and the
// category half of the sync delta queries.
package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/models"
)

// ageExpr computes the record age in milliseconds at read time, so clients
// never need the server's clock.
const ageExpr = `(EXTRACT(EPOCH FROM (now() - sync_time)) * 1000)::bigint`

// PostgresRepository implements category storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ResolveID maps a uuid to its server id; 0 means the uuid is unknown.
func (r *PostgresRepository) ResolveID(ctx context.Context, userID int64, uuid string) (int64, error) {
	query := `SELECT id FROM categories WHERE uuid = $1 AND user_id = $2`
	var id int64
	err := r.db.QueryRowContext(ctx, query, uuid, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// GetByUUID loads one category with flavors and extras.
func (r *PostgresRepository) GetByUUID(ctx context.Context, userID int64, uuid string) (*models.Category, error) {
	query := `SELECT id, uuid, name, ` + ageExpr + ` FROM categories WHERE uuid = $1 AND user_id = $2`
	cat := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, uuid, userID).
		Scan(&cat.ID, &cat.UUID, &cat.Name, &cat.Age)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := r.loadChildren(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// ListUpdated returns categories written by other clients since the
// requesting client's watermark, children included.
func (r *PostgresRepository) ListUpdated(ctx context.Context, userID, clientID int64) ([]*models.Category, error) {
	query := `
		SELECT id, uuid, name, ` + ageExpr + `
		FROM categories
		WHERE user_id = $1 AND client_id <> $2
		  AND sync_time > (SELECT last_sync FROM clients WHERE id = $2)
	`
	rows, err := r.db.QueryContext(ctx, query, userID, clientID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Category
	for rows.Next() {
		cat := &models.Category{}
		if err := rows.Scan(&cat.ID, &cat.UUID, &cat.Name, &cat.Age); err != nil {
			return nil, err
		}
		result = append(result, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, cat := range result {
		if err := r.loadChildren(ctx, cat); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *PostgresRepository) loadChildren(ctx context.Context, cat *models.Category) error {
	flavors, err := r.listFlavors(ctx, cat.ID)
	if err != nil {
		return err
	}
	extras, err := r.listExtras(ctx, cat.ID)
	if err != nil {
		return err
	}
	cat.Flavors = flavors
	cat.Extras = extras
	return nil
}

func (r *PostgresRepository) listFlavors(ctx context.Context, catID int64) ([]*models.Flavor, error) {
	query := `SELECT name, pos FROM flavors WHERE cat = $1 ORDER BY pos`
	rows, err := r.db.QueryContext(ctx, query, catID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Flavor
	for rows.Next() {
		f := &models.Flavor{}
		if err := rows.Scan(&f.Name, &f.Pos); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) listExtras(ctx context.Context, catID int64) ([]*models.Extra, error) {
	query := `SELECT uuid, name, pos, deleted FROM extras WHERE cat = $1 ORDER BY pos`
	rows, err := r.db.QueryContext(ctx, query, catID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Extra
	for rows.Next() {
		e := &models.Extra{}
		if err := rows.Scan(&e.UUID, &e.Name, &e.Pos, &e.Deleted); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Insert creates the row with sync_time = now() and the pushing client as
// originator, returning the new server id.
func (r *PostgresRepository) Insert(ctx context.Context, userID, clientID int64, cat *models.Category) (int64, error) {
	query := `
		INSERT INTO categories (uuid, user_id, name, client_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, cat.UUID, userID, cat.Name, clientID).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// UpdateConditional writes only over rows the incoming push has seen; a
// zero-row match means a newer write exists and the push loses.
func (r *PostgresRepository) UpdateConditional(ctx context.Context, userID, clientID int64, cat *models.Category) (bool, error) {
	query := `
		UPDATE categories SET name = $1, sync_time = now(), client_id = $2
		WHERE user_id = $3 AND id = $4
		  AND sync_time < now() - ($5 * interval '1 millisecond')
	`
	res, err := r.db.ExecContext(ctx, query, cat.Name, clientID, userID, cat.ID, cat.Age)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// DeleteConditional treats the delete as a write for conflict resolution.
func (r *PostgresRepository) DeleteConditional(ctx context.Context, userID, id, age int64) (bool, error) {
	query := `
		DELETE FROM categories
		WHERE user_id = $1 AND id = $2
		  AND sync_time < now() - ($3 * interval '1 millisecond')
	`
	res, err := r.db.ExecContext(ctx, query, userID, id, age)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// ReplaceFlavors swaps the flavor definitions wholesale; they have no
// independent identity.
func (r *PostgresRepository) ReplaceFlavors(ctx context.Context, catID int64, flavors []*models.Flavor) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM flavors WHERE cat = $1`, catID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, f := range flavors {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO flavors (cat, name, pos) VALUES ($1, $2, $3)`,
			catID, f.Name, f.Pos)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// UpsertExtras refreshes definitions in place to preserve their ids.
func (r *PostgresRepository) UpsertExtras(ctx context.Context, catID int64, extras []*models.Extra) error {
	query := `
		INSERT INTO extras (uuid, cat, name, pos, deleted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cat, uuid)
		DO UPDATE SET name = EXCLUDED.name, pos = EXCLUDED.pos, deleted = EXCLUDED.deleted
	`
	for _, e := range extras {
		if _, err := r.db.ExecContext(ctx, query, e.UUID, catID, e.Name, e.Pos, e.Deleted); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// PruneExtras deletes definitions whose uuid is not in the incoming set.
func (r *PostgresRepository) PruneExtras(ctx context.Context, catID int64, keep []*models.Extra) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, e := range keep {
		keepSet[e.UUID] = struct{}{}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, uuid FROM extras WHERE cat = $1`, catID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var id int64
		var uuid string
		if err := rows.Scan(&id, &uuid); err != nil {
			return err
		}
		if _, ok := keepSet[uuid]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM extras WHERE id = $1`, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
