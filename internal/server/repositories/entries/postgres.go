// Package entries provides PostgreSQL-backed entry persistence and the entry
// half of the sync delta queries.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/models"
)

const ageExpr = `(EXTRACT(EPOCH FROM (now() - a.sync_time)) * 1000)::bigint`

// PostgresRepository implements entry storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ResolveIDAndCat maps a uuid to (entry id, category id); zeros mean unknown.
func (r *PostgresRepository) ResolveIDAndCat(ctx context.Context, userID int64, uuid string) (int64, int64, error) {
	query := `SELECT id, cat FROM entries WHERE uuid = $1 AND user_id = $2`
	var id, cat int64
	err := r.db.QueryRowContext(ctx, query, uuid, userID).Scan(&id, &cat)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return id, cat, nil
}

const selectEntry = `
	SELECT a.id, a.uuid, a.cat, b.uuid, a.title, a.maker, a.origin, a.price,
	       a.location, a.date, a.rating, a.notes, ` + ageExpr + `, a.shared
	FROM entries a JOIN categories b ON a.cat = b.id
`

func scanEntry(row interface{ Scan(dest ...any) error }) (*models.Entry, error) {
	e := &models.Entry{}
	err := row.Scan(&e.ID, &e.UUID, &e.Cat, &e.CatUUID, &e.Title, &e.Maker,
		&e.Origin, &e.Price, &e.Location, &e.Date, &e.Rating, &e.Notes,
		&e.Age, &e.Shared)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByUUID loads one entry with flavors, extras, and photos.
func (r *PostgresRepository) GetByUUID(ctx context.Context, userID int64, uuid string) (*models.Entry, error) {
	query := selectEntry + ` WHERE a.uuid = $1 AND a.user_id = $2`
	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, uuid, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := r.loadChildren(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListUpdated returns entries written by other clients since the requesting
// client's watermark, children included.
func (r *PostgresRepository) ListUpdated(ctx context.Context, userID, clientID int64) ([]*models.Entry, error) {
	query := selectEntry + `
		WHERE a.user_id = $1 AND a.client_id <> $2
		  AND a.sync_time > (SELECT last_sync FROM clients WHERE id = $2)
	`
	rows, err := r.db.QueryContext(ctx, query, userID, clientID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, entry := range result {
		if err := r.loadChildren(ctx, entry); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ListIDs maps every entry uuid of the user to its server id.
func (r *PostgresRepository) ListIDs(ctx context.Context, userID int64) (map[string]int64, error) {
	query := `SELECT id, uuid FROM entries WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var uuid string
		if err := rows.Scan(&id, &uuid); err != nil {
			return nil, err
		}
		ids[uuid] = id
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) loadChildren(ctx context.Context, entry *models.Entry) error {
	flavors, err := r.listFlavors(ctx, entry.ID)
	if err != nil {
		return err
	}
	extras, err := r.listExtras(ctx, entry.ID)
	if err != nil {
		return err
	}
	photos, err := r.listPhotos(ctx, entry.ID)
	if err != nil {
		return err
	}
	entry.Flavors = flavors
	entry.Extras = extras
	entry.Photos = photos
	return nil
}

func (r *PostgresRepository) listFlavors(ctx context.Context, entryID int64) ([]*models.Flavor, error) {
	query := `SELECT flavor, value, pos FROM entries_flavors WHERE entry = $1 ORDER BY pos`
	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Flavor
	for rows.Next() {
		f := &models.Flavor{}
		if err := rows.Scan(&f.Name, &f.Value, &f.Pos); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) listExtras(ctx context.Context, entryID int64) ([]*models.Extra, error) {
	query := `
		SELECT a.uuid, a.name, b.value
		FROM extras a JOIN entries_extras b ON a.id = b.extra
		WHERE b.entry = $1
	`
	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Extra
	for rows.Next() {
		e := &models.Extra{}
		if err := rows.Scan(&e.UUID, &e.Name, &e.Value); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) listPhotos(ctx context.Context, entryID int64) ([]*models.Photo, error) {
	query := `SELECT hash, storage_key, pos FROM photos WHERE entry = $1 ORDER BY pos`
	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		p := &models.Photo{}
		if err := rows.Scan(&p.Hash, &p.StorageKey, &p.Pos); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Insert creates the row with sync_time = now() and the pushing client as
// originator, returning the new server id. Entry.Cat must already be resolved.
func (r *PostgresRepository) Insert(ctx context.Context, userID, clientID int64, entry *models.Entry) (int64, error) {
	query := `
		INSERT INTO entries
			(uuid, user_id, cat, title, maker, origin, price, location, date, rating, notes, client_id, shared)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		entry.UUID, userID, entry.Cat, entry.Title, entry.Maker, entry.Origin,
		entry.Price, entry.Location, entry.Date, entry.Rating, entry.Notes,
		clientID, entry.Shared).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// UpdateConditional writes only over rows the incoming push has seen.
func (r *PostgresRepository) UpdateConditional(ctx context.Context, userID, clientID int64, entry *models.Entry) (bool, error) {
	query := `
		UPDATE entries
		SET title = $1, maker = $2, origin = $3, price = $4, location = $5,
		    date = $6, rating = $7, notes = $8, shared = $9,
		    sync_time = now(), client_id = $10
		WHERE user_id = $11 AND id = $12
		  AND sync_time < now() - ($13 * interval '1 millisecond')
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.Title, entry.Maker, entry.Origin, entry.Price, entry.Location,
		entry.Date, entry.Rating, entry.Notes, entry.Shared,
		clientID, userID, entry.ID, entry.Age)
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
		DELETE FROM entries
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

// ReplaceFlavors swaps the flavor values wholesale.
func (r *PostgresRepository) ReplaceFlavors(ctx context.Context, entryID int64, flavors []*models.Flavor) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries_flavors WHERE entry = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, f := range flavors {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO entries_flavors (entry, flavor, value, pos) VALUES ($1, $2, $3, $4)`,
			entryID, f.Name, f.Value, f.Pos)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// ReplaceExtras rewrites extra values, resolving each definition id by
// (category, uuid). Values for undefined uuids insert zero rows.
func (r *PostgresRepository) ReplaceExtras(ctx context.Context, entryID, catID int64, extras []*models.Extra) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries_extras WHERE entry = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	query := `
		INSERT INTO entries_extras (entry, extra, value)
		SELECT $1, id, $4 FROM extras WHERE cat = $2 AND uuid = $3
	`
	for _, e := range extras {
		if _, err := r.db.ExecContext(ctx, query, entryID, catID, e.UUID, e.Value); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// ReplacePhotos swaps the photo references wholesale.
func (r *PostgresRepository) ReplacePhotos(ctx context.Context, entryID int64, photos []*models.Photo) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE entry = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, p := range photos {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO photos (entry, hash, storage_key, pos) VALUES ($1, $2, $3, $4)`,
			entryID, p.Hash, p.StorageKey, p.Pos)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
