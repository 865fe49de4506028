// Package clients provides the PostgreSQL-backed client registry and the
// per-user sync lease.
package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/models"
)

// PostgresRepository implements the client registry over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a client row with a fresh (epoch) watermark.
func (r *PostgresRepository) Create(ctx context.Context, userID int64, pushToken string) (int64, error) {
	query := `
		INSERT INTO clients (user_id, push_token)
		VALUES ($1, $2)
		RETURNING id
	`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, userID, pushToken).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// DeleteByToken removes any client of the user registered under the same
// push token, so re-registration does not accumulate rows.
func (r *PostgresRepository) DeleteByToken(ctx context.Context, userID int64, pushToken string) error {
	query := `DELETE FROM clients WHERE user_id = $1 AND push_token = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, pushToken); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes a client owned by the user and reports whether a row existed.
func (r *PostgresRepository) Delete(ctx context.Context, userID, clientID int64) (bool, error) {
	query := `DELETE FROM clients WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, clientID, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// Get returns the client row or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, clientID int64) (*models.Client, error) {
	query := `
		SELECT id, user_id, push_token, last_sync, lock_expire, changes_pending
		FROM clients WHERE id = $1
	`
	c := &models.Client{}
	var lockExpire sql.NullTime
	err := r.db.QueryRowContext(ctx, query, clientID).
		Scan(&c.ID, &c.UserID, &c.PushToken, &c.LastSync, &lockExpire, &c.ChangesPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if lockExpire.Valid {
		c.LockExpire = &lockExpire.Time
	}
	return c, nil
}

// SetPushToken stores a rotated notification address.
func (r *PostgresRepository) SetPushToken(ctx context.Context, clientID int64, pushToken string) error {
	query := `UPDATE clients SET push_token = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, pushToken, clientID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListPushTokens returns client id -> push token for every device of the user.
func (r *PostgresRepository) ListPushTokens(ctx context.Context, userID int64) (map[int64]string, error) {
	query := `SELECT id, push_token FROM clients WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	tokens := make(map[int64]string)
	for rows.Next() {
		var id int64
		var token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, err
		}
		tokens[id] = token
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// AcquireLease sets the lease expiry in a single conditional update. The NOT
// EXISTS guard covers every client of the user (including the caller), which
// is what makes the lease exclusive user-wide rather than per row.
func (r *PostgresRepository) AcquireLease(ctx context.Context, userID, clientID int64, ttl time.Duration) (bool, error) {
	query := `
		UPDATE clients SET lock_expire = now() + make_interval(secs => $3)
		WHERE id = $1 AND user_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM clients c WHERE c.user_id = $2 AND c.lock_expire > now()
		  )
	`
	res, err := r.db.ExecContext(ctx, query, clientID, userID, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// RenewLease extends the lease only while it is still live; an expired lease
// cannot be revived, the client must re-acquire.
func (r *PostgresRepository) RenewLease(ctx context.Context, userID, clientID int64, ttl time.Duration) (bool, error) {
	query := `
		UPDATE clients SET lock_expire = now() + make_interval(secs => $3)
		WHERE id = $1 AND user_id = $2 AND lock_expire > now()
	`
	res, err := r.db.ExecContext(ctx, query, clientID, userID, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// ReleaseLease is the only place the last-sync watermark advances.
func (r *PostgresRepository) ReleaseLease(ctx context.Context, userID, clientID int64) error {
	query := `
		UPDATE clients
		SET last_sync = now(), lock_expire = NULL, changes_pending = FALSE
		WHERE id = $1 AND user_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, clientID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ChangesPending reads the fan-out flag for the client.
func (r *PostgresRepository) ChangesPending(ctx context.Context, userID, clientID int64) (bool, error) {
	query := `SELECT changes_pending FROM clients WHERE id = $1 AND user_id = $2`
	var pending bool
	err := r.db.QueryRowContext(ctx, query, clientID, userID).Scan(&pending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return pending, nil
}

// MarkChangesPending records that the current session wrote something.
func (r *PostgresRepository) MarkChangesPending(ctx context.Context, userID, clientID int64) error {
	query := `UPDATE clients SET changes_pending = TRUE WHERE id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, clientID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
