package users

import "context"

// Repository resolves authentication subjects to server-local user rows.
type Repository interface {
	// GetOrCreate returns the numeric id of the user identified by the
	// opaque auth subject uid, creating the row on first use.
	GetOrCreate(ctx context.Context, uid, email string) (int64, error)
}
