// Package models holds the server-side data structures persisted by the
// repositories and exchanged over the sync API.
package models

import "time"

// User is the server-local account row. UID is the opaque subject id from the
// authentication provider; ID is never exposed as identity to clients.
type User struct {
	ID        int64
	UID       string
	Email     string
	CreatedAt time.Time
}
