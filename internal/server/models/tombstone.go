package models

import "time"

// Tombstone kinds.
const (
	KindCategory = "cat"
	KindEntry    = "entry"
)

// Tombstone records a deletion so it can be propagated to clients that were
// offline when it happened. Rows are insert-only.
type Tombstone struct {
	ID        int64
	UserID    int64
	Kind      string
	Cat       int64
	UUID      string
	DeletedAt time.Time
	ClientID  int64
}
