package tombstones

import (
	"context"

	"github.com/tastediary/syncserver/internal/server/models"
)

// Repository is the durable deletion log. Rows are only ever inserted,
// queried by recency, or purged when a uuid is resurrected.
type Repository interface {
	Insert(ctx context.Context, t *models.Tombstone) error
	// DeleteByUUID purges stale tombstones when a deleted uuid comes back
	// as a new record.
	DeleteByUUID(ctx context.Context, userID int64, uuid string) error
	// ListSince returns uuid -> age-in-milliseconds for deletions of the
	// given kind made by other clients after the requesting client's
	// last-sync watermark.
	ListSince(ctx context.Context, userID, clientID int64, kind string) (map[string]int64, error)
}
