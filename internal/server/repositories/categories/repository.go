package categories

import (
	"context"

	"github.com/tastediary/syncserver/internal/server/models"
)

// Repository stores categories and their flavor/extra definitions. The
// conditional mutations embed the last-writer-wins comparison in the
// statement itself so the check and the write cannot race.
type Repository interface {
	// ResolveID returns the server id for the uuid, or 0 when unknown.
	ResolveID(ctx context.Context, userID int64, uuid string) (int64, error)
	// GetByUUID loads the full record with children, or common.ErrNotFound.
	GetByUUID(ctx context.Context, userID int64, uuid string) (*models.Category, error)
	// ListUpdated returns full records written by other clients after the
	// requesting client's last-sync watermark.
	ListUpdated(ctx context.Context, userID, clientID int64) ([]*models.Category, error)

	Insert(ctx context.Context, userID, clientID int64, cat *models.Category) (int64, error)
	// UpdateConditional applies the write only when the stored row is older
	// than the age the push claims to know about; false means rejected.
	UpdateConditional(ctx context.Context, userID, clientID int64, cat *models.Category) (bool, error)
	// DeleteConditional removes the row under the same staleness condition.
	DeleteConditional(ctx context.Context, userID, id, age int64) (bool, error)

	ReplaceFlavors(ctx context.Context, catID int64, flavors []*models.Flavor) error
	// UpsertExtras inserts or refreshes extra definitions by (cat, uuid).
	// Extras keep their server ids because entry values reference them.
	UpsertExtras(ctx context.Context, catID int64, extras []*models.Extra) error
	// PruneExtras removes definitions absent from the incoming set.
	PruneExtras(ctx context.Context, catID int64, keep []*models.Extra) error
}
