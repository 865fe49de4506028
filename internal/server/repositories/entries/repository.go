package entries

import (
	"context"

	"github.com/tastediary/syncserver/internal/server/models"
)

// Repository stores entries and their flavor/extra/photo children. Mutation
// conditions follow the same last-writer-wins contract as categories.
type Repository interface {
	// ResolveIDAndCat returns the entry's server id and owning category id
	// for a uuid, or (0, 0) when unknown.
	ResolveIDAndCat(ctx context.Context, userID int64, uuid string) (int64, int64, error)
	// GetByUUID loads the full record with children, or common.ErrNotFound.
	GetByUUID(ctx context.Context, userID int64, uuid string) (*models.Entry, error)
	// ListUpdated returns full records written by other clients after the
	// requesting client's last-sync watermark.
	ListUpdated(ctx context.Context, userID, clientID int64) ([]*models.Entry, error)
	// ListIDs maps every entry uuid of the user to its server id.
	ListIDs(ctx context.Context, userID int64) (map[string]int64, error)

	Insert(ctx context.Context, userID, clientID int64, entry *models.Entry) (int64, error)
	UpdateConditional(ctx context.Context, userID, clientID int64, entry *models.Entry) (bool, error)
	DeleteConditional(ctx context.Context, userID, id, age int64) (bool, error)

	ReplaceFlavors(ctx context.Context, entryID int64, flavors []*models.Flavor) error
	// ReplaceExtras rewrites the extra values; values for uuids the owning
	// category does not define are skipped.
	ReplaceExtras(ctx context.Context, entryID, catID int64, extras []*models.Extra) error
	ReplacePhotos(ctx context.Context, entryID int64, photos []*models.Photo) error
}
