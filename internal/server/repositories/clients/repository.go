package clients

import (
	"context"
	"time"

	"github.com/tastediary/syncserver/internal/server/models"
)

// Repository is the client registry: one row per registered device, plus the
// per-user sync lease. The lease is a compare-and-swap primitive expressed as
// conditional updates so that exclusivity holds across processes.
type Repository interface {
	Create(ctx context.Context, userID int64, pushToken string) (int64, error)
	DeleteByToken(ctx context.Context, userID int64, pushToken string) error
	Delete(ctx context.Context, userID, clientID int64) (bool, error)
	Get(ctx context.Context, clientID int64) (*models.Client, error)
	SetPushToken(ctx context.Context, clientID int64, pushToken string) error
	ListPushTokens(ctx context.Context, userID int64) (map[int64]string, error)

	// AcquireLease grants the lease to clientID only if no client of the
	// user holds an unexpired one. Returns false with no side effect otherwise.
	AcquireLease(ctx context.Context, userID, clientID int64, ttl time.Duration) (bool, error)
	// RenewLease extends the lease only if clientID currently holds an
	// unexpired one.
	RenewLease(ctx context.Context, userID, clientID int64, ttl time.Duration) (bool, error)
	// ReleaseLease unconditionally clears the lease, advances the client's
	// last-sync watermark and resets the pending-changes flag.
	ReleaseLease(ctx context.Context, userID, clientID int64) error

	ChangesPending(ctx context.Context, userID, clientID int64) (bool, error)
	MarkChangesPending(ctx context.Context, userID, clientID int64) error
}
