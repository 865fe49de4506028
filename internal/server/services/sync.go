// Package services implements the application logic between the HTTP
// handlers and the repositories: session leases, change pushes with
// last-writer-wins resolution, delta computation and change fan-out.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/logging"
	"github.com/tastediary/syncserver/internal/server/auth"
	sc "github.com/tastediary/syncserver/internal/server/config"
	"github.com/tastediary/syncserver/internal/server/models"
	"github.com/tastediary/syncserver/internal/server/notify"
	"github.com/tastediary/syncserver/internal/server/repositories/repomanager"
)

// collapseKey coalesces queued wake-up messages per device.
const collapseKey = "requires_sync"

// SyncService owns the sync protocol: the exclusive session lease, the push
// and pull operations inside it, and the end-of-session notification fan-out.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    notify.Notifier
	logger      logging.Logger
	config      *sc.Config
}

func NewSyncService(db *sql.DB, repomanager repomanager.RepositoryManager, notifier notify.Notifier, logger logging.Logger, config *sc.Config) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: repomanager,
		notifier:    notifier,
		logger:      logger,
		config:      config,
	}
}

// resolveUser maps the authenticated subject to the server-local user id,
// creating the user row on first contact.
func (s *SyncService) resolveUser(ctx context.Context, ac *auth.Context) (int64, error) {
	return s.repomanager.Users(s.db).GetOrCreate(ctx, ac.UID, ac.Email)
}

// requireClient verifies that clientID exists and belongs to the user.
func (s *SyncService) requireClient(ctx context.Context, userID, clientID int64) error {
	client, err := s.repomanager.Clients(s.db).Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return err
	}
	if client.UserID != userID {
		return common.ErrUnauthorized
	}
	return nil
}

// touchLease extends the caller's lease, failing with ErrLocked when the
// lease expired or was never held. Every in-session operation goes through
// this so a stalled client loses the session instead of blocking siblings.
func (s *SyncService) touchLease(ctx context.Context, userID, clientID int64) error {
	ok, err := s.repomanager.Clients(s.db).RenewLease(ctx, userID, clientID, s.config.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrLocked
	}
	return nil
}

// StartSession acquires the user's exclusive sync lease for the client.
func (s *SyncService) StartSession(ctx context.Context, ac *auth.Context, clientID int64) error {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return err
	}

	ok, err := s.repomanager.Clients(s.db).AcquireLease(ctx, userID, clientID, s.config.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrLocked
	}
	return nil
}

// EndSession releases the lease, advances the client's last-sync watermark
// and, if the session wrote anything, wakes up the user's other devices.
// Release is unconditional so an expired lease can still be cleaned up.
func (s *SyncService) EndSession(ctx context.Context, ac *auth.Context, clientID int64) error {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return err
	}

	var pending bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clients := s.repomanager.Clients(tx)
		p, err := clients.ChangesPending(ctx, userID, clientID)
		if err != nil {
			return err
		}
		pending = p
		return clients.ReleaseLease(ctx, userID, clientID)
	})
	if err != nil {
		return fmt.Errorf("error ending session: %w", err)
	}

	if pending {
		s.fanOut(ctx, userID, clientID)
	}
	return nil
}

// fanOut notifies the user's devices that changes are available and
// reconciles the token registry from the gateway's per-address outcomes.
// Delivery problems are logged, never surfaced: the sync itself succeeded.
func (s *SyncService) fanOut(ctx context.Context, userID, writerID int64) {
	clients := s.repomanager.Clients(s.db)

	tokens, err := clients.ListPushTokens(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "listing push tokens", "error", err)
		return
	}

	var addresses []string
	var ids []int64
	for id, token := range tokens {
		if token == "" {
			continue
		}
		if id == writerID && !s.config.NotifyWriter {
			continue
		}
		addresses = append(addresses, token)
		ids = append(ids, id)
	}
	if len(addresses) == 0 {
		return
	}

	results, err := s.notifier.Notify(ctx, addresses, collapseKey)
	if err != nil {
		s.logger.Error(ctx, "notifying clients", "error", err)
		return
	}

	for i, r := range results {
		switch r.Outcome {
		case notify.Rotated:
			if err := clients.SetPushToken(ctx, ids[i], r.NewAddress); err != nil {
				s.logger.Error(ctx, "rotating push token", "client_id", ids[i], "error", err)
			}
		case notify.Invalid:
			if _, err := clients.Delete(ctx, userID, ids[i]); err != nil {
				s.logger.Error(ctx, "removing stale client", "client_id", ids[i], "error", err)
			}
		case notify.Failed:
			s.logger.Warn(ctx, "notification failed", "client_id", ids[i])
		}
	}
}

// GetUpdates computes what other clients changed since this client's last
// completed sync: deleted uuids with their deletion ages and full updated
// records. The caller must hold the lease.
func (s *SyncService) GetUpdates(ctx context.Context, ac *auth.Context, clientID int64) (*models.Delta, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}

	tombstones := s.repomanager.Tombstones(s.db)

	deletedCats, err := tombstones.ListSince(ctx, userID, clientID, models.KindCategory)
	if err != nil {
		return nil, err
	}
	deletedEntries, err := tombstones.ListSince(ctx, userID, clientID, models.KindEntry)
	if err != nil {
		return nil, err
	}
	updatedCats, err := s.repomanager.Categories(s.db).ListUpdated(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}
	updatedEntries, err := s.repomanager.Entries(s.db).ListUpdated(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	return &models.Delta{
		DeletedCats:    deletedCats,
		UpdatedCats:    updatedCats,
		DeletedEntries: deletedEntries,
		UpdatedEntries: updatedEntries,
	}, nil
}

// GetCategory loads one category with children by uuid. The caller must
// hold the lease.
func (s *SyncService) GetCategory(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Category, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}
	return s.repomanager.Categories(s.db).GetByUUID(ctx, userID, uuid)
}

// GetEntry loads one entry with children by uuid. The caller must hold the
// lease.
func (s *SyncService) GetEntry(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Entry, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}
	return s.repomanager.Entries(s.db).GetByUUID(ctx, userID, uuid)
}

// GetEntryIDs maps every entry uuid of the user to its server id, letting a
// client repair its local id mapping after a restore.
func (s *SyncService) GetEntryIDs(ctx context.Context, ac *auth.Context, clientID int64) (map[string]int64, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}
	return s.repomanager.Entries(s.db).ListIDs(ctx, userID)
}

// PutCategory applies one pushed category: insert when the uuid is unknown,
// conditional update or delete otherwise. A push that loses conflict
// resolution reports Accepted=false; it is not an error.
func (s *SyncService) PutCategory(ctx context.Context, ac *auth.Context, clientID int64, cat *models.Category) (*models.PushResult, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}

	result := &models.PushResult{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		categories := s.repomanager.Categories(tx)
		tombstones := s.repomanager.Tombstones(tx)

		id, err := categories.ResolveID(ctx, userID, cat.UUID)
		if err != nil {
			return err
		}

		if cat.Deleted {
			if id == 0 {
				return nil
			}
			applied, err := categories.DeleteConditional(ctx, userID, id, cat.Age)
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
			if err := tombstones.Insert(ctx, &models.Tombstone{
				UserID: userID, Kind: models.KindCategory, Cat: id,
				UUID: cat.UUID, ClientID: clientID,
			}); err != nil {
				return err
			}
			result.Accepted = true
			result.ID = id
			return s.repomanager.Clients(tx).MarkChangesPending(ctx, userID, clientID)
		}

		if id == 0 {
			id, err = categories.Insert(ctx, userID, clientID, cat)
			if err != nil {
				return err
			}
			// A reused uuid resurrects the record; drop the stale tombstone.
			if err := tombstones.DeleteByUUID(ctx, userID, cat.UUID); err != nil {
				return err
			}
		} else {
			applied, err := categories.UpdateConditional(ctx, userID, clientID, &models.Category{
				ID: id, Name: cat.Name, Age: cat.Age,
			})
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
		}

		if err := categories.ReplaceFlavors(ctx, id, cat.Flavors); err != nil {
			return err
		}
		if err := categories.UpsertExtras(ctx, id, cat.Extras); err != nil {
			return err
		}
		if err := categories.PruneExtras(ctx, id, cat.Extras); err != nil {
			return err
		}

		result.Accepted = true
		result.ID = id
		return s.repomanager.Clients(tx).MarkChangesPending(ctx, userID, clientID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PutEntry applies one pushed entry under the same contract as PutCategory.
// The owning category is resolved by uuid; pushing an entry into an unknown
// category is an error, not a conflict.
func (s *SyncService) PutEntry(ctx context.Context, ac *auth.Context, clientID int64, entry *models.Entry) (*models.PushResult, error) {
	userID, err := s.resolveUser(ctx, ac)
	if err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	if err := s.touchLease(ctx, userID, clientID); err != nil {
		return nil, err
	}

	result := &models.PushResult{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entries := s.repomanager.Entries(tx)
		tombstones := s.repomanager.Tombstones(tx)

		id, catID, err := entries.ResolveIDAndCat(ctx, userID, entry.UUID)
		if err != nil {
			return err
		}

		if entry.Deleted {
			if id == 0 {
				return nil
			}
			applied, err := entries.DeleteConditional(ctx, userID, id, entry.Age)
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
			if err := tombstones.Insert(ctx, &models.Tombstone{
				UserID: userID, Kind: models.KindEntry, Cat: catID,
				UUID: entry.UUID, ClientID: clientID,
			}); err != nil {
				return err
			}
			result.Accepted = true
			result.ID = id
			return s.repomanager.Clients(tx).MarkChangesPending(ctx, userID, clientID)
		}

		catID, err = s.repomanager.Categories(tx).ResolveID(ctx, userID, entry.CatUUID)
		if err != nil {
			return err
		}
		if catID == 0 {
			return common.ErrNotFound
		}
		entry.Cat = catID

		if id == 0 {
			id, err = entries.Insert(ctx, userID, clientID, entry)
			if err != nil {
				return err
			}
			if err := tombstones.DeleteByUUID(ctx, userID, entry.UUID); err != nil {
				return err
			}
		} else {
			entry.ID = id
			applied, err := entries.UpdateConditional(ctx, userID, clientID, entry)
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
		}

		if err := entries.ReplaceFlavors(ctx, id, entry.Flavors); err != nil {
			return err
		}
		if err := entries.ReplaceExtras(ctx, id, catID, entry.Extras); err != nil {
			return err
		}
		if err := entries.ReplacePhotos(ctx, id, entry.Photos); err != nil {
			return err
		}

		result.Accepted = true
		result.ID = id
		return s.repomanager.Clients(tx).MarkChangesPending(ctx, userID, clientID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
