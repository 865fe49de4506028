package services

import (
	"context"
	"database/sql"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/auth"
	"github.com/tastediary/syncserver/internal/server/models"
	"github.com/tastediary/syncserver/internal/server/repositories/repomanager"
)

// ClientService manages device registrations.
type ClientService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewClientService(db *sql.DB, repomanager repomanager.RepositoryManager) *ClientService {
	return &ClientService{db: db, repomanager: repomanager}
}

// Register creates a device registration for the authenticated user. Any
// previous registration carrying the same push token is replaced so a
// reinstalled app does not accumulate dead client rows.
func (s *ClientService) Register(ctx context.Context, ac *auth.Context, pushToken string) (*models.Registration, error) {
	userID, err := s.repomanager.Users(s.db).GetOrCreate(ctx, ac.UID, ac.Email)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		clients := s.repomanager.Clients(tx)
		if pushToken != "" {
			if err := clients.DeleteByToken(ctx, userID, pushToken); err != nil {
				return err
			}
		}
		id, err := clients.Create(ctx, userID, pushToken)
		if err != nil {
			return err
		}
		reg.ClientID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Unregister removes a device registration.
func (s *ClientService) Unregister(ctx context.Context, ac *auth.Context, clientID int64) error {
	userID, err := s.repomanager.Users(s.db).GetOrCreate(ctx, ac.UID, ac.Email)
	if err != nil {
		return err
	}

	ok, err := s.repomanager.Clients(s.db).Delete(ctx, userID, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNotFound
	}
	return nil
}

// SetPushToken updates the notification address of a registered device.
func (s *ClientService) SetPushToken(ctx context.Context, ac *auth.Context, clientID int64, pushToken string) error {
	userID, err := s.repomanager.Users(s.db).GetOrCreate(ctx, ac.UID, ac.Email)
	if err != nil {
		return err
	}

	clients := s.repomanager.Clients(s.db)
	client, err := clients.Get(ctx, clientID)
	if err != nil {
		return err
	}
	if client.UserID != userID {
		return common.ErrUnauthorized
	}
	return clients.SetPushToken(ctx, clientID, pushToken)
}
