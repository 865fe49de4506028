package repomanager

import (
	"context"
	"database/sql"

	"github.com/tastediary/syncserver/internal/dbx"
	"github.com/tastediary/syncserver/internal/server/repositories/categories"
	"github.com/tastediary/syncserver/internal/server/repositories/clients"
	"github.com/tastediary/syncserver/internal/server/repositories/entries"
	"github.com/tastediary/syncserver/internal/server/repositories/tombstones"
	"github.com/tastediary/syncserver/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Clients(db dbx.DBTX) clients.Repository
	Categories(db dbx.DBTX) categories.Repository
	Entries(db dbx.DBTX) entries.Repository
	Tombstones(db dbx.DBTX) tombstones.Repository
}
