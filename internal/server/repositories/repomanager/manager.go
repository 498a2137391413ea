package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Accounts(db dbx.DBTX) accounts.Repository
}
