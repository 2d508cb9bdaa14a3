package repomanager

import (
	"context"
	"database/sql"

	"github.com/rmaia/authd/internal/dbx"
	"github.com/rmaia/authd/internal/server/repositories/refreshtokens"
	"github.com/rmaia/authd/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same repository code standalone or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
