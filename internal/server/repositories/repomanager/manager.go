package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/activity"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/refreshtokens"
)

// RepositoryManager vends repositories bound to a *sql.DB or a *sql.Tx, so
// services can run several of them inside one dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	Notes(db dbx.DBTX) notes.Repository
	Attachments(db dbx.DBTX) attachments.Repository
	Activity(db dbx.DBTX) activity.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
