package repomanager

import (
	"context"
	"database/sql"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/archives"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/snapshots"
)

// RepositoryManager vends repositories bound to a DBTX so that services can
// run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Snapshots(db dbx.DBTX) snapshots.Repository
	Archives(db dbx.DBTX) archives.Repository
}
