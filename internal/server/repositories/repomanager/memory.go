package repomanager

import (
	"context"
	"database/sql"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/archives"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/snapshots"
)

// InMemoryRepositoryManager hands out the same process-local repositories for
// every DBTX. Pair it with dbx.NopTransactor.
type InMemoryRepositoryManager struct {
	snapshots *snapshots.MemoryRepository
	archives  *archives.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		snapshots: snapshots.NewMemoryRepository(),
		archives:  archives.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Snapshots(dbx.DBTX) snapshots.Repository {
	return m.snapshots
}

func (m *InMemoryRepositoryManager) Archives(dbx.DBTX) archives.Repository {
	return m.archives
}
