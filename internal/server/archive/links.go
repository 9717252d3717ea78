package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
)

const DefaultLinkExpiry = 15 * time.Minute

// Links hands out read URLs for archive blobs.
type Links struct {
	store  objectstore.Store
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	expiry time.Duration
}

func NewLinks(store objectstore.Store, tx dbx.Transactor, repos repomanager.RepositoryManager, expiry time.Duration) *Links {
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	return &Links{store: store, tx: tx, repos: repos, expiry: expiry}
}

// URL returns objectstore.ErrURLUnsupported for stores without HTTP access.
func (l *Links) URL(ctx context.Context, archiveID string) (string, error) {
	if l.store == nil {
		return "", common.ErrorArchiveConfig
	}

	rec, err := l.repos.Archives(l.tx.Conn()).GetByID(ctx, archiveID)
	if err != nil {
		return "", fmt.Errorf("load archive %s: %w", archiveID, err)
	}
	if want := l.store.Location().Provider; rec.Storage.Provider != want {
		return "", fmt.Errorf("%w: archive %s is in %q", common.ErrProviderMismatch, archiveID, rec.Storage.Provider)
	}

	return l.store.URL(ctx, rec.Storage.Bucket, rec.Storage.Key, l.expiry)
}
