package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urlStore struct {
	*objectstore.MemoryStore
	expiry time.Duration
}

func (s *urlStore) URL(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	s.expiry = expiry
	return "https://files.example/" + bucket + "/" + key, nil
}

func TestLinks_URL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := archived(t, f, batch("c1", 1))

	store := &urlStore{MemoryStore: f.store}
	links := NewLinks(store, dbx.NopTransactor{}, f.repos, 0)

	u, err := links.URL(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/archives/"+rec.Storage.Key, u)
	assert.Equal(t, DefaultLinkExpiry, store.expiry)
}

func TestLinks_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := archived(t, f, batch("c1", 1))

	_, err := NewLinks(f.store, dbx.NopTransactor{}, f.repos, time.Minute).URL(ctx, rec.ID)
	assert.True(t, errors.Is(err, objectstore.ErrURLUnsupported))

	_, err = NewLinks(f.store, dbx.NopTransactor{}, f.repos, time.Minute).URL(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = NewLinks(nil, dbx.NopTransactor{}, f.repos, time.Minute).URL(ctx, rec.ID)
	assert.True(t, errors.Is(err, common.ErrorArchiveConfig))

	_, err = NewLinks(&failingStore{}, dbx.NopTransactor{}, f.repos, time.Minute).URL(ctx, rec.ID)
	assert.True(t, errors.Is(err, common.ErrProviderMismatch))
}
