package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures the local disk store. InMemory is for tests.
type BadgerConfig struct {
	Path     string
	Bucket   string
	InMemory bool
}

// BadgerStore keeps blobs in a badger LSM. Each object is two entries:
// "obj:<bucket>/<key>" with the body and "meta:<bucket>/<key>" with the
// metadata and an xxhash digest of the body, checked on every read.
type BadgerStore struct {
	db  *badger.DB
	cfg BadgerConfig
}

type badgerMeta struct {
	Digest   uint64            `json:"digest"`
	Size     int               `json:"size"`
	Metadata map[string]string `json:"metadata,omitempty"`
	StoredAt time.Time         `json:"storedAt"`
}

func NewBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumCompactors(2)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db, cfg: cfg}, nil
}

func objKey(bucket, key string) []byte  { return []byte("obj:" + bucket + "/" + key) }
func metaKey(bucket, key string) []byte { return []byte("meta:" + bucket + "/" + key) }

func (s *BadgerStore) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta, err := json.Marshal(badgerMeta{
		Digest:   xxhash.Sum64(body),
		Size:     len(body),
		Metadata: metadata,
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode object metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(objKey(bucket, key))
		switch {
		case err == nil:
			return ErrExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check object: %w", err)
		}
		if err := txn.Set(objKey(bucket, key), body); err != nil {
			return fmt.Errorf("failed to write object: %w", err)
		}
		if err := txn.Set(metaKey(bucket, key), meta); err != nil {
			return fmt.Errorf("failed to write object metadata: %w", err)
		}
		return nil
	})
	// a conflicting commit means another writer created the key first
	if errors.Is(err, ErrExists) || errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %s/%s", ErrExists, bucket, key)
	}
	return err
}

func (s *BadgerStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		body []byte
		meta badgerMeta
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objKey(bucket, key))
		if err != nil {
			return err
		}
		if body, err = item.ValueCopy(nil); err != nil {
			return err
		}

		item, err = txn.Get(metaKey(bucket, key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s/%s: %w", bucket, key, err)
	}

	if xxhash.Sum64(body) != meta.Digest || len(body) != meta.Size {
		return nil, fmt.Errorf("%w: %s/%s", ErrCorrupt, bucket, key)
	}
	return body, nil
}

func (s *BadgerStore) URL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrURLUnsupported
}

func (s *BadgerStore) Location() Location {
	return Location{Provider: ProviderBadger, Bucket: s.cfg.Bucket, Endpoint: s.cfg.Path}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
