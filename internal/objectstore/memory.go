package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type memObject struct {
	body     []byte
	metadata map[string]string
	digest   uint64
}

// MemoryStore is a map-backed Store bound to the lifetime of the value that
// holds it.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memObject
	puts    int
}

func NewMemory(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]memObject)}
}

func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[bucket+"/"+key]; ok {
		return fmt.Errorf("%w: %s/%s", ErrExists, bucket, key)
	}
	m.objects[bucket+"/"+key] = memObject{
		body:     append([]byte(nil), body...),
		metadata: meta,
		digest:   xxhash.Sum64(body),
	}
	m.puts++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	if xxhash.Sum64(obj.body) != obj.digest {
		return nil, fmt.Errorf("%w: %s/%s", ErrCorrupt, bucket, key)
	}
	return append([]byte(nil), obj.body...), nil
}

// Metadata returns a copy of the metadata stored with an object.
func (m *MemoryStore) Metadata(bucket, key string) (map[string]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(obj.metadata))
	for k, v := range obj.metadata {
		out[k] = v
	}
	return out, true
}

// Puts counts successful writes.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Len is the number of distinct objects held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) URL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrURLUnsupported
}

func (m *MemoryStore) Location() Location {
	return Location{Provider: ProviderMemory, Bucket: m.bucket}
}
