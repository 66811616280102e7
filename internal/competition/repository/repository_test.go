package repository

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"alchemy/internal/common/cache"
	"alchemy/internal/common/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

type memoryObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

var _ storage.ObjectStorage = (*memoryObjectStorage)(nil)

func newMemoryObjectStorage() *memoryObjectStorage {
	return &memoryObjectStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjectStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *memoryObjectStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjectStorage) RemoveObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memoryObjectStorage) contentType(bucket, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return m.types[bucket+"/"+key], ok
}
