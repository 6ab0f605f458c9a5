// Package memory provides an in-memory blob store, used in tests.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/yuimarudev/mox/internal/blob"
)

type object struct {
	data []byte
	info blob.ObjectInfo
}

// Store implements blob.Store with an in-process map.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// Ensure Store implements blob.Store.
var _ blob.Store = (*Store)(nil)

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{objects: map[string]object{}}
}

// Put stores the full body under key.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, opts blob.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{
		data: data,
		info: blob.ObjectInfo{
			ContentType:        opts.ContentType,
			ContentDisposition: opts.ContentDisposition,
			Size:               int64(len(data)),
		},
	}
	return nil
}

// Get returns the object stored under key, or blob.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, blob.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, blob.ObjectInfo{}, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
