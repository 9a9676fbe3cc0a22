package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in memory, for tests and local development
type MemoryStore struct {
	objects map[string][]byte
	types   map[string]string
	mu      sync.RWMutex
	urlMapping
}

// NewMemoryStore creates an in-memory blob store
func NewMemoryStore(publicBaseURL, bucket string) *MemoryStore {
	return &MemoryStore{
		objects:    make(map[string][]byte),
		types:      make(map[string]string),
		urlMapping: urlMapping{baseURL: publicBaseURL, bucket: bucket},
	}
}

// Upload writes data under path and returns the public URL
func (s *MemoryStore) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf
	s.types[path] = contentType
	return s.URLFromPath(path), nil
}

// Download reads the object at path
func (s *MemoryStore) Download(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[path]
	if !ok {
		return nil, ErrObjectNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Remove deletes the object at path
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[path]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, path)
	delete(s.types, path)
	return nil
}
