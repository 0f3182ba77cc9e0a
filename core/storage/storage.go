// Package storage holds the blob capability used for breakdown photos.
// Handlers store uploads here and keep only the returned ids on the
// breakdown record.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown blob ids.
var ErrNotFound = errors.New("blob not found")

// BlobInfo describes a stored blob.
type BlobInfo struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore stores opaque blobs keyed by generated ids.
type BlobStore interface {
	// Put stores the blob and returns its info. The reader is consumed.
	Put(ctx context.Context, contentType string, r io.Reader) (BlobInfo, error)
	// Open returns the blob content and info.
	Open(ctx context.Context, id string) (io.ReadCloser, BlobInfo, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps blobs in memory. Used by tests and the simulator.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string]memBlob
}

type memBlob struct {
	info BlobInfo
	data []byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memBlob)}
}

func (s *MemoryStore) Put(_ context.Context, contentType string, r io.Reader) (BlobInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return BlobInfo{}, err
	}
	info := BlobInfo{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.blobs[info.ID] = memBlob{info: info, data: data}
	s.mu.Unlock()
	return info, nil
}

func (s *MemoryStore) Open(_ context.Context, id string) (io.ReadCloser, BlobInfo, error) {
	s.mu.Lock()
	b, ok := s.blobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, BlobInfo{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), b.info, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, id)
	return nil
}
