package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FSStore keeps blobs on the local filesystem, one file per blob plus a
// sidecar with the metadata.
type FSStore struct {
	dir string
}

// NewFSStore ensures dir exists and returns the store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) blobPath(id string) string { return filepath.Join(s.dir, id) }
func (s *FSStore) infoPath(id string) string { return filepath.Join(s.dir, id+".json") }

func (s *FSStore) Put(_ context.Context, contentType string, r io.Reader) (BlobInfo, error) {
	id := uuid.NewString()
	f, err := os.OpenFile(s.blobPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return BlobInfo{}, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.blobPath(id))
		return BlobInfo{}, err
	}

	info := BlobInfo{ID: id, ContentType: contentType, Size: size, CreatedAt: time.Now()}
	meta, err := json.Marshal(info)
	if err != nil {
		_ = os.Remove(s.blobPath(id))
		return BlobInfo{}, err
	}
	if err := os.WriteFile(s.infoPath(id), meta, 0o644); err != nil {
		_ = os.Remove(s.blobPath(id))
		return BlobInfo{}, err
	}
	return info, nil
}

func (s *FSStore) Open(_ context.Context, id string) (io.ReadCloser, BlobInfo, error) {
	meta, err := os.ReadFile(s.infoPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, BlobInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, BlobInfo{}, err
	}
	var info BlobInfo
	if err := json.Unmarshal(meta, &info); err != nil {
		return nil, BlobInfo{}, err
	}
	f, err := os.Open(s.blobPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, BlobInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, BlobInfo{}, err
	}
	return f, info, nil
}

func (s *FSStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.blobPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return os.Remove(s.infoPath(id))
}
