package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrBlobNotFound signals an id with no stored object.
var ErrBlobNotFound = errors.New("files: blob not found")

// ObjectInfo carries the metadata needed to serve stored bytes.
type ObjectInfo struct {
	ContentType string
	Filename    string
	Size        int64
}

// BlobStore is the durable blob subsystem behind internal references.
type BlobStore interface {
	Put(ctx context.Context, id string, reader io.Reader, size int64, info ObjectInfo) error
	Get(ctx context.Context, id string) (io.ReadCloser, ObjectInfo, error)
	Remove(ctx context.Context, id string) error
}

// MemoryBlobStore backs fallback mode: blobs live for the process
// lifetime, matching the fallback document store's durability.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	data []byte
	info ObjectInfo
}

// NewMemoryBlobStore constructs an empty in-process blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[string]memoryBlob{}}
}

func (s *MemoryBlobStore) Put(_ context.Context, id string, reader io.Reader, _ int64, info ObjectInfo) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	info.Size = int64(len(data))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = memoryBlob{data: data, info: info}
	return nil
}

func (s *MemoryBlobStore) Get(_ context.Context, id string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, ObjectInfo{}, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.data)), blob.info, nil
}

func (s *MemoryBlobStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}
