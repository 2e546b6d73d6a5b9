package objectstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
)

const memoryScheme = "mem://"

// MemoryStore keeps objects in process memory under mem:// URLs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// FailUpload, when set, is consulted before each upload.
	FailUpload func(name string) error
	// FailDelete, when set, is consulted before each delete.
	FailDelete func(url string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *MemoryStore) Upload(ctx context.Context, name string, r io.Reader, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.FailUpload != nil {
		if err := s.FailUpload(name); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, newCountingReader(r, opts)); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = buf.Bytes()
	s.types[name] = opts.ContentType
	return memoryScheme + name, nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailDelete != nil {
		if err := s.FailDelete(url); err != nil {
			return err
		}
	}
	name, ok := strings.CutPrefix(url, memoryScheme)
	if !ok {
		return ErrForeignURL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[name]; !exists {
		return ErrNotFound
	}
	delete(s.objects, name)
	delete(s.types, name)
	return nil
}

// Has reports whether the object behind url exists.
func (s *MemoryStore) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[strings.TrimPrefix(url, memoryScheme)]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
