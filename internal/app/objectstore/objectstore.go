// Package objectstore persists uploaded land photos. Keys are opaque to
// callers; URL maps a key to the public path the HTTP layer serves.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store persists photo objects.
type Store interface {
	// Put writes the object and returns its key.
	Put(ctx context.Context, ownerID, filename string, r io.Reader) (string, error)
	// Delete removes the object. Deleting a missing key is an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public path for a stored key.
	URL(key string) string
}

// MakeKey builds a collision-free key for an upload.
func MakeKey(ownerID, filename string) string {
	base := filepath.Base(filename)
	return fmt.Sprintf("uploads/%s/%d-%s", ownerID, time.Now().UnixNano(), base)
}

// DiskStore writes objects under a root directory.
type DiskStore struct {
	root          string
	publicBaseURL string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a store rooted at dir.
func NewDiskStore(dir, publicBaseURL string) *DiskStore {
	return &DiskStore{root: dir, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}
}

func (s *DiskStore) Put(_ context.Context, ownerID, filename string, r io.Reader) (string, error) {
	key := MakeKey(ownerID, filename)
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("write object: %w", err)
	}
	return key, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *DiskStore) URL(key string) string {
	return s.publicBaseURL + "/" + path.Clean(key)
}

// MemoryStore keeps objects in process memory, for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, ownerID, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	key := MakeKey(ownerID, filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("object %s: %w", key, ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string {
	return "/static/" + key
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
