package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Expired records are rejected on
// read and reaped by the sweeper.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, email string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[email] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return Record{}, ErrNotFound
	}
	if time.Now().After(rec.ExpiresAt) {
		delete(s.records, email)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok || time.Now().After(rec.ExpiresAt) {
		delete(s.records, email)
		return ErrNotFound
	}
	rec.Verified = true
	s.records[email] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// StartSweeper reaps expired records every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, email)
		}
	}
}
