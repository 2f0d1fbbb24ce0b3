package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/travel-otp-api/internal/domain"
)

// Store is a process-local OTP record table. Records are copied on every read and
// write so callers never share state with the table.
type Store struct {
	mu      sync.Mutex
	records map[string]domain.OTPRecord
}

func NewStore() *Store {
	return &Store{records: make(map[string]domain.OTPRecord)}
}

func (s *Store) Get(_ context.Context, email string) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil, fmt.Errorf("otp record %q: %w", email, domain.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) Put(_ context.Context, rec *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Email] = *rec
	return nil
}

func (s *Store) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// DeleteStale drops records that can no longer validate a code or block a resend,
// and returns how many were removed.
func (s *Store) DeleteStale(now time.Time, cooldown time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, rec := range s.records {
		if rec.Stale(now, cooldown) {
			delete(s.records, email)
			n++
		}
	}
	return n
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
