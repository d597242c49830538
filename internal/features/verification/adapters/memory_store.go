package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"plantain-trace/internal/features/verification/domain"
	"plantain-trace/internal/features/verification/ports"
)

// MemoryProfileStore is an in-memory ports.ProfileStore used in tests and
// local development. Profiles are stored as JSON so callers get copies, the
// same as the redis adapter.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string][]byte
}

// NewMemoryProfileStore creates an empty MemoryProfileStore.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string][]byte),
	}
}

// Save stores the profile under its user key.
func (s *MemoryProfileStore) Save(_ context.Context, profile *domain.VerificationProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = data
	return nil
}

// Get looks a profile up by user ID.
func (s *MemoryProfileStore) Get(_ context.Context, userID string) (*domain.VerificationProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrProfileNotFound, userID)
	}

	var profile domain.VerificationProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}
