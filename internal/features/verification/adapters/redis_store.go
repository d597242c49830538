package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"plantain-trace/internal/core/storage"
	"plantain-trace/internal/features/verification/domain"
	"plantain-trace/internal/features/verification/ports"
)

const profileKeyFmt = "verification:profile:%s"

// RedisProfileStore implements ports.ProfileStore on the shared KV storage.
type RedisProfileStore struct {
	kv storage.KV
}

// NewRedisProfileStore creates a RedisProfileStore.
func NewRedisProfileStore(kv storage.KV) *RedisProfileStore {
	return &RedisProfileStore{kv: kv}
}

// Save stores the profile under its user key.
func (s *RedisProfileStore) Save(ctx context.Context, profile *domain.VerificationProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return s.kv.Set(ctx, fmt.Sprintf(profileKeyFmt, profile.UserID), data)
}

// Get looks a profile up by user ID.
func (s *RedisProfileStore) Get(ctx context.Context, userID string) (*domain.VerificationProfile, error) {
	data, err := s.kv.Get(ctx, fmt.Sprintf(profileKeyFmt, userID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ports.ErrProfileNotFound, userID)
		}
		return nil, err
	}

	var profile domain.VerificationProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}
