package ports

import (
	"context"
	"errors"

	"plantain-trace/internal/features/verification/domain"
)

// ErrProfileNotFound is returned when no verification profile exists for a
// user.
var ErrProfileNotFound = errors.New("verification profile not found")

// ProfileStore persists verification profiles keyed by user.
type ProfileStore interface {
	// Save stores the profile, replacing any previous version.
	Save(ctx context.Context, profile *domain.VerificationProfile) error
	// Get looks a profile up by user ID.
	Get(ctx context.Context, userID string) (*domain.VerificationProfile, error)
}
