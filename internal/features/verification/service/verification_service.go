package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/keymutex"
	"plantain-trace/internal/features/verification/domain"
	"plantain-trace/internal/features/verification/ports"
)

var (
	// ErrValidation is returned when the submission or review request is
	// inconsistent with the profile's role or documents.
	ErrValidation = errors.New("invalid verification request")
	// ErrInvalidState is returned when a review action does not apply to the
	// profile's current status. The profile is left unchanged.
	ErrInvalidState = errors.New("invalid verification state")
)

// VerificationService manages the per-user document review lifecycle. All
// changes to one profile are serialized by a per-user lock.
type VerificationService struct {
	store ports.ProfileStore
	locks *keymutex.KeyMutex

	now func() time.Time
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(store ports.ProfileStore) *VerificationService {
	return &VerificationService{
		store: store,
		locks: keymutex.New(),
		now:   time.Now,
	}
}

// SubmitDocument records a document upload on the user's profile, creating
// the profile on first contact. Once every required document type for the
// role is present the profile enters review. Resubmission after rejection or
// expiry re-enters review the same way.
func (s *VerificationService) SubmitDocument(ctx context.Context, userID string, role authz.Role, documentType, reference string) (*domain.VerificationProfile, error) {
	docType := domain.DocumentType(documentType)
	if !domain.DocumentAllowed(role, docType) {
		return nil, fmt.Errorf("%w: document type %q is not defined for role %s", ErrValidation, documentType, role)
	}

	s.locks.Lock(userKey(userID))
	defer s.locks.Unlock(userKey(userID))

	profile, err := s.store.Get(ctx, userID)
	if errors.Is(err, ports.ErrProfileNotFound) {
		profile = domain.NewProfile(userID, role)
	} else if err != nil {
		return nil, fmt.Errorf("service: failed to load profile: %w", err)
	}

	if profile.Status == domain.StatusVerified {
		return nil, fmt.Errorf("%w: profile is already verified", ErrInvalidState)
	}

	now := s.now().UTC()
	profile.Documents[docType] = &domain.Document{
		Type:       docType,
		Status:     domain.DocumentPending,
		Reference:  reference,
		UploadedAt: now,
	}

	if profile.HasAllRequiredDocuments() && profile.Status != domain.StatusPending {
		profile.Status = domain.StatusPending
		profile.SubmittedAt = &now
		profile.RejectionReason = ""
	}

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("service: failed to save profile: %w", err)
	}

	return profile, nil
}

// ApproveVerification marks a pending profile verified at the given level.
// The level's whole required-document set must have been submitted; a tier
// the documents cannot back is rejected.
func (s *VerificationService) ApproveVerification(ctx context.Context, userID, level string) (*domain.VerificationProfile, error) {
	parsed, ok := domain.ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", ErrValidation, level)
	}

	s.locks.Lock(userKey(userID))
	defer s.locks.Unlock(userKey(userID))

	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profile.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: profile is %s, not pending review", ErrInvalidState, profile.Status)
	}

	if !domain.LevelSatisfiedBy(parsed, profile.SubmittedDocumentTypes()) {
		return nil, fmt.Errorf("%w: submitted documents do not cover level %s", ErrValidation, parsed)
	}

	now := s.now().UTC()
	expires := now.Add(domain.ValidityWindow)

	for _, doc := range profile.Documents {
		doc.Status = domain.DocumentVerified
	}
	profile.Status = domain.StatusVerified
	profile.Level = parsed
	profile.VerifiedAt = &now
	profile.ExpiresAt = &expires
	profile.RejectionReason = ""

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("service: failed to save profile: %w", err)
	}

	return profile, nil
}

// RejectVerification marks a pending profile rejected with a reason. The user
// may resubmit documents to re-enter review.
func (s *VerificationService) RejectVerification(ctx context.Context, userID, reason string) (*domain.VerificationProfile, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	s.locks.Lock(userKey(userID))
	defer s.locks.Unlock(userKey(userID))

	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profile.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: profile is %s, not pending review", ErrInvalidState, profile.Status)
	}

	for _, doc := range profile.Documents {
		doc.Status = domain.DocumentRejected
	}
	profile.Status = domain.StatusRejected
	profile.Level = ""
	profile.RejectionReason = reason

	if err := s.store.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("service: failed to save profile: %w", err)
	}

	return profile, nil
}

// GetProfile returns the user's profile, downgrading it first if the validity
// window has lapsed.
func (s *VerificationService) GetProfile(ctx context.Context, userID string) (*domain.VerificationProfile, error) {
	s.locks.Lock(userKey(userID))
	defer s.locks.Unlock(userKey(userID))

	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if profile.ExpireIfDue(s.now().UTC()) {
		if err := s.store.Save(ctx, profile); err != nil {
			return nil, fmt.Errorf("service: failed to save expired profile: %w", err)
		}
	}

	return profile, nil
}

func userKey(userID string) string {
	return "user:" + userID
}
