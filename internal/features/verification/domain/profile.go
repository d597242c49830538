package domain

import (
	"time"

	"plantain-trace/internal/core/authz"
)

// VerificationStatus is the overall state of a user's verification profile.
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "UNVERIFIED"
	StatusPending    VerificationStatus = "PENDING"
	StatusVerified   VerificationStatus = "VERIFIED"
	StatusRejected   VerificationStatus = "REJECTED"
	StatusExpired    VerificationStatus = "EXPIRED"
)

// VerificationLevel is the trust tier unlocked by verified-document coverage.
type VerificationLevel string

const (
	LevelBasic    VerificationLevel = "BASIC"
	LevelStandard VerificationLevel = "STANDARD"
	LevelPremium  VerificationLevel = "PREMIUM"
)

// ParseLevel converts a string into a VerificationLevel.
func ParseLevel(s string) (VerificationLevel, bool) {
	switch VerificationLevel(s) {
	case LevelBasic, LevelStandard, LevelPremium:
		return VerificationLevel(s), true
	}
	return "", false
}

// DocumentType identifies one kind of supporting document.
type DocumentType string

const (
	DocumentIdentity  DocumentType = "identity"
	DocumentBusiness  DocumentType = "business"
	DocumentFacility  DocumentType = "facility"
	DocumentInsurance DocumentType = "insurance"
)

// DocumentStatus is the per-document review state.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "PENDING"
	DocumentVerified DocumentStatus = "VERIFIED"
	DocumentRejected DocumentStatus = "REJECTED"
)

// Document is one submitted document on a profile.
type Document struct {
	Type       DocumentType   `json:"type"`
	Status     DocumentStatus `json:"status"`
	Reference  string         `json:"reference,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// ValidityWindow is how long an approved verification lasts.
const ValidityWindow = 365 * 24 * time.Hour

// requiredDocuments is the document set a role must submit before its profile
// enters review. allowedDocuments is everything the role may upload on top.
var requiredDocuments = map[authz.Role][]DocumentType{
	authz.RoleFarmer:      {DocumentIdentity},
	authz.RoleProcessor:   {DocumentIdentity, DocumentBusiness},
	authz.RoleDistributor: {DocumentIdentity, DocumentBusiness},
	authz.RoleConsumer:    {DocumentIdentity},
}

var allowedDocuments = map[authz.Role][]DocumentType{
	authz.RoleFarmer:      {DocumentIdentity, DocumentBusiness, DocumentFacility, DocumentInsurance},
	authz.RoleProcessor:   {DocumentIdentity, DocumentBusiness, DocumentFacility, DocumentInsurance},
	authz.RoleDistributor: {DocumentIdentity, DocumentBusiness, DocumentFacility, DocumentInsurance},
	authz.RoleConsumer:    {DocumentIdentity},
}

// RequiredDocuments returns the document types a role must submit for review.
func RequiredDocuments(role authz.Role) []DocumentType {
	return requiredDocuments[role]
}

// DocumentAllowed reports whether the document type is defined for the role.
func DocumentAllowed(role authz.Role, docType DocumentType) bool {
	for _, allowed := range allowedDocuments[role] {
		if allowed == docType {
			return true
		}
	}
	return false
}

// levelRequirements is ordered highest tier first. DeriveLevel returns the
// first tier whose whole set is covered.
var levelRequirements = []struct {
	level    VerificationLevel
	required []DocumentType
}{
	{LevelPremium, []DocumentType{DocumentIdentity, DocumentBusiness, DocumentFacility, DocumentInsurance}},
	{LevelStandard, []DocumentType{DocumentIdentity, DocumentBusiness}},
	{LevelBasic, []DocumentType{DocumentIdentity}},
}

// DeriveLevel returns the highest tier whose entire required-document set is
// covered by the given verified document types, or false if none is.
func DeriveLevel(verified map[DocumentType]bool) (VerificationLevel, bool) {
	for _, tier := range levelRequirements {
		covered := true
		for _, docType := range tier.required {
			if !verified[docType] {
				covered = false
				break
			}
		}
		if covered {
			return tier.level, true
		}
	}
	return "", false
}

// LevelSatisfiedBy reports whether the given document types cover the level's
// required set.
func LevelSatisfiedBy(level VerificationLevel, docTypes map[DocumentType]bool) bool {
	for _, tier := range levelRequirements {
		if tier.level != level {
			continue
		}
		for _, docType := range tier.required {
			if !docTypes[docType] {
				return false
			}
		}
		return true
	}
	return false
}

// VerificationProfile is a user's KYC record.
type VerificationProfile struct {
	UserID          string                         `json:"user_id"`
	Role            authz.Role                     `json:"role"`
	Status          VerificationStatus             `json:"status"`
	Level           VerificationLevel              `json:"level,omitempty"`
	Documents       map[DocumentType]*Document     `json:"documents"`
	SubmittedAt     *time.Time                     `json:"submitted_at,omitempty"`
	VerifiedAt      *time.Time                     `json:"verified_at,omitempty"`
	ExpiresAt       *time.Time                     `json:"expires_at,omitempty"`
	RejectionReason string                         `json:"rejection_reason,omitempty"`
}

// NewProfile creates an unverified profile for a user.
func NewProfile(userID string, role authz.Role) *VerificationProfile {
	return &VerificationProfile{
		UserID:    userID,
		Role:      role,
		Status:    StatusUnverified,
		Documents: make(map[DocumentType]*Document),
	}
}

// HasAllRequiredDocuments reports whether every required document type for the
// profile's role has been submitted.
func (p *VerificationProfile) HasAllRequiredDocuments() bool {
	for _, docType := range RequiredDocuments(p.Role) {
		if _, ok := p.Documents[docType]; !ok {
			return false
		}
	}
	return true
}

// SubmittedDocumentTypes returns the set of document types present on the
// profile, regardless of review state.
func (p *VerificationProfile) SubmittedDocumentTypes() map[DocumentType]bool {
	types := make(map[DocumentType]bool, len(p.Documents))
	for docType := range p.Documents {
		types[docType] = true
	}
	return types
}

// VerifiedDocumentTypes returns the set of document types reviewed as verified.
func (p *VerificationProfile) VerifiedDocumentTypes() map[DocumentType]bool {
	types := make(map[DocumentType]bool, len(p.Documents))
	for docType, doc := range p.Documents {
		if doc.Status == DocumentVerified {
			types[docType] = true
		}
	}
	return types
}

// ExpireIfDue downgrades a verified profile whose validity window has passed.
// Returns true when the profile changed.
func (p *VerificationProfile) ExpireIfDue(now time.Time) bool {
	if p.Status != StatusVerified || p.ExpiresAt == nil {
		return false
	}
	if now.Before(*p.ExpiresAt) {
		return false
	}
	p.Status = StatusExpired
	p.Level = ""
	return true
}
