package handler

import (
	"errors"
	"net/http"

	"plantain-trace/internal/core/identity"
	"plantain-trace/internal/core/logger"
	"plantain-trace/internal/features/verification/ports"
	"plantain-trace/internal/features/verification/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// VerificationHandler handles HTTP requests for KYC profiles.
type VerificationHandler struct {
	// service is the VerificationService instance.
	service *service.VerificationService
}

// NewVerificationHandler creates a new instance of VerificationHandler.
func NewVerificationHandler(s *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		service: s,
	}
}

// submitDocumentRequest is the JSON body for uploading a document.
type submitDocumentRequest struct {
	// DocumentType is the kind of document (identity, business, facility, insurance).
	DocumentType string `json:"document_type"`
	// Reference points at the stored upload.
	Reference string `json:"reference"`
}

// SubmitDocument handles a document upload on the actor's own profile.
// @Summary Submit a verification document
// @Description Records a document upload. Once every required document type for the actor's role is present the profile enters review.
// @Accept json
// @Produce json
// @Param body body submitDocumentRequest true "Document payload"
// @Success 200 {object} domain.VerificationProfile
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /verification/documents [post]
func (h *VerificationHandler) SubmitDocument(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req submitDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	profile, err := h.service.SubmitDocument(c.Context(), actor.UserID, actor.Role, req.DocumentType, req.Reference)
	if err != nil {
		return h.errorResponse(c, err, "Failed to submit document", rayID)
	}

	return c.Status(http.StatusOK).JSON(profile)
}

// GetProfile handles reading the actor's own profile.
// @Summary Get verification profile
// @Description Returns the actor's KYC profile, downgrading it first if the validity window has lapsed.
// @Produce json
// @Success 200 {object} domain.VerificationProfile
// @Failure 404 {object} ErrorResponse
// @Router /verification/profile [get]
func (h *VerificationHandler) GetProfile(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	profile, err := h.service.GetProfile(c.Context(), actor.UserID)
	if err != nil {
		return h.errorResponse(c, err, "Failed to read profile", rayID)
	}

	return c.Status(http.StatusOK).JSON(profile)
}

// approveRequest is the JSON body for approving a profile.
type approveRequest struct {
	// Level is the tier to grant (BASIC, STANDARD, PREMIUM).
	Level string `json:"level"`
}

// ApproveVerification handles a reviewer approving a pending profile.
// @Summary Approve a verification
// @Description Marks a pending profile verified at the given level. The level's required documents must all have been submitted.
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param body body approveRequest true "Approval payload"
// @Success 200 {object} domain.VerificationProfile
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /verification/{userID}/approve [post]
func (h *VerificationHandler) ApproveVerification(c *fiber.Ctx) error {
	rayID := rayID(c)

	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	profile, err := h.service.ApproveVerification(c.Context(), c.Params("userID"), req.Level)
	if err != nil {
		return h.errorResponse(c, err, "Failed to approve verification", rayID)
	}

	return c.Status(http.StatusOK).JSON(profile)
}

// rejectRequest is the JSON body for rejecting a profile.
type rejectRequest struct {
	// Reason explains the rejection to the user.
	Reason string `json:"reason"`
}

// RejectVerification handles a reviewer rejecting a pending profile.
// @Summary Reject a verification
// @Description Marks a pending profile rejected with a reason. The user may resubmit documents to re-enter review.
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param body body rejectRequest true "Rejection payload"
// @Success 200 {object} domain.VerificationProfile
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /verification/{userID}/reject [post]
func (h *VerificationHandler) RejectVerification(c *fiber.Ctx) error {
	rayID := rayID(c)

	var req rejectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	profile, err := h.service.RejectVerification(c.Context(), c.Params("userID"), req.Reason)
	if err != nil {
		return h.errorResponse(c, err, "Failed to reject verification", rayID)
	}

	return c.Status(http.StatusOK).JSON(profile)
}

// errorResponse maps service errors to HTTP statuses.
func (h *VerificationHandler) errorResponse(c *fiber.Ctx, err error, logMsg, rayID string) error {
	logger.Get().Error(logMsg,
		zap.String("ray_id", rayID),
		zap.Error(err),
	)

	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrProfileNotFound):
		status = http.StatusNotFound
	}

	return c.Status(status).JSON(ErrorResponse{Message: msg, RayID: rayID})
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}
