package handler

import (
	"errors"
	"net/http"

	"plantain-trace/internal/core/identity"
	"plantain-trace/internal/core/logger"
	"plantain-trace/internal/features/traceability/ports"
	"plantain-trace/internal/features/traceability/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TraceHandler handles HTTP requests for the traceability ledger.
type TraceHandler struct {
	// service is the LedgerService instance.
	service *service.LedgerService
}

// NewTraceHandler creates a new instance of TraceHandler.
func NewTraceHandler(s *service.LedgerService) *TraceHandler {
	return &TraceHandler{
		service: s,
	}
}

// appendEventRequest is the JSON body for appending a trace event.
type appendEventRequest struct {
	// EventType classifies the event (e.g., CREATED, HARVESTED).
	EventType string `json:"event_type"`
	// ActorName is the display name to record alongside the event.
	ActorName string `json:"actor_name"`
	// Location is where the event happened.
	Location string `json:"location"`
	// Description is the human-readable account of the event.
	Description string `json:"description"`
	// Details holds event-type-specific key/value data.
	Details map[string]string `json:"details"`
	// Attachments lists references to supporting binary evidence.
	Attachments []string `json:"attachments"`
}

// AppendEvent handles appending an event to a batch's ledger.
// @Summary Append a trace event
// @Description Records a new immutable event against a batch. The actor's role must be permitted to record the event type.
// @Accept json
// @Produce json
// @Param batchID path string true "Batch ID"
// @Param body body appendEventRequest true "Event payload"
// @Success 201 {object} domain.TraceEvent
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /batches/{batchID}/events [post]
func (h *TraceHandler) AppendEvent(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req appendEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	event, err := h.service.AppendEvent(c.Context(), actor.UserID, actor.Role, service.AppendEventInput{
		BatchID:     c.Params("batchID"),
		EventType:   req.EventType,
		ActorName:   req.ActorName,
		Location:    req.Location,
		Description: req.Description,
		Details:     req.Details,
		Attachments: req.Attachments,
	})
	if err != nil {
		return h.errorResponse(c, err, "Failed to append event", rayID)
	}

	return c.Status(http.StatusCreated).JSON(event)
}

// GetBatchEvents handles reading a batch's full event history.
// @Summary Get batch events
// @Description Returns the batch's events in chronological order. Unknown batches return an empty list.
// @Produce json
// @Param batchID path string true "Batch ID"
// @Success 200 {array} domain.TraceEvent
// @Router /batches/{batchID}/events [get]
func (h *TraceHandler) GetBatchEvents(c *fiber.Ctx) error {
	events, err := h.service.GetBatchEvents(c.Context(), c.Params("batchID"))
	if err != nil {
		return h.errorResponse(c, err, "Failed to read batch events", rayID(c))
	}

	return c.Status(http.StatusOK).JSON(events)
}

// GetBatchSummary handles reading the derived batch rollup.
// @Summary Get batch summary
// @Description Returns the derived lifecycle stage and rollup statistics for a batch.
// @Produce json
// @Param batchID path string true "Batch ID"
// @Success 200 {object} domain.BatchSummary
// @Router /batches/{batchID}/summary [get]
func (h *TraceHandler) GetBatchSummary(c *fiber.Ctx) error {
	summary, err := h.service.GetBatchSummary(c.Context(), c.Params("batchID"))
	if err != nil {
		return h.errorResponse(c, err, "Failed to read batch summary", rayID(c))
	}

	return c.Status(http.StatusOK).JSON(summary)
}

// VerifyEvent handles cross-role verification of a single event.
// @Summary Verify a trace event
// @Description Marks an event as vouched for by an actor whose role differs from the recorder's. Allowed once per event.
// @Produce json
// @Param eventID path string true "Event ID"
// @Success 200 {object} domain.TraceEvent
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /events/{eventID}/verify [post]
func (h *TraceHandler) VerifyEvent(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	event, err := h.service.VerifyEvent(c.Context(), c.Params("eventID"), actor.UserID, actor.Role)
	if err != nil {
		return h.errorResponse(c, err, "Failed to verify event", rayID)
	}

	return c.Status(http.StatusOK).JSON(event)
}

// errorResponse maps service errors to HTTP statuses.
func (h *TraceHandler) errorResponse(c *fiber.Ctx, err error, logMsg, rayID string) error {
	logger.Get().Error(logMsg,
		zap.String("ray_id", rayID),
		zap.Error(err),
	)

	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyVerified):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrEventNotFound):
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
