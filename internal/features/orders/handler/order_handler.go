package handler

import (
	"errors"
	"net/http"
	"time"

	"plantain-trace/internal/core/identity"
	"plantain-trace/internal/core/logger"
	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/ports"
	"plantain-trace/internal/features/orders/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders and deliveries.
type OrderHandler struct {
	// service is the OrderService instance.
	service *service.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s *service.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// deliveryRequest carries the delivery details of a consumer order.
type deliveryRequest struct {
	// Mode is the delivery mode (PICKUP, STANDARD, EXPRESS, SAME_DAY).
	Mode string `json:"mode"`
	// Address is the delivery address. Required unless the mode is PICKUP.
	Address string `json:"address"`
	// RecipientName is the person receiving the delivery.
	RecipientName string `json:"recipient_name"`
}

// createOrderRequest is the JSON body for placing an order.
type createOrderRequest struct {
	// Type is the order type (PROCESSING, DISTRIBUTION, CONSUMER).
	Type string `json:"type"`
	// SellerID is the user fulfilling the order.
	SellerID string `json:"seller_id"`
	// BatchID optionally ties the order to a traced batch.
	BatchID string `json:"batch_id"`
	// Items lists the order lines.
	Items []domain.OrderItem `json:"items"`
	// Quantity is the total unit count.
	Quantity int `json:"quantity"`
	// TotalAmount is the order total as a decimal string.
	TotalAmount decimal.Decimal `json:"total_amount"`
	// Delivery holds the delivery details of a consumer order.
	Delivery *deliveryRequest `json:"delivery,omitempty"`
}

func (r createOrderRequest) toInput() service.CreateOrderInput {
	input := service.CreateOrderInput{
		Type:        r.Type,
		SellerID:    r.SellerID,
		BatchID:     r.BatchID,
		Items:       r.Items,
		Quantity:    r.Quantity,
		TotalAmount: r.TotalAmount,
	}
	if r.Delivery != nil {
		input.Delivery = &service.DeliveryInput{
			Mode:          r.Delivery.Mode,
			Address:       r.Delivery.Address,
			RecipientName: r.Delivery.RecipientName,
		}
	}
	return input
}

// CreateOrder handles placing a new order with the actor as buyer.
// @Summary Create an order
// @Description Places a new order. Consumer orders require delivery details and enter the delivery workflow.
// @Accept json
// @Produce json
// @Param body body createOrderRequest true "Order payload"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	order, err := h.service.CreateOrder(c.Context(), actor.UserID, req.toInput())
	if err != nil {
		return h.errorResponse(c, err, "Failed to create order", rayID)
	}

	return c.Status(http.StatusCreated).JSON(order)
}

// GetOrder handles reading a single order.
// @Summary Get an order
// @Description Returns an order. Only the buyer or seller may read it.
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	order, err := h.service.GetOrder(c.Context(), c.Params("id"), actor.UserID)
	if err != nil {
		return h.errorResponse(c, err, "Failed to read order", rayID)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// ListOrders handles listing the actor's orders.
// @Summary List orders
// @Description Returns every order where the actor is buyer or seller.
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	orders, err := h.service.ListOrders(c.Context(), actor.UserID)
	if err != nil {
		return h.errorResponse(c, err, "Failed to list orders", rayID)
	}

	return c.Status(http.StatusOK).JSON(orders)
}

// transitionRequest is the JSON body for advancing an order.
type transitionRequest struct {
	// Status is the target order status.
	Status string `json:"status"`
	// TrackingNumber is required when shipping.
	TrackingNumber string `json:"tracking_number,omitempty"`
	// EstimatedDelivery is required when shipping.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Transition handles advancing an order through its state machine.
// @Summary Transition an order
// @Description Advances the order to the given status. Only the fulfilling party may transition, and shipping requires tracking data.
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body transitionRequest true "Transition payload"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/transition [post]
func (h *OrderHandler) Transition(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	order, err := h.service.Transition(c.Context(), c.Params("id"), actor.UserID, actor.Role, req.Status, service.TransitionInput{
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		return h.errorResponse(c, err, "Failed to transition order", rayID)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// advanceDeliveryRequest is the JSON body for advancing a delivery.
type advanceDeliveryRequest struct {
	// Status is the target delivery status.
	Status string `json:"status"`
	// Carrier optionally records the shipping carrier when handing over.
	Carrier string `json:"carrier,omitempty"`
	// TrackingNumber optionally records the carrier tracking identifier.
	TrackingNumber string `json:"tracking_number,omitempty"`
	// EstimatedDelivery optionally records the promised delivery date.
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	// Notes optionally annotates the change (e.g. a failure reason).
	Notes string `json:"notes,omitempty"`
}

// AdvanceDelivery handles moving a consumer delivery forward.
// @Summary Advance a delivery
// @Description Advances the consumer order's delivery status. Only the seller side may advance.
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param body body advanceDeliveryRequest true "Delivery payload"
// @Success 200 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/delivery/advance [post]
func (h *OrderHandler) AdvanceDelivery(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req advanceDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	order, err := h.service.AdvanceDelivery(c.Context(), c.Params("id"), actor.UserID, actor.Role, req.Status, service.AdvanceDeliveryInput{
		Carrier:           req.Carrier,
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
		Notes:             req.Notes,
	})
	if err != nil {
		return h.errorResponse(c, err, "Failed to advance delivery", rayID)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// ConfirmDelivery handles the buyer's delivery acknowledgement.
// @Summary Confirm a delivery
// @Description Marks the consumer order delivered. Buyer only; repeat calls succeed without change.
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/delivery/confirm [post]
func (h *OrderHandler) ConfirmDelivery(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	order, err := h.service.ConfirmDelivery(c.Context(), c.Params("id"), actor.UserID)
	if err != nil {
		return h.errorResponse(c, err, "Failed to confirm delivery", rayID)
	}

	return c.Status(http.StatusOK).JSON(order)
}

// paymentCallbackRequest is the JSON body the payment gateway posts after a
// successful charge.
type paymentCallbackRequest struct {
	// PaymentRef is the gateway's reference for the charge. Idempotency key.
	PaymentRef string `json:"payment_ref"`
	// Order is the order to place for the paid amount.
	Order createOrderRequest `json:"order"`
}

// PaymentCallback handles order creation from a successful payment.
// @Summary Payment callback
// @Description Places an order after a successful payment. A payment reference that already produced an order is rejected.
// @Accept json
// @Produce json
// @Param body body paymentCallbackRequest true "Callback payload"
// @Success 201 {object} domain.Order
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments/callback [post]
func (h *OrderHandler) PaymentCallback(c *fiber.Ctx) error {
	rayID := rayID(c)

	actor, ok := identity.FromCtx(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{Message: "Unresolved actor", RayID: rayID})
	}

	var req paymentCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Message: "Invalid request body", RayID: rayID})
	}

	order, err := h.service.CreateOrderFromPayment(c.Context(), actor.UserID, req.PaymentRef, req.Order.toInput())
	if err != nil {
		return h.errorResponse(c, err, "Failed to register payment", rayID)
	}

	return c.Status(http.StatusCreated).JSON(order)
}

// errorResponse maps service errors to HTTP statuses.
func (h *OrderHandler) errorResponse(c *fiber.Ctx, err error, logMsg, rayID string) error {
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
	case errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrOrderNotFound):
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
