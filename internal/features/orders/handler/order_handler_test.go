package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"plantain-trace/internal/core/authz"
	"plantain-trace/internal/core/identity"
	"plantain-trace/internal/features/orders/adapters"
	"plantain-trace/internal/features/orders/domain"
	"plantain-trace/internal/features/orders/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	svc := service.NewOrderService(adapters.NewMemoryOrderStore(), authz.NewPolicy(), nil)
	handler := NewOrderHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Use(identity.Middleware())

	app.Post("/orders", handler.CreateOrder)
	app.Get("/orders", handler.ListOrders)
	app.Get("/orders/:id", handler.GetOrder)
	app.Post("/orders/:id/transition", handler.Transition)
	app.Post("/orders/:id/delivery/advance", handler.AdvanceDelivery)
	app.Post("/orders/:id/delivery/confirm", handler.ConfirmDelivery)
	app.Post("/payments/callback", handler.PaymentCallback)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, actorID, role, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", actorID)
	req.Header.Set("X-Actor-Role", role)

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

// TestOrderHandler_CreateAndGet verifies order creation and party-only reads.
func TestOrderHandler_CreateAndGet(t *testing.T) {
	app := newTestApp()

	body := `{"type":"PROCESSING","seller_id":"proc-1","batch_id":"B1","quantity":100,"total_amount":"250.00"}`
	resp := doJSON(t, app, "POST", "/orders", "dist-9", "DISTRIBUTOR", body)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "dist-9", order.BuyerID)

	resp = doJSON(t, app, "GET", "/orders/"+order.ID, "proc-1", "PROCESSOR", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/orders/"+order.ID, "stranger", "CONSUMER", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/orders/ghost", "proc-1", "PROCESSOR", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// TestOrderHandler_CreateValidation verifies bad payloads map to 400.
func TestOrderHandler_CreateValidation(t *testing.T) {
	app := newTestApp()

	body := `{"type":"CONSUMER","seller_id":"dist-1","quantity":1,"total_amount":"10.00"}`
	resp := doJSON(t, app, "POST", "/orders", "consumer-1", "CONSUMER", body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "test-ray-id", errResp.RayID)
}

// TestOrderHandler_Transition verifies the state machine over HTTP, including
// the tracking-data rule and conflict mapping.
func TestOrderHandler_Transition(t *testing.T) {
	app := newTestApp()

	body := `{"type":"PROCESSING","seller_id":"proc-1","quantity":10,"total_amount":"99.00"}`
	resp := doJSON(t, app, "POST", "/orders", "dist-9", "DISTRIBUTOR", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))

	// Out of sequence.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/transition", "proc-1", "PROCESSOR",
		`{"status":"READY"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// Wrong party.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/transition", "proc-2", "PROCESSOR",
		`{"status":"CONFIRMED"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	for _, status := range []string{"CONFIRMED", "PROCESSING", "READY"} {
		resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/transition", "proc-1", "PROCESSOR",
			`{"status":"`+status+`"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	// Shipping without tracking data.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/transition", "proc-1", "PROCESSOR",
		`{"status":"SHIPPED"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/transition", "proc-1", "PROCESSOR",
		`{"status":"SHIPPED","tracking_number":"TRK-1","estimated_delivery":"2026-09-05T12:00:00Z"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var shipped domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shipped))
	assert.Equal(t, domain.OrderStatusShipped, shipped.Status)
	assert.Equal(t, "TRK-1", shipped.TrackingNumber)
}

// TestOrderHandler_DeliveryFlow verifies the consumer delivery endpoints.
func TestOrderHandler_DeliveryFlow(t *testing.T) {
	app := newTestApp()

	body := `{"type":"CONSUMER","seller_id":"dist-1","quantity":2,"total_amount":"30.00",` +
		`"delivery":{"mode":"STANDARD","address":"Calle 10 #4-21","recipient_name":"Ana"}}`
	resp := doJSON(t, app, "POST", "/orders", "consumer-1", "CONSUMER", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	require.NotNil(t, order.Delivery)

	// Too early to confirm.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/delivery/confirm", "consumer-1", "CONSUMER", "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	for _, status := range []string{"CONFIRMED", "PROCESSING", "SHIPPED", "IN_TRANSIT", "OUT_FOR_DELIVERY"} {
		resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/delivery/advance", "dist-1", "DISTRIBUTOR",
			`{"status":"`+status+`"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	// Seller cannot confirm for the buyer.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/delivery/confirm", "dist-1", "DISTRIBUTOR", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/delivery/confirm", "consumer-1", "CONSUMER", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var delivered domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&delivered))
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status)

	// Idempotent repeat.
	resp = doJSON(t, app, "POST", "/orders/"+order.ID+"/delivery/confirm", "consumer-1", "CONSUMER", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

// TestOrderHandler_PaymentCallback verifies payment-driven creation and the
// duplicate-reference conflict.
func TestOrderHandler_PaymentCallback(t *testing.T) {
	app := newTestApp()

	body := `{"payment_ref":"pay_abc","order":{"type":"CONSUMER","seller_id":"dist-1","quantity":1,` +
		`"total_amount":"15.00","delivery":{"mode":"PICKUP"}}}`
	resp := doJSON(t, app, "POST", "/payments/callback", "consumer-1", "CONSUMER", body)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var order domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, "pay_abc", order.PaymentRef)

	resp = doJSON(t, app, "POST", "/payments/callback", "consumer-1", "CONSUMER", body)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

// TestOrderHandler_ListOrders verifies the actor-scoped listing.
func TestOrderHandler_ListOrders(t *testing.T) {
	app := newTestApp()

	body := `{"type":"PROCESSING","seller_id":"proc-1","quantity":5,"total_amount":"40.00"}`
	resp := doJSON(t, app, "POST", "/orders", "dist-9", "DISTRIBUTOR", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/orders", "proc-1", "PROCESSOR", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var orders []domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	assert.Len(t, orders, 1)

	resp = doJSON(t, app, "GET", "/orders", "stranger", "CONSUMER", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	orders = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	assert.Empty(t, orders)
}
