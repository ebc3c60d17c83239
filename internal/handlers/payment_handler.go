package handlers

import (
	"errors"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/payments"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

const stripeSignatureHeader = "Stripe-Signature"

// PaymentHandler exposes payment initiation, polling and provider callbacks.
type PaymentHandler struct {
	service *services.PaymentService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// RegisterCallbackRoutes registers the unauthenticated provider notification endpoint.
func (h *PaymentHandler) RegisterCallbackRoutes(router fiber.Router) {
	router.Post("/payments/:provider/callback", h.HandleCallback)
}

// RegisterRoutes registers the caller-facing payment routes. The router must require authentication.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders/:id/payments")
	orderRoutes.Get("/", h.HandleListPayments)
	orderRoutes.Post("/", h.HandleInitiate)
	orderRoutes.Post("/verify", h.HandleVerify)
	orderRoutes.Post("/simulate", h.HandleSimulate)
}

// InitiatePaymentRequest is the body of POST /orders/:id/payments.
type InitiatePaymentRequest struct {
	Provider      string `json:"provider" validate:"required,oneof=stripe payway"`
	Currency      string `json:"currency" validate:"omitempty,oneof=USD KHR usd khr"`
	PaymentOption string `json:"payment_option" validate:"omitempty,max=50"`
}

func (h *PaymentHandler) HandleInitiate(c *fiber.Ctx) error {
	var req InitiatePaymentRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	payload, err := h.service.InitiatePayment(c.UserContext(), c.Params("id"), middleware.CallerFrom(c), req.Provider,
		payments.InitiateOptions{Currency: req.Currency, PaymentOption: req.PaymentOption})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payload)
}

func (h *PaymentHandler) HandleVerify(c *fiber.Ctx) error {
	order, err := h.service.VerifyPayment(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *PaymentHandler) HandleSimulate(c *fiber.Ctx) error {
	order, err := h.service.SimulatePayment(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *PaymentHandler) HandleListPayments(c *fiber.Ctx) error {
	records, err := h.service.Payments(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(records)
}

// HandleCallback receives provider notifications. The raw body is passed through
// untouched because signatures are computed over the exact bytes sent.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	provider := strings.ToLower(strings.TrimSpace(c.Params("provider")))
	signature := c.Get(payments.PaywaySignatureHeader)
	if provider == models.ProviderStripe {
		signature = c.Get(stripeSignatureHeader)
	}

	// Body() is only valid for the lifetime of the handler; copy it.
	raw := append([]byte(nil), c.Body()...)
	result, err := h.service.HandleCallback(c.UserContext(), provider, raw, signature)
	if errors.Is(err, apperrors.ErrInvalidSignature) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"received": false})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
