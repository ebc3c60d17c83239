package handlers

import (
	"fmt"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes registers the order routes. The router must already require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Get("/all", middleware.AdminOnly(), h.HandleListAllOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Get("/:id/receipt", h.HandleReceipt)
	orderRoutes.Put("/:id", h.HandleUpdateOrder)
	orderRoutes.Post("/:id/pay", h.HandlePayOrder)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Patch("/:id/status", middleware.AdminOnly(), h.HandleSetOrderStatus)
	orderRoutes.Delete("/:id", h.HandleDeleteOrder)
}

// OrderItemRequest is one requested line.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderRequest is the body of PUT /orders/:id. Omitted items leave the order unchanged.
type UpdateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"omitempty,min=1,dive"`
}

// StatusRequest is the body of PATCH /orders/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PAID PROCESSING SHIPPED DELIVERED COMPLETED CANCELLED"`
}

func toItemRequests(items []OrderItemRequest) []services.ItemRequest {
	if items == nil {
		return nil
	}
	out := make([]services.ItemRequest, 0, len(items))
	for _, it := range items {
		out = append(out, services.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func pageFrom(c *fiber.Ctx) repositories.Page {
	return repositories.Page{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 10),
	}.Normalize()
}

// HandleListOrders lists the caller's orders.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	page, err := h.service.ListOrders(c.UserContext(), middleware.CallerFrom(c), pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"orders": page.Orders,
		"meta": fiber.Map{
			"total":      page.Total,
			"page":       page.Page,
			"limit":      page.Limit,
			"totalPages": page.TotalPages,
		},
	})
}

func (h *OrderHandler) HandleListAllOrders(c *fiber.Ctx) error {
	page, err := h.service.ListAllOrders(c.UserContext(), middleware.CallerFrom(c), pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"orders": page.Orders,
		"meta": fiber.Map{
			"total":      page.Total,
			"page":       page.Page,
			"limit":      page.Limit,
			"totalPages": page.TotalPages,
		},
	})
}

func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleReceipt(c *fiber.Ctx) error {
	receipt, err := h.service.Receipt(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(receipt)
}

// HandleCreateOrder creates a PENDING order for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	order, err := h.service.CreateOrder(c.UserContext(), middleware.CallerFrom(c).UserID, toItemRequests(req.Items))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) HandleUpdateOrder(c *fiber.Ctx) error {
	var req UpdateOrderRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	order, err := h.service.UpdateOrder(c.UserContext(), c.Params("id"), middleware.CallerFrom(c), toItemRequests(req.Items))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandlePayOrder(c *fiber.Ctx) error {
	order, err := h.service.PayOrder(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"), middleware.CallerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleSetOrderStatus is the administrative status change.
func (h *OrderHandler) HandleSetOrderStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	order, err := h.service.SetOrderStatus(c.UserContext(), c.Params("id"), middleware.CallerFrom(c), models.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if err := h.service.DeleteOrder(c.UserContext(), orderID, middleware.CallerFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Order %s deleted successfully", orderID)})
}
