package handlers

import (
	"fmt"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	service *services.ProductService
}

func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes registers catalog reads for any authenticated caller and writes for administrators.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.HandleGetProduct)
	productRoutes.Post("/", middleware.AdminOnly(), h.HandleCreateProduct)
	productRoutes.Put("/:id", middleware.AdminOnly(), h.HandleUpdateProduct)
	productRoutes.Post("/:id/restock", middleware.AdminOnly(), h.HandleRestock)
	productRoutes.Delete("/:id", middleware.AdminOnly(), h.HandleDeleteProduct)
}

// ProductRequest is the body of product create and update requests. Stock is only read on create.
type ProductRequest struct {
	Name            string          `json:"name" validate:"required,min=3,max=100"`
	Description     string          `json:"description" validate:"omitempty,max=500"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discount_percent" validate:"gte=0,lte=100"`
	Stock           int             `json:"stock" validate:"gte=0"`
}

func (r ProductRequest) toModel(id string) *models.Product {
	return &models.Product{
		ID:              id,
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price.Round(2),
		DiscountPercent: r.DiscountPercent,
		Stock:           r.Stock,
	}
}

func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	product := req.toModel("")
	if err := h.service.CreateProduct(c.UserContext(), product); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	product := req.toModel(c.Params("id"))
	if err := h.service.UpdateProduct(c.UserContext(), product); err != nil {
		return respondError(c, err)
	}
	updated, err := h.service.GetProductByID(c.UserContext(), product.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// RestockRequest is the body of POST /products/:id/restock.
type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *ProductHandler) HandleRestock(c *fiber.Ctx) error {
	var req RestockRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	product, err := h.service.Restock(c.UserContext(), c.Params("id"), req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Product %s deleted successfully", id)})
}
