package handlers

import (
	"errors"
	"log/slog"
	"time"

	"toko/internal/middleware"
	"toko/internal/models"
	"toko/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// CatalogHandler exposes the catalog. Reads are open to any signed-in user, writes are staff only.
type CatalogHandler struct {
	catalog  repositories.CatalogRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCatalogHandler(catalog repositories.CatalogRepository, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the catalog routes with the Fiber app.
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products/:id", h.HandleGetProduct)
	router.Get("/variants/:id", h.HandleGetVariant)

	admin := middleware.AdminOnly()
	router.Post("/categories", admin, h.HandleCreateCategory)
	router.Post("/categories/:id/discounts", admin, h.HandleCreateCategoryDiscount)
	router.Post("/products", admin, h.HandleCreateProduct)
	router.Post("/products/:id/discounts", admin, h.HandleCreateProductDiscount)
	router.Delete("/products/:id", admin, h.HandleDeleteProduct)
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type VariantRequest struct {
	SKU   string          `json:"sku" validate:"required,max=64"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock" validate:"gte=0"`
}

type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description string           `json:"description" validate:"max=500"`
	CategoryID  string           `json:"category_id" validate:"required,uuid"`
	Variants    []VariantRequest `json:"variants" validate:"required,min=1,dive"`
}

type DiscountRequest struct {
	Percent   decimal.Decimal `json:"discount"`
	Type      string          `json:"type" validate:"omitempty,oneof=REGULAR FLASH"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   time.Time       `json:"valid_to"`
}

func (r DiscountRequest) terms() (models.DiscountTerms, error) {
	if r.ValidFrom.IsZero() || r.ValidTo.IsZero() {
		return models.DiscountTerms{}, errors.New("valid_from and valid_to are required")
	}
	return models.DiscountTerms{
		Percent:   r.Percent,
		Type:      models.SaleType(r.Type),
		ValidFrom: r.ValidFrom.UTC(),
		ValidTo:   r.ValidTo.UTC(),
	}, nil
}

func (h *CatalogHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

func (h *CatalogHandler) HandleGetVariant(c *fiber.Ctx) error {
	variant, err := h.catalog.GetVariant(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve variant", err)
	}
	return c.JSON(variant)
}

func (h *CatalogHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var req CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	category := models.Category{Name: req.Name}
	if err := h.catalog.CreateCategory(c.UserContext(), &category); err != nil {
		return respondError(c, h.logger, "Could not create category", err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// HandleCreateProduct creates a product and its variants with their opening stock.
func (h *CatalogHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	product := models.Product{Name: req.Name, Description: req.Description, CategoryID: req.CategoryID}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{SKU: v.SKU, Price: v.Price, Stock: v.Stock})
	}
	if err := h.catalog.CreateProduct(c.UserContext(), &product); err != nil {
		return respondError(c, h.logger, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *CatalogHandler) parseDiscount(c *fiber.Ctx) (models.DiscountTerms, error) {
	var req DiscountRequest
	if err := c.BodyParser(&req); err != nil {
		return models.DiscountTerms{}, err
	}
	if err := h.validate.Struct(req); err != nil {
		return models.DiscountTerms{}, err
	}
	return req.terms()
}

func (h *CatalogHandler) HandleCreateProductDiscount(c *fiber.Ctx) error {
	terms, err := h.parseDiscount(c)
	if err != nil {
		return badRequest(c, "Invalid discount", err)
	}
	if _, err := h.catalog.GetProduct(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "Could not create discount", err)
	}
	discount := models.ProductDiscount{ProductID: c.Params("id"), DiscountTerms: terms}
	if err := h.catalog.CreateProductDiscount(c.UserContext(), &discount); err != nil {
		return respondError(c, h.logger, "Could not create discount", err)
	}
	return c.Status(fiber.StatusCreated).JSON(discount)
}

func (h *CatalogHandler) HandleCreateCategoryDiscount(c *fiber.Ctx) error {
	terms, err := h.parseDiscount(c)
	if err != nil {
		return badRequest(c, "Invalid discount", err)
	}
	discount := models.CategoryDiscount{CategoryID: c.Params("id"), DiscountTerms: terms}
	if err := h.catalog.CreateCategoryDiscount(c.UserContext(), &discount); err != nil {
		return respondError(c, h.logger, "Could not create discount", err)
	}
	return c.Status(fiber.StatusCreated).JSON(discount)
}

// HandleDeleteProduct soft-deletes a product. Existing orders keep their snapshot.
func (h *CatalogHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.catalog.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, h.logger, "Could not delete product", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
