package handlers

import (
	"log/slog"

	"toko/internal/middleware"
	"toko/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CartHandler exposes the caller's own cart.
type CartHandler struct {
	carts    repositories.CartRepository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCartHandler(carts repositories.CartRepository, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, validate: validator.New(), logger: logger}
}

func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/items", h.HandleAddItem)
	cartRoutes.Patch("/items/:variantId", h.HandleSetQuantity)
}

type AddCartItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.carts.GetCart(c.UserContext(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		return respondError(c, h.logger, "Could not load cart", err)
	}
	return c.JSON(cart)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddCartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	item, err := h.carts.AddItem(c.UserContext(), middleware.IdentityFrom(c).UserID, req.VariantID, req.Quantity)
	if err != nil {
		return respondError(c, h.logger, "Could not add item", err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleSetQuantity overwrites an item's quantity; zero removes it.
func (h *CartHandler) HandleSetQuantity(c *fiber.Ctx) error {
	var req SetQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.carts.SetQuantity(c.UserContext(), middleware.IdentityFrom(c).UserID, c.Params("variantId"), *req.Quantity); err != nil {
		return respondError(c, h.logger, "Could not update item", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
