package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"toko/internal/export"
	"toko/internal/middleware"
	"toko/internal/models"
	"toko/internal/repositories"
	"toko/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	exporter *services.ExportService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, exporter *services.ExportService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		exporter: exporter,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes. Static paths come before /:id.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/total", h.HandlePreviewTotals)
	orderRoutes.Post("/payment/verification", h.HandleVerifyPayment)
	orderRoutes.Post("/export", middleware.AdminOnly(), h.HandleExport)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/cancel", h.HandleRequestCancellation)
	orderRoutes.Put("/:id/cancellation", middleware.AdminOnly(), h.HandleResolveCancellation)
}

// HandlePreviewTotals prices the caller's cart without reserving anything.
func (h *OrderHandler) HandlePreviewTotals(c *fiber.Ctx) error {
	totals, err := h.service.PreviewTotals(c.UserContext(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		return respondError(c, h.logger, "Could not calculate order total", err)
	}
	return c.JSON(totals)
}

type CreateOrderRequest struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
	BillingAddressID  string `json:"billing_address_id" validate:"required,uuid"`
}

// HandleCreateOrder checks out the caller's cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	res, err := h.service.CreateOrder(c.UserContext(), middleware.IdentityFrom(c).UserID, req.ShippingAddressID, req.BillingAddressID)
	if err != nil {
		return respondError(c, h.logger, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":   res.Order,
		"payment": res.Intent,
	})
}

// VerifyPaymentRequest is what the checkout widget posts back after payment.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
}

func (h *OrderHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	verified, order, err := h.service.VerifyPayment(c.UserContext(), req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		return respondError(c, h.logger, "Could not verify payment", err)
	}
	return c.JSON(fiber.Map{
		"verified": verified,
		"order":    order,
	})
}

func listQueryFrom(c *fiber.Ctx) (services.ListOrdersQuery, error) {
	q := services.ListOrdersQuery{
		Page:  c.QueryInt("page", services.DefaultPage),
		Limit: c.QueryInt("limit", services.DefaultLimit),
	}
	if id := c.Query("id"); id != "" {
		q.Filters = append(q.Filters, repositories.ByOrderID(id))
	}
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseOrderStatus(s)
		if !ok {
			return q, fmt.Errorf("unknown status %q", s)
		}
		q.Filters = append(q.Filters, repositories.ByStatus(status))
	}
	if p := c.Query("payment"); p != "" {
		pay, ok := models.ParsePaymentStatus(p)
		if !ok {
			return q, fmt.Errorf("unknown payment %q", p)
		}
		q.Filters = append(q.Filters, repositories.ByPayment(pay))
	}
	if u := c.Query("user_id"); u != "" {
		q.Filters = append(q.Filters, repositories.ByUser(u))
	}
	return q, nil
}

// HandleGetOrders lists orders. Customers only ever see their own.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	q, err := listQueryFrom(c)
	if err != nil {
		return badRequest(c, "Invalid filter", err)
	}
	page, err := h.service.ListOrders(c.UserContext(), q, middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(page)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleRequestCancellation(c *fiber.Ctx) error {
	order, err := h.service.RequestCancellation(c.UserContext(), c.Params("id"), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not request cancellation", err)
	}
	return c.JSON(order)
}

type ResolveCancellationRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm reject"`
}

func (h *OrderHandler) HandleResolveCancellation(c *fiber.Ctx) error {
	var req ResolveCancellationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	order, err := h.service.ResolveCancellation(c.UserContext(), c.Params("id"), services.CancellationAction(req.Action), middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, "Could not resolve cancellation", err)
	}
	return c.JSON(order)
}

// HandleExport confirms one batch of paid orders and returns it as CSV.
func (h *OrderHandler) HandleExport(c *fiber.Ctx) error {
	rows, err := h.exporter.BulkConfirmPending(c.UserContext(), c.QueryInt("limit", h.exporter.BatchSize()))
	if err != nil {
		return respondError(c, h.logger, "Could not export orders", err)
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		// the batch has already committed, so keep the order ids for a manual re-export
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.OrderID)
		}
		h.logger.Error("failed to render export", "order_ids", ids, "error", err)
		return respondError(c, h.logger, "Could not render export", err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=orders-%s.csv", time.Now().UTC().Format("20060102T150405Z")))
	return c.Send(buf.Bytes())
}
