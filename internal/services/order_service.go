package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"toko/internal/apperr"
	"toko/internal/models"
	"toko/internal/payment"
	"toko/internal/pricing"
	"toko/internal/repositories"
	"toko/pkg/redisx"
)

// OrderConfig holds the pricing and gateway settings of the order lifecycle.
type OrderConfig struct {
	GSTRate        decimal.Decimal
	ShippingCharge decimal.Decimal
	Currency       string
	RefundSpeed    string
	GatewayTimeout time.Duration
}

// OrderDeps are the collaborators of OrderService. Publisher and Guard may be nil.
type OrderDeps struct {
	Store     repositories.TxRunner
	Orders    repositories.OrderRepository
	Carts     repositories.CartRepository
	Addresses repositories.AddressRepository
	Ledger    repositories.StockLedger
	Gateway   payment.Gateway
	Verifier  *payment.Verifier
	Publisher EventPublisher
	Guard     CheckoutGuard
	Logger    *slog.Logger
	Now       func() time.Time
}

// OrderService drives an order from checkout through payment to cancellation. Every state
// change is one store transaction that locks the order row first.
type OrderService struct {
	store     repositories.TxRunner
	orders    repositories.OrderRepository
	carts     repositories.CartRepository
	addresses repositories.AddressRepository
	ledger    repositories.StockLedger
	gateway   payment.Gateway
	verifier  *payment.Verifier
	publisher EventPublisher
	guard     CheckoutGuard
	logger    *slog.Logger
	now       func() time.Time
	cfg       OrderConfig
}

// NewOrderService creates a new OrderService.
func NewOrderService(deps OrderDeps, cfg OrderConfig) *OrderService {
	if deps.Guard == nil {
		deps.Guard = NoopCheckoutGuard{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &OrderService{
		store:     deps.Store,
		orders:    deps.Orders,
		carts:     deps.Carts,
		addresses: deps.Addresses,
		ledger:    deps.Ledger,
		gateway:   deps.Gateway,
		verifier:  deps.Verifier,
		publisher: deps.Publisher,
		guard:     deps.Guard,
		logger:    deps.Logger,
		now:       deps.Now,
		cfg:       cfg,
	}
}

// CreateOrderResult is the new order and the gateway intent the client pays against.
type CreateOrderResult struct {
	Order  *models.Order
	Intent payment.Intent
}

func requireID(name, id string) error {
	if id == "" {
		return apperr.Validation("%s is required", name)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("%s is not a valid id", name)
	}
	return nil
}

// PreviewTotals prices the user's cart as of now without touching stock.
func (s *OrderService) PreviewTotals(ctx context.Context, userID string) (pricing.CartTotals, error) {
	now := s.now()
	cart, err := s.carts.LoadPriceableCart(ctx, userID, now)
	if err != nil {
		return pricing.CartTotals{}, err
	}
	if cart.Empty() {
		return pricing.CartTotals{}, apperr.ErrEmptyCart
	}
	return pricing.PriceCart(cart.Lines, now, s.cfg.GSTRate, s.cfg.ShippingCharge), nil
}

// CreateOrder prices the cart, opens a payment intent and reserves stock for every line.
// Either every line is reserved and the order exists, or nothing was written. The cart is
// left intact until payment is verified.
func (s *OrderService) CreateOrder(ctx context.Context, userID, shippingAddrID, billingAddrID string) (*CreateOrderResult, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	if err := requireID("shipping address id", shippingAddrID); err != nil {
		return nil, err
	}
	if err := requireID("billing address id", billingAddrID); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, userID)
	switch {
	case errors.Is(err, redisx.ErrLocked):
		return nil, apperr.Precondition("a checkout is already in progress for this user")
	case err != nil:
		s.logger.Warn("checkout guard unavailable, continuing without it", "user_id", userID, "error", err)
	default:
		defer release()
	}

	for _, addrID := range []string{shippingAddrID, billingAddrID} {
		owned, err := s.addresses.IsOwnedBy(ctx, addrID, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, apperr.Unauthorized("address %s does not belong to the user", addrID)
		}
	}

	now := s.now()
	cart, err := s.carts.LoadPriceableCart(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, apperr.ErrEmptyCart
	}
	totals := pricing.PriceCart(cart.Lines, now, s.cfg.GSTRate, s.cfg.ShippingCharge)

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	intent, err := s.gateway.CreateIntent(gwCtx, pricing.MinorUnits(totals.TotalAmount), s.cfg.Currency)
	cancel()
	if err != nil {
		return nil, apperr.Gateway("create payment intent", err)
	}

	order := &models.Order{
		ID:                uuid.New().String(),
		UserID:            userID,
		ShippingAddressID: shippingAddrID,
		BillingAddressID:  billingAddrID,
		TotalAmount:       totals.TotalAmount,
		Status:            models.StatusPending,
		Payment:           models.PaymentDue,
		GatewayOrderID:    intent.GatewayOrderID,
		Items:             make([]models.OrderItem, 0, len(totals.ItemSubtotals)),
	}
	for _, pl := range totals.ItemSubtotals {
		order.Items = append(order.Items, models.OrderItem{
			VariantID:      pl.VariantID,
			Quantity:       pl.Quantity,
			UnitPrice:      pl.UnitPrice,
			DiscountAmount: pl.DiscountAmount,
			LineSubtotal:   pl.LineSubtotal,
		})
	}

	err = s.store.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range order.Items {
			if err := s.ledger.Reserve(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		return s.orders.Create(ctx, tx, order)
	})
	if err != nil {
		// the intent is left unpaid and expires on the gateway side
		s.logger.Info("order creation rolled back", "user_id", userID, "gateway_order_id", intent.GatewayOrderID, "error", err)
		return nil, err
	}

	s.logger.Info("order created", "order_id", order.ID, "user_id", userID, "total", order.TotalAmount.String())
	publish(s.publisher, s.logger, s.event(EventOrderCreated, order))
	return &CreateOrderResult{Order: order, Intent: intent}, nil
}

func (s *OrderService) releaseLines(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		if err := s.ledger.Release(ctx, tx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) transition(ctx context.Context, tx *gorm.DB, order *models.Order, to repositories.OrderState) error {
	from := repositories.OrderState{Status: order.Status, Payment: order.Payment}
	if from.Status != to.Status && !models.CanTransition(from.Status, to.Status) {
		return apperr.Precondition("order %s cannot move from %s to %s", order.ID, from.Status, to.Status)
	}
	if from.Payment != to.Payment && !models.CanTransitionPayment(from.Payment, to.Payment) {
		return apperr.Precondition("order %s payment cannot move from %s to %s", order.ID, from.Payment, to.Payment)
	}
	if err := s.orders.UpdateState(ctx, tx, order.ID, from, to); err != nil {
		return err
	}
	order.Status, order.Payment = to.Status, to.Payment
	return nil
}

// VerifyPayment settles the gateway callback for an order. A valid signature marks the
// payment successful and empties the cart; an invalid one fails the payment and returns
// the reserved stock. Replays are no-ops. A genuine payment for an order whose payment
// already failed is recorded and refunded.
func (s *OrderService) VerifyPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (bool, *models.Order, error) {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false, nil, apperr.Validation("gateway order id and payment id are required")
	}
	if signature == "" {
		return false, nil, apperr.Validation("signature is required")
	}
	verified := s.verifier.Verify(gatewayOrderID, gatewayPaymentID, signature)

	var (
		order    *models.Order
		changed  bool
		orphaned bool
	)
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.LockByGatewayOrderID(ctx, tx, gatewayOrderID)
		if err != nil {
			return err
		}
		if verified && order.Payment == models.PaymentFailed && order.GatewayPaymentID == "" {
			// the customer paid for an order that no longer holds stock
			orphaned = true
			return s.refundOrphan(ctx, tx, order, gatewayPaymentID)
		}
		if order.Payment != models.PaymentDue {
			return nil
		}
		changed = true

		to := repositories.OrderState{Status: order.Status, Payment: models.PaymentFailed}
		if verified {
			to.Payment = models.PaymentSuccessful
		}
		if err := s.transition(ctx, tx, order, to); err != nil {
			return err
		}

		if !verified {
			return s.releaseLines(ctx, tx, order)
		}
		if err := s.orders.RecordPayment(ctx, tx, order.ID, gatewayPaymentID); err != nil {
			return err
		}
		order.GatewayPaymentID = gatewayPaymentID
		_, err = s.carts.ClearTx(ctx, tx, order.UserID)
		return err
	})
	if err != nil {
		s.logIfConsistency(err, "payment verification", gatewayOrderID)
		return false, nil, err
	}

	if orphaned {
		s.logger.Error("payment captured for a failed order, refunded", "order_id", order.ID, "status", order.Status, "payment_id", gatewayPaymentID)
		publish(s.publisher, s.logger, s.event(EventPaymentOrphaned, order))
		return false, order, nil
	}
	if !changed {
		s.logger.Info("payment already settled, ignoring callback", "order_id", order.ID, "payment", order.Payment)
		return order.Payment == models.PaymentSuccessful && verified, order, nil
	}
	if verified {
		s.logger.Info("payment verified", "order_id", order.ID)
		publish(s.publisher, s.logger, s.event(EventPaymentSuccessful, order))
	} else {
		s.logger.Warn("payment signature mismatch, stock released", "order_id", order.ID)
		publish(s.publisher, s.logger, s.event(EventPaymentFailed, order))
	}
	return verified, order, nil
}

// refundOrphan records a genuine payment that arrived after the order's payment had failed
// and returns the money. The refund is the last step so a gateway failure rolls back the
// record and the callback can be retried.
func (s *OrderService) refundOrphan(ctx context.Context, tx *gorm.DB, order *models.Order, gatewayPaymentID string) error {
	if err := s.transition(ctx, tx, order, repositories.OrderState{Status: order.Status, Payment: models.PaymentRefunded}); err != nil {
		return err
	}
	if err := s.orders.RecordPayment(ctx, tx, order.ID, gatewayPaymentID); err != nil {
		return err
	}
	order.GatewayPaymentID = gatewayPaymentID
	return s.refund(ctx, gatewayPaymentID)
}

// RequestCancellation lets the owner ask for an order to be cancelled.
func (s *OrderService) RequestCancellation(ctx context.Context, orderID string, who Identity) (*models.Order, error) {
	if err := requireID("order id", orderID); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != who.UserID {
			return apperr.Unauthorized("order %s belongs to another user", orderID)
		}
		if order.Status != models.StatusPending && order.Status != models.StatusOrdered {
			return apperr.Precondition("order %s is %s and cannot be cancelled", orderID, order.Status)
		}
		return s.transition(ctx, tx, order, repositories.OrderState{
			Status:  models.StatusPendingCancellation,
			Payment: order.Payment,
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.publisher, s.logger, s.event(EventCancellationRequested, order))
	return order, nil
}

// CancellationAction is the admin's decision on a cancellation request.
type CancellationAction string

const (
	ActionConfirm CancellationAction = "confirm"
	ActionReject  CancellationAction = "reject"
)

// ResolveCancellation confirms or rejects a pending cancellation. Confirming a paid order
// refunds it through the gateway before commit; a failed refund rolls everything back and
// the order stays PENDING_CANCELLATION for a retry.
func (s *OrderService) ResolveCancellation(ctx context.Context, orderID string, action CancellationAction, who Identity) (*models.Order, error) {
	if !who.IsAdmin() {
		return nil, apperr.Unauthorized("only staff can resolve cancellations")
	}
	if action != ActionConfirm && action != ActionReject {
		return nil, apperr.Validation("action must be %q or %q", ActionConfirm, ActionReject)
	}
	if err := requireID("order id", orderID); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusPendingCancellation {
			return apperr.Precondition("order %s is %s, not awaiting cancellation", orderID, order.Status)
		}

		if action == ActionReject {
			return s.transition(ctx, tx, order, repositories.OrderState{Status: models.StatusOrdered, Payment: order.Payment})
		}

		switch order.Payment {
		case models.PaymentSuccessful:
			if order.GatewayPaymentID == "" {
				return apperr.Consistency("order %s is paid but has no payment reference", orderID)
			}
			paymentRef := order.GatewayPaymentID
			if err := s.transition(ctx, tx, order, repositories.OrderState{Status: models.StatusCancelled, Payment: models.PaymentRefunded}); err != nil {
				return err
			}
			if err := s.releaseLines(ctx, tx, order); err != nil {
				return err
			}
			// last step, so only the commit itself can fail after money has moved
			return s.refund(ctx, paymentRef)
		case models.PaymentDue:
			if err := s.transition(ctx, tx, order, repositories.OrderState{Status: models.StatusCancelled, Payment: models.PaymentFailed}); err != nil {
				return err
			}
			return s.releaseLines(ctx, tx, order)
		case models.PaymentFailed, models.PaymentRefunded:
			// stock went back when the payment failed
			return s.transition(ctx, tx, order, repositories.OrderState{Status: models.StatusCancelled, Payment: order.Payment})
		default:
			return apperr.Consistency("order %s awaiting cancellation has payment %s", orderID, order.Payment)
		}
	})
	if err != nil {
		s.logIfConsistency(err, "resolve cancellation", orderID)
		return nil, err
	}

	if action == ActionReject {
		s.logger.Info("cancellation rejected", "order_id", orderID)
		publish(s.publisher, s.logger, s.event(EventCancellationRejected, order))
	} else {
		s.logger.Info("order cancelled", "order_id", orderID, "payment", order.Payment)
		publish(s.publisher, s.logger, s.event(EventOrderCancelled, order))
	}
	return order, nil
}

func (s *OrderService) refund(ctx context.Context, paymentRef string) error {
	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	if err := s.gateway.Refund(gwCtx, paymentRef, payment.RefundOptions{Speed: s.cfg.RefundSpeed}); err != nil {
		return apperr.Gateway("refund payment", err)
	}
	return nil
}

// GetOrder returns an order with its details. Non staff callers only see their own orders.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, who Identity) (*models.Order, error) {
	if err := requireID("order id", orderID); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && order.UserID != who.UserID {
		return nil, apperr.NotFound("order %s", orderID)
	}
	return order, nil
}

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100
)

// ListOrdersQuery selects a page of orders.
type ListOrdersQuery struct {
	Page    int
	Limit   int
	Filters []repositories.OrderFilter
}

// OrderPage is one page of a listing.
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Count      int64          `json:"count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int64          `json:"total_pages"`
}

// ListOrders returns a page of orders matching every filter. Non staff callers are always
// restricted to their own orders whatever filters they pass.
func (s *OrderService) ListOrders(ctx context.Context, q ListOrdersQuery, who Identity) (*OrderPage, error) {
	if q.Page <= 0 || q.Limit <= 0 {
		return nil, apperr.Validation("page and limit must be positive")
	}
	if q.Limit > MaxLimit {
		return nil, apperr.Validation("limit must be at most %d", MaxLimit)
	}

	filters := q.Filters
	if !who.IsAdmin() {
		filters = append(append([]repositories.OrderFilter{}, filters...), repositories.ByUser(who.UserID))
	}

	orders, count, err := s.orders.List(ctx, q.Page, q.Limit, filters...)
	if err != nil {
		return nil, err
	}
	return &OrderPage{
		Orders:     orders,
		Count:      count,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (count + int64(q.Limit) - 1) / int64(q.Limit),
	}, nil
}

func (s *OrderService) event(name string, o *models.Order) OrderEvent {
	return OrderEvent{
		Event:       name,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Payment:     string(o.Payment),
		TotalAmount: o.TotalAmount.StringFixed(2),
		OccurredAt:  s.now(),
	}
}

func (s *OrderService) logIfConsistency(err error, op, ref string) {
	if errors.Is(err, apperr.ErrConsistency) {
		s.logger.Error("consistency violation", "op", op, "ref", ref, "error", err)
	}
}

