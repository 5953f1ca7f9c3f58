package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"toko/internal/apperr"
	"toko/internal/logging"
	"toko/internal/models"
	"toko/internal/payment"
	"toko/internal/repositories"
	"toko/internal/services"
	"toko/internal/testutil"
	"toko/pkg/redisx"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

// fakeGateway hands out sequential gateway order ids and records refunds.
type fakeGateway struct {
	mu        sync.Mutex
	n         int
	intentErr error
	refundErr error
	intents   []int64
	refunds   []string
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intentErr != nil {
		return payment.Intent{}, g.intentErr
	}
	g.n++
	g.intents = append(g.intents, amountMinor)
	return payment.Intent{GatewayOrderID: fmt.Sprintf("order_%03d", g.n), Amount: amountMinor, Currency: currency}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentRef string, opts payment.RefundOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, paymentRef)
	return nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, body []byte) error {
	return m.Called(exchange, routingKey, body).Error(0)
}

type lockedGuard struct{}

func (lockedGuard) Acquire(context.Context, string) (func(), error) { return nil, redisx.ErrLocked }

type orderEnv struct {
	db       *gorm.DB
	fx       *testutil.Fixtures
	gw       *fakeGateway
	pub      *MockPublisher
	verifier *payment.Verifier
	svc      *services.OrderService
	exporter *services.ExportService
	deps     services.OrderDeps
	cfg      services.OrderConfig

	user  models.User
	addr  models.Address
	admin services.Identity
	cat   models.Category
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	pub := new(MockPublisher)
	pub.On("Publish", "", mock.Anything, mock.Anything).Return(nil)

	e := &orderEnv{
		db:       db,
		fx:       fx,
		gw:       &fakeGateway{},
		pub:      pub,
		verifier: payment.NewVerifier("gateway_secret"),
		cat:      fx.Category("apparel"),
	}
	e.user = fx.User(models.RoleUser)
	e.addr = fx.Address(e.user.ID)
	admin := fx.User(models.RoleAdmin)
	e.admin = services.Identity{UserID: admin.ID, Role: admin.Role}

	store := repositories.NewStore(db)
	orders := repositories.NewGORMOrderRepository(db)
	e.deps = services.OrderDeps{
		Store:     store,
		Orders:    orders,
		Carts:     repositories.NewGORMCartRepository(db),
		Addresses: repositories.NewGORMAddressRepository(db),
		Ledger:    repositories.NewGORMStockLedger(),
		Gateway:   e.gw,
		Verifier:  e.verifier,
		Publisher: pub,
		Logger:    logging.Discard(),
		Now:       func() time.Time { return testNow },
	}
	e.cfg = services.OrderConfig{
		GSTRate:        decimal.RequireFromString("0.18"),
		ShippingCharge: decimal.RequireFromString("50"),
		Currency:       "INR",
		RefundSpeed:    "normal",
		GatewayTimeout: time.Second,
	}
	e.svc = services.NewOrderService(e.deps, e.cfg)
	e.exporter = services.NewExportService(store, orders, pub, logging.Discard(), 100, func() time.Time { return testNow })
	return e
}

func (e *orderEnv) owner() services.Identity {
	return services.Identity{UserID: e.user.ID, Role: e.user.Role}
}

func (e *orderEnv) checkout(t *testing.T) *services.CreateOrderResult {
	t.Helper()
	res, err := e.svc.CreateOrder(context.Background(), e.user.ID, e.addr.ID, e.addr.ID)
	require.NoError(t, err)
	return res
}

func (e *orderEnv) pay(t *testing.T, o *models.Order, paymentID string) {
	t.Helper()
	ok, _, err := e.svc.VerifyPayment(context.Background(), o.GatewayOrderID, paymentID, e.verifier.Sign(o.GatewayOrderID, paymentID))
	require.NoError(t, err)
	require.True(t, ok)
}

func (e *orderEnv) reload(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := e.svc.GetOrder(context.Background(), id, e.admin)
	require.NoError(t, err)
	return o
}

func TestCreateOrderPricesAndReserves(t *testing.T) {
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.ProductDiscount(shirt.ProductID, "10", testNow)
	e.fx.CartItem(e.user.ID, shirt.ID, 1)

	res := e.checkout(t)

	assert.Equal(t, "1112.00", res.Order.TotalAmount.StringFixed(2))
	assert.EqualValues(t, 111200, res.Intent.Amount)
	assert.Equal(t, []int64{111200}, e.gw.intents)
	assert.Equal(t, models.StatusPending, res.Order.Status)
	assert.Equal(t, models.PaymentDue, res.Order.Payment)
	assert.Equal(t, 4, e.fx.Stock(shirt.ID))
	assert.EqualValues(t, 1, e.fx.CartSize(e.user.ID), "the cart is kept until payment is verified")

	stored := e.reload(t, res.Order.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "1000.00", stored.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "900.00", stored.Items[0].LineSubtotal.StringFixed(2))
	assert.Equal(t, res.Intent.GatewayOrderID, stored.GatewayOrderID)
	e.pub.AssertCalled(t, "Publish", "", services.EventOrderCreated, mock.Anything)
}

func TestPreviewMatchesCreatedTotal(t *testing.T) {
	e := newOrderEnv(t)
	a := e.fx.Variant(e.cat.ID, "A", "333.33", 10)
	b := e.fx.Variant(e.cat.ID, "B", "99.99", 10)
	e.fx.CategoryDiscount(e.cat.ID, "12.5", testNow)
	e.fx.CartItem(e.user.ID, a.ID, 3)
	e.fx.CartItem(e.user.ID, b.ID, 1)

	preview, err := e.svc.PreviewTotals(context.Background(), e.user.ID)
	require.NoError(t, err)
	res := e.checkout(t)
	assert.True(t, preview.TotalAmount.Equal(res.Order.TotalAmount), "preview %s vs order %s", preview.TotalAmount, res.Order.TotalAmount)

	_, err = e.svc.PreviewTotals(context.Background(), e.fx.User(models.RoleUser).ID)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCreateOrderInsufficientStockIsAllOrNothing(t *testing.T) {
	e := newOrderEnv(t)
	plenty := e.fx.Variant(e.cat.ID, "Plenty", "10", 10)
	scarce := e.fx.Variant(e.cat.ID, "Scarce", "10", 2)
	e.fx.CartItem(e.user.ID, plenty.ID, 4)
	e.fx.CartItem(e.user.ID, scarce.ID, 3)

	_, err := e.svc.CreateOrder(context.Background(), e.user.ID, e.addr.ID, e.addr.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, "insufficient_stock", apperr.Kind(err))

	assert.Equal(t, 10, e.fx.Stock(plenty.ID))
	assert.Equal(t, 2, e.fx.Stock(scarce.ID))
	var n int64
	require.NoError(t, e.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, e.db.Model(&models.OrderItem{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConcurrentCheckoutsCannotOversell(t *testing.T) {
	e := newOrderEnv(t)
	last := e.fx.Variant(e.cat.ID, "Last One", "500", 1)
	other := e.fx.User(models.RoleUser)
	otherAddr := e.fx.Address(other.ID)
	e.fx.CartItem(e.user.ID, last.ID, 1)
	e.fx.CartItem(other.ID, last.ID, 1)

	buyers := []struct{ user, addr string }{{e.user.ID, e.addr.ID}, {other.ID, otherAddr.ID}}
	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, user, addr string) {
			defer wg.Done()
			_, errs[i] = e.svc.CreateOrder(context.Background(), user, addr, addr)
		}(i, b.user, b.addr)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, e.fx.Stock(last.ID))
}

func TestCreateOrderRejections(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	v := e.fx.Variant(e.cat.ID, "Mug", "250", 5)

	t.Run("empty cart", func(t *testing.T) {
		_, err := e.svc.CreateOrder(ctx, e.user.ID, e.addr.ID, e.addr.ID)
		assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	})

	e.fx.CartItem(e.user.ID, v.ID, 1)

	t.Run("foreign address", func(t *testing.T) {
		stranger := e.fx.User(models.RoleUser)
		foreign := e.fx.Address(stranger.ID)
		_, err := e.svc.CreateOrder(ctx, e.user.ID, e.addr.ID, foreign.ID)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := e.svc.CreateOrder(ctx, e.user.ID, "not-a-uuid", e.addr.ID)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("gateway down", func(t *testing.T) {
		e.gw.intentErr = context.DeadlineExceeded
		defer func() { e.gw.intentErr = nil }()
		_, err := e.svc.CreateOrder(ctx, e.user.ID, e.addr.ID, e.addr.ID)
		assert.ErrorIs(t, err, apperr.ErrGateway)
		assert.Equal(t, 5, e.fx.Stock(v.ID), "nothing is reserved without an intent")
	})

	t.Run("checkout in progress", func(t *testing.T) {
		deps := e.deps
		deps.Guard = lockedGuard{}
		_, err := services.NewOrderService(deps, e.cfg).CreateOrder(ctx, e.user.ID, e.addr.ID, e.addr.ID)
		assert.ErrorIs(t, err, apperr.ErrPrecondition)
		assert.Equal(t, 5, e.fx.Stock(v.ID))
	})
}

func TestVerifyPaymentSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	mug := e.fx.Variant(e.cat.ID, "Mug", "250", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 2)
	res := e.checkout(t)

	sig := e.verifier.Sign(res.Intent.GatewayOrderID, "pay_1")
	ok, order, err := e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.PaymentSuccessful, order.Payment)
	assert.Equal(t, "pay_1", order.GatewayPaymentID)
	assert.EqualValues(t, 0, e.fx.CartSize(e.user.ID))

	// the customer keeps shopping; a replayed callback must not touch the new cart
	e.fx.CartItem(e.user.ID, mug.ID, 1)
	ok, order, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.PaymentSuccessful, order.Payment)
	assert.EqualValues(t, 1, e.fx.CartSize(e.user.ID))
	assert.Equal(t, 3, e.fx.Stock(shirt.ID))

	// a forged replay after success changes nothing either
	ok, _, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", "00")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.PaymentSuccessful, e.reload(t, res.Order.ID).Payment)
	assert.Equal(t, 3, e.fx.Stock(shirt.ID))
}

func TestVerifyPaymentForgedSignatureReleasesStock(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 2)
	res := e.checkout(t)
	require.Equal(t, 3, e.fx.Stock(shirt.ID))

	ok, order, err := e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", "forged")
	require.NoError(t, err, "a mismatch is a result, not an error")
	assert.False(t, ok)
	assert.Equal(t, models.PaymentFailed, order.Payment)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))
	assert.EqualValues(t, 1, e.fx.CartSize(e.user.ID), "the cart survives for a retry")

	// a late genuine callback cannot resurrect the order or release twice; the money goes back
	ok, order, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", e.verifier.Sign(res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentRefunded, order.Payment)
	assert.Equal(t, []string{"pay_1"}, e.gw.refunds)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))
	e.pub.AssertCalled(t, "Publish", "", services.EventPaymentFailed, mock.Anything)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	e := newOrderEnv(t)
	_, _, err := e.svc.VerifyPayment(context.Background(), "order_nope", "pay_1", "sig")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = e.svc.VerifyPayment(context.Background(), "order_nope", "", "sig")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRefundFailureKeepsOrderAndStock(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 2)
	res := e.checkout(t)
	e.pay(t, res.Order, "pay_1")

	_, err := e.svc.RequestCancellation(ctx, res.Order.ID, e.owner())
	require.NoError(t, err)

	e.gw.refundErr = errors.New("connection reset")
	_, err = e.svc.ResolveCancellation(ctx, res.Order.ID, services.ActionConfirm, e.admin)
	assert.ErrorIs(t, err, apperr.ErrGateway)

	stored := e.reload(t, res.Order.ID)
	assert.Equal(t, models.StatusPendingCancellation, stored.Status)
	assert.Equal(t, models.PaymentSuccessful, stored.Payment)
	assert.Equal(t, 3, e.fx.Stock(shirt.ID), "no stock comes back without a refund")

	// the admin retries once the gateway recovers
	e.gw.refundErr = nil
	order, err := e.svc.ResolveCancellation(ctx, res.Order.ID, services.ActionConfirm, e.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Equal(t, models.PaymentRefunded, order.Payment)
	assert.Equal(t, []string{"pay_1"}, e.gw.refunds)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID), "released exactly what was reserved")
}

func TestCancelUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 1)
	res := e.checkout(t)

	_, err := e.svc.RequestCancellation(ctx, res.Order.ID, e.owner())
	require.NoError(t, err)
	order, err := e.svc.ResolveCancellation(ctx, res.Order.ID, services.ActionConfirm, e.admin)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Equal(t, models.PaymentFailed, order.Payment)
	assert.Empty(t, e.gw.refunds)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))

	// the customer had really paid; the capture is refunded, the order stays cancelled
	ok, late, err := e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", e.verifier.Sign(res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.StatusCancelled, late.Status)
	assert.Equal(t, models.PaymentRefunded, late.Payment)
	assert.Equal(t, []string{"pay_1"}, e.gw.refunds)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))

	stored := e.reload(t, res.Order.ID)
	assert.Equal(t, models.PaymentRefunded, stored.Payment)
	assert.Equal(t, "pay_1", stored.GatewayPaymentID)
	e.pub.AssertCalled(t, "Publish", "", services.EventPaymentOrphaned, mock.Anything)

	// a replay of the same callback refunds nothing more
	_, _, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", e.verifier.Sign(res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Len(t, e.gw.refunds, 1)
}

func TestLatePaymentRefundFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 1)
	res := e.checkout(t)

	_, err := e.svc.RequestCancellation(ctx, res.Order.ID, e.owner())
	require.NoError(t, err)
	_, err = e.svc.ResolveCancellation(ctx, res.Order.ID, services.ActionConfirm, e.admin)
	require.NoError(t, err)

	sig := e.verifier.Sign(res.Intent.GatewayOrderID, "pay_1")
	e.gw.refundErr = errors.New("gateway unavailable")
	_, _, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", sig)
	assert.ErrorIs(t, err, apperr.ErrGateway)
	stored := e.reload(t, res.Order.ID)
	assert.Equal(t, models.PaymentFailed, stored.Payment)
	assert.Empty(t, stored.GatewayPaymentID)

	e.gw.refundErr = nil
	_, _, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", sig)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_1"}, e.gw.refunds)
	assert.Equal(t, models.PaymentRefunded, e.reload(t, res.Order.ID).Payment)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))
}

func TestCancelAfterFailedPaymentDoesNotReleaseTwice(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 2)
	res := e.checkout(t)

	_, err := e.svc.RequestCancellation(ctx, res.Order.ID, e.owner())
	require.NoError(t, err)
	_, _, err = e.svc.VerifyPayment(ctx, res.Intent.GatewayOrderID, "pay_1", "forged")
	require.NoError(t, err)
	require.Equal(t, 5, e.fx.Stock(shirt.ID))

	order, err := e.svc.ResolveCancellation(ctx, res.Order.ID, services.ActionConfirm, e.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.Status)
	assert.Equal(t, models.PaymentFailed, order.Payment)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))
}

func TestCancellationRules(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 5)
	e.fx.CartItem(e.user.ID, shirt.ID, 1)
	res := e.checkout(t)
	e.pay(t, res.Order, "pay_1")
	id := res.Order.ID

	stranger := services.Identity{UserID: e.fx.User(models.RoleUser).ID, Role: models.RoleUser}
	_, err := e.svc.RequestCancellation(ctx, id, stranger)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = e.svc.RequestCancellation(ctx, id, e.admin)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "only the owner may ask")

	_, err = e.svc.ResolveCancellation(ctx, id, services.ActionConfirm, e.admin)
	assert.ErrorIs(t, err, apperr.ErrPrecondition, "nothing to resolve yet")

	_, err = e.svc.RequestCancellation(ctx, id, e.owner())
	require.NoError(t, err)
	_, err = e.svc.RequestCancellation(ctx, id, e.owner())
	assert.ErrorIs(t, err, apperr.ErrPrecondition)

	_, err = e.svc.ResolveCancellation(ctx, id, services.ActionConfirm, e.owner())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = e.svc.ResolveCancellation(ctx, id, "maybe", e.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	order, err := e.svc.ResolveCancellation(ctx, id, services.ActionReject, e.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOrdered, order.Status)
	assert.Equal(t, models.PaymentSuccessful, order.Payment)
	assert.Equal(t, 4, e.fx.Stock(shirt.ID))

	// an ORDERED order may be asked for again, and MASTER counts as staff
	_, err = e.svc.RequestCancellation(ctx, id, e.owner())
	require.NoError(t, err)
	master := services.Identity{UserID: e.fx.User(models.RoleMaster).ID, Role: models.RoleMaster}
	order, err = e.svc.ResolveCancellation(ctx, id, services.ActionConfirm, master)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, order.Payment)
	assert.Equal(t, 5, e.fx.Stock(shirt.ID))

	_, err = e.svc.RequestCancellation(ctx, id, e.owner())
	assert.ErrorIs(t, err, apperr.ErrPrecondition, "cancelled is final")
}

func TestGetAndListOrdersOwnership(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	v := e.fx.Variant(e.cat.ID, "Mug", "250", 50)
	e.fx.CartItem(e.user.ID, v.ID, 1)
	mine := e.checkout(t)
	e.checkout(t)

	other := e.fx.User(models.RoleUser)
	otherAddr := e.fx.Address(other.ID)
	e.fx.CartItem(other.ID, v.ID, 1)
	theirs, err := e.svc.CreateOrder(ctx, other.ID, otherAddr.ID, otherAddr.ID)
	require.NoError(t, err)

	_, err = e.svc.GetOrder(ctx, theirs.Order.ID, e.owner())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, err := e.svc.GetOrder(ctx, mine.Order.ID, e.owner())
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, got.UserID)

	page, err := e.svc.ListOrders(ctx, services.ListOrdersQuery{Page: 1, Limit: 5}, e.owner())
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Count)

	// a user filter naming someone else still only yields the caller's orders
	page, err = e.svc.ListOrders(ctx, services.ListOrdersQuery{
		Page: 1, Limit: 5, Filters: []repositories.OrderFilter{repositories.ByUser(other.ID)},
	}, e.owner())
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Count)

	page, err = e.svc.ListOrders(ctx, services.ListOrdersQuery{Page: 1, Limit: 2}, e.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Count)
	assert.EqualValues(t, 2, page.TotalPages)
	assert.Len(t, page.Orders, 2)

	_, err = e.svc.ListOrders(ctx, services.ListOrdersQuery{Page: 0, Limit: 5}, e.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestBulkConfirmPending(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv(t)
	shirt := e.fx.Variant(e.cat.ID, "T-Shirt", "1000", 10)
	mug := e.fx.Variant(e.cat.ID, "Mug", "250", 10)
	e.fx.ProductDiscount(shirt.ProductID, "10", testNow)

	e.fx.CartItem(e.user.ID, shirt.ID, 1)
	e.fx.CartItem(e.user.ID, mug.ID, 2)
	paid := e.checkout(t)
	e.pay(t, paid.Order, "pay_1")

	e.fx.CartItem(e.user.ID, mug.ID, 1)
	unpaid := e.checkout(t)

	rows, err := e.exporter.BulkConfirmPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "one row per line of the paid order only")
	prices := map[string]string{}
	for _, r := range rows {
		assert.Equal(t, paid.Order.ID, r.OrderID)
		assert.Equal(t, e.user.Email, r.CustomerEmail)
		assert.Equal(t, "Pune", r.Shipping.City)
		prices[r.SKU] = r.UnitPrice
	}
	assert.Equal(t, "900.00", prices[shirt.SKU])
	assert.Equal(t, "250.00", prices[mug.SKU])

	assert.Equal(t, models.StatusOrdered, e.reload(t, paid.Order.ID).Status)
	assert.Equal(t, models.StatusPending, e.reload(t, unpaid.Order.ID).Status)

	rows, err = e.exporter.BulkConfirmPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "an exported order is never exported again")

	_, err = e.exporter.BulkConfirmPending(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	e.pub.AssertCalled(t, "Publish", "", services.EventOrdersExported, mock.MatchedBy(func(body []byte) bool {
		var ev services.OrderEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return false
		}
		return ev.OccurredAt.Equal(testNow) && len(ev.OrderIDs) == 1 && ev.OrderIDs[0] == paid.Order.ID
	}))
}
