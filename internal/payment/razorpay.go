package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// RazorpayConfig holds the gateway credentials.
type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// RazorpayClient talks to the Razorpay REST API with the Fiber HTTP client.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	timeout   time.Duration
}

func NewRazorpayClient(cfg RazorpayConfig) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.razorpay.com"
	}
	return &RazorpayClient{baseURL: base, keyID: cfg.KeyID, keySecret: cfg.KeySecret, timeout: timeout}
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type razorpayRefundRequest struct {
	Amount *int64 `json:"amount,omitempty"`
	Speed  string `json:"speed,omitempty"`
}

type razorpayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent opens a gateway order for amountMinor.
func (c *RazorpayClient) CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error) {
	if amountMinor <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive, got %d", amountMinor)
	}
	req := razorpayOrderRequest{Amount: amountMinor, Currency: currency, Receipt: uuid.New().String()}

	var out razorpayOrder
	if err := c.post(ctx, "/v1/orders", req, &out); err != nil {
		return Intent{}, err
	}
	if out.ID == "" {
		return Intent{}, errors.New("gateway returned an order without id")
	}
	return Intent{GatewayOrderID: out.ID, Amount: out.Amount, Currency: out.Currency}, nil
}

// Refund refunds a captured payment.
func (c *RazorpayClient) Refund(ctx context.Context, paymentRef string, opts RefundOptions) error {
	if paymentRef == "" {
		return errors.New("payment reference is empty")
	}
	path := "/v1/payments/" + url.PathEscape(paymentRef) + "/refund"
	return c.post(ctx, path, razorpayRefundRequest{Amount: opts.Amount, Speed: opts.Speed}, nil)
}

func (c *RazorpayClient) post(ctx context.Context, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(c.baseURL + path)
	agent.BasicAuth(c.keyID, c.keySecret)
	agent.Timeout(timeout)
	agent.JSON(body)

	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("POST %s: %w", path, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		apiErr := &APIError{StatusCode: code}
		var eb razorpayErrorBody
		if json.Unmarshal(resp, &eb) == nil {
			apiErr.Code = eb.Error.Code
			apiErr.Description = eb.Error.Description
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
