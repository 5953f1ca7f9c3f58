// Package payment hides the payment gateway behind a small interface. Gateway specific
// request and response shapes never leave this package.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Intent is a gateway side order that the customer pays against.
type Intent struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"` // minor units
	Currency       string `json:"currency"`
}

// RefundOptions controls a refund. A nil Amount refunds the full captured amount.
type RefundOptions struct {
	Amount *int64
	Speed  string
}

// Gateway is the outbound payment API used by the order lifecycle.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error)
	Refund(ctx context.Context, paymentRef string, opts RefundOptions) error
}

// Verifier checks the signature the gateway hands to the client after checkout.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns hex(HMAC-SHA256(secret, gatewayOrderID + "|" + paymentID)).
func (v *Verifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the signature in constant time.
func (v *Verifier) Verify(gatewayOrderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(v.Sign(gatewayOrderID, paymentID)), []byte(signature))
}
