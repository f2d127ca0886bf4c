// Package payment wraps the external payment provider. The core only sees
// order creation and callback signature verification; the patient pays the
// provider directly and card details never reach this service.
package payment

import (
	"context"
	"errors"
)

var ErrOrderCreateFailed = errors.New("payment order creation failed")

// Order is the provider-side handle created before the patient pays.
// Amount is in minor currency units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
