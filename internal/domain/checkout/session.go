package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a checkout session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusCompleted Status = "completed"
)

// CanTransitionTo reports whether the session may move from s to next.
// Completed is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s == StatusCompleted {
		return false
	}
	return next == StatusUpdated || next == StatusCompleted
}

// Session is a provisional, mutable cart-with-pricing record that precedes a
// finalized order. All monetary fields are in minor currency units and
// derived; they are replaced wholesale on every recalculation, never merged
// field by field.
type Session struct {
	ID               string           `json:"id"`
	Status           Status           `json:"status"`
	Items            []PricedLineItem `json:"items"`
	ShippingAddress  *ShippingAddress `json:"shipping_address,omitempty"`
	ShippingOptions  []ShippingOption `json:"shipping_options"`
	SelectedShipping string           `json:"selected_shipping,omitempty"`
	Currency         string           `json:"currency"`
	VATRate          decimal.Decimal  `json:"vat_rate"`
	Subtotal         int64            `json:"subtotal"`
	ShippingAmount   int64            `json:"shipping_amount"`
	VATAmount        int64            `json:"vat_amount"`
	GrandTotal       int64            `json:"grand_total"`
	Messages         []string         `json:"messages"`
	IdempotencyKey   string           `json:"idempotency_key,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Store is a passive keyed ledger for sessions. It owns no business rules:
// the engine computes the next whole record and the store persists it.
// Concurrent writers to the same id race with last-write-wins semantics;
// there is no version token.
type Store interface {
	Create(ctx context.Context, s *Session) error
	// Get returns ErrSessionNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Session, error)
	// Update replaces the stored record. It returns ErrSessionNotFound for
	// an unknown id rather than inserting.
	Update(ctx context.Context, s *Session) (*Session, error)
}

// Receipt is the proof of a confirmed payment.
type Receipt struct {
	PaymentID string
}

// PaymentDelegate is the single payment capability the engine completes
// against: either confirm a pre-authorized token, or stand up a hosted
// payment flow and hand back its redirect URL.
type PaymentDelegate interface {
	Confirm(ctx context.Context, token string, amount int64, currency string) (*Receipt, error)
	CreateHostedSession(ctx context.Context, s *Session) (string, error)
}

// Sentinel errors for the session lifecycle.
var (
	ErrEmptyItems       = errors.New("items array is required and must not be empty")
	ErrNoUpdateFields   = errors.New("at least one of items, shipping_option or shipping_address is required")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrAlreadyCompleted = errors.New("checkout session already completed")
	ErrCurrencyRequired = errors.New("currency is required")
)

// UnsupportedCurrencyError indicates the requested currency is not sold in.
type UnsupportedCurrencyError struct {
	Currency string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("only %s currency is supported, got %s", SupportedCurrency, e.Currency)
}

// InvalidLineItemError indicates a malformed line item in the request.
type InvalidLineItemError struct {
	SKU    string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	if e.SKU == "" {
		return fmt.Sprintf("invalid line item: %s", e.Reason)
	}
	return fmt.Sprintf("invalid line item %s: %s", e.SKU, e.Reason)
}
