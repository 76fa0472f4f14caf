package order

import (
	"context"
	"time"
)

// StatusPaid is the status orders are created with: an order only exists
// after a successful payment.
const StatusPaid = "paid"

// Address is the minimal shipping address carried over from the checkout
// session.
type Address struct {
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Item is one finalized order line. UnitAmount is in minor currency units.
type Item struct {
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

// Order is the immutable record created when a checkout session completes.
type Order struct {
	ID              string
	SessionID       string
	CustomerEmail   string
	CustomerName    string
	TotalAmount     int64
	Currency        string
	ShippingAddress *Address
	PaymentID       string
	Status          string
	Items           []Item
	CreatedAt       time.Time
}

// Sink persists a finalized order with its line items and decrements stock
// for the purchased quantities.
type Sink interface {
	Persist(ctx context.Context, o *Order) (*Order, error)
}
