// Package payment provides a simulated payment gateway. It stands in for a
// real processor behind the checkout.PaymentDelegate interface: tokens are
// confirmed deterministically and hosted sessions are plain redirect URLs.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
)

// DeclinedToken is the magic token the simulated gateway refuses, so decline
// handling stays testable end to end.
const DeclinedToken = "tok_declined"

// ErrDeclined is returned when the processor refuses the charge.
var ErrDeclined = errors.New("payment declined")

var _ checkout.PaymentDelegate = (*Gateway)(nil)

// Gateway is a stand-in payment processor.
type Gateway struct {
	hostedBaseURL string
}

// NewGateway returns a Gateway whose hosted payment sessions live under
// hostedBaseURL.
func NewGateway(hostedBaseURL string) *Gateway {
	return &Gateway{hostedBaseURL: hostedBaseURL}
}

// Confirm charges a pre-authorized payment token for the given amount.
func (g *Gateway) Confirm(_ context.Context, token string, amount int64, currency string) (*checkout.Receipt, error) {
	if token == "" {
		return nil, errors.New("payment token is required")
	}
	if amount <= 0 {
		return nil, errors.Errorf("invalid charge amount %d %s", amount, currency)
	}
	if token == DeclinedToken {
		return nil, ErrDeclined
	}
	return &checkout.Receipt{PaymentID: "pi_" + uuid.New().String()}, nil
}

// CreateHostedSession stands up a hosted payment flow for the session and
// returns the URL the customer should be redirected to.
func (g *Gateway) CreateHostedSession(_ context.Context, s *checkout.Session) (string, error) {
	if len(s.Items) == 0 {
		return "", errors.New("cannot create hosted session for empty cart")
	}
	return fmt.Sprintf("%s/%s", g.hostedBaseURL, "hs_"+uuid.New().String()), nil
}
