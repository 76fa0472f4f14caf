package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/nordkart/checkout-api/internal/domain/order"
)

// defaultCustomerEmail is recorded on orders whose caller did not supply an
// email (agent-initiated checkouts often don't).
const defaultCustomerEmail = "checkout@agentic.com"

// CreateRequest is the input to Service.Create.
type CreateRequest struct {
	Items           []LineItemRequest
	ShippingAddress *ShippingAddress
	Currency        string
	IdempotencyKey  string
}

// UpdateRequest carries a partial session mutation. At least one field must
// be set. A nil Items slice means "keep the current items".
type UpdateRequest struct {
	Items           []LineItemRequest
	ShippingOption  string
	ShippingAddress *ShippingAddress
}

// CompleteRequest is the input to Service.Complete. An empty PaymentToken
// selects the hosted-payment flow.
type CompleteRequest struct {
	PaymentToken string
	Email        string
	Name         string
}

// CompleteResult is the outcome of a completed session.
type CompleteResult struct {
	OrderID    string
	Session    *Session
	PaymentURL string
}

// Service is the checkout session engine. It owns all session state
// transitions, delegating pricing to the Calculator, persistence to the
// Store, and completion side effects to the payment delegate and order sink.
type Service struct {
	calc     *Calculator
	store    Store
	orders   order.Sink
	payments PaymentDelegate
}

// NewService wires the session engine with its collaborators.
func NewService(calc *Calculator, store Store, orders order.Sink, payments PaymentDelegate) *Service {
	return &Service{
		calc:     calc,
		store:    store,
		orders:   orders,
		payments: payments,
	}
}

// Create validates the request, prices the cart, and persists a new session
// in status "created".
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if err := validateLineItems(req.Items); err != nil {
		return nil, err
	}
	if req.Currency == "" {
		return nil, ErrCurrencyRequired
	}
	if req.Currency != SupportedCurrency {
		return nil, &UnsupportedCurrencyError{Currency: req.Currency}
	}

	calc, err := s.calc.Calculate(ctx, req.Items, req.ShippingAddress, "")
	if err != nil {
		return nil, errors.Wrap(err, "calculate cart")
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:              newSessionID(),
		Status:          StatusCreated,
		Items:           calc.Items,
		ShippingAddress: req.ShippingAddress,
		ShippingOptions: calc.ShippingOptions,
		Currency:        req.Currency,
		VATRate:         NorwayVATRate,
		Subtotal:        calc.Subtotal,
		ShippingAmount:  calc.ShippingAmount,
		VATAmount:       calc.VATAmount,
		GrandTotal:      calc.GrandTotal,
		Messages:        calc.Messages,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "persist session")
	}
	return sess, nil
}

// Get returns the most recently persisted state of a session.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Update applies a partial mutation, reprices the cart, and persists the
// whole derived record. When Items is set, the priced items and every
// monetary field are replaced wholesale; when only the shipping option or
// address changes, the existing items are repriced against the new choice
// and left content-unchanged.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.CanTransitionTo(StatusUpdated) {
		return nil, ErrAlreadyCompleted
	}
	if req.Items == nil && req.ShippingOption == "" && req.ShippingAddress == nil {
		return nil, ErrNoUpdateFields
	}

	address := sess.ShippingAddress
	if req.ShippingAddress != nil {
		address = req.ShippingAddress
	}
	selected := sess.SelectedShipping
	if req.ShippingOption != "" {
		selected = req.ShippingOption
	}

	lineItems := req.Items
	if lineItems == nil {
		lineItems = lineItemsOf(sess.Items)
	} else if err := validateLineItems(lineItems); err != nil {
		return nil, err
	}

	calc, err := s.calc.Calculate(ctx, lineItems, address, selected)
	if err != nil {
		return nil, errors.Wrap(err, "calculate cart")
	}

	if req.Items != nil {
		sess.Items = calc.Items
		sess.Messages = calc.Messages
	}
	sess.ShippingAddress = address
	sess.SelectedShipping = selected
	sess.ShippingOptions = calc.ShippingOptions
	sess.Subtotal = calc.Subtotal
	sess.ShippingAmount = calc.ShippingAmount
	sess.VATAmount = calc.VATAmount
	sess.GrandTotal = calc.GrandTotal
	sess.Status = StatusUpdated
	sess.UpdatedAt = time.Now().UTC()

	updated, err := s.store.Update(ctx, sess)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete finalizes a session: it confirms payment (or stands up a hosted
// payment flow when no token is given), persists the order through the sink,
// and flips the session to its terminal status. On any collaborator failure
// the stored session is left in its prior state.
//
// The idempotency key on the session is advisory only: repeated Complete
// calls with the same key are not deduplicated before invoking payment.
func (s *Service) Complete(ctx context.Context, id string, req CompleteRequest) (*CompleteResult, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.CanTransitionTo(StatusCompleted) {
		return nil, ErrAlreadyCompleted
	}

	var (
		paymentID  string
		paymentURL string
	)
	if req.PaymentToken != "" {
		receipt, err := s.payments.Confirm(ctx, req.PaymentToken, sess.GrandTotal, sess.Currency)
		if err != nil {
			return nil, errors.Wrap(err, "confirm payment")
		}
		paymentID = receipt.PaymentID
	} else {
		url, err := s.payments.CreateHostedSession(ctx, sess)
		if err != nil {
			return nil, errors.Wrap(err, "create hosted payment session")
		}
		paymentURL = url
	}

	email := req.Email
	if email == "" {
		email = defaultCustomerEmail
	}

	ord := &order.Order{
		ID:            uuid.New().String(),
		SessionID:     sess.ID,
		CustomerEmail: email,
		CustomerName:  req.Name,
		TotalAmount:   sess.GrandTotal,
		Currency:      sess.Currency,
		PaymentID:     paymentID,
		Status:        order.StatusPaid,
		Items:         orderItemsOf(sess),
	}
	if sess.ShippingAddress != nil {
		ord.ShippingAddress = &order.Address{
			PostalCode: sess.ShippingAddress.PostalCode,
			Country:    sess.ShippingAddress.Country,
		}
	}

	persisted, err := s.orders.Persist(ctx, ord)
	if err != nil {
		return nil, errors.Wrap(err, "persist order")
	}

	sess.Status = StatusCompleted
	sess.UpdatedAt = time.Now().UTC()
	completed, err := s.store.Update(ctx, sess)
	if err != nil {
		return nil, errors.Wrap(err, "persist completed session")
	}

	return &CompleteResult{
		OrderID:    persisted.ID,
		Session:    completed,
		PaymentURL: paymentURL,
	}, nil
}

// validateLineItems rejects empty carts and malformed lines before any
// collaborator is called.
func validateLineItems(items []LineItemRequest) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, li := range items {
		if li.SKU == "" {
			return &InvalidLineItemError{Reason: "sku is required"}
		}
		if li.Quantity <= 0 {
			return &InvalidLineItemError{SKU: li.SKU, Reason: "quantity must be positive"}
		}
	}
	return nil
}

// lineItemsOf converts priced items back to the request form for repricing.
func lineItemsOf(items []PricedLineItem) []LineItemRequest {
	reqs := make([]LineItemRequest, len(items))
	for i, it := range items {
		reqs[i] = LineItemRequest{SKU: it.SKU, Quantity: it.Quantity}
	}
	return reqs
}

// orderItemsOf converts the session's priced items to order lines.
func orderItemsOf(sess *Session) []order.Item {
	items := make([]order.Item, len(sess.Items))
	for i, it := range sess.Items {
		items[i] = order.Item{
			SKU:        it.SKU,
			Quantity:   it.Quantity,
			UnitAmount: it.UnitPrice,
			Currency:   sess.Currency,
		}
	}
	return items
}

// newSessionID generates an opaque, never-reused session identifier.
func newSessionID() string {
	return "cs_" + uuid.New().String()
}
