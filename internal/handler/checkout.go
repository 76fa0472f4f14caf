package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
	"github.com/nordkart/checkout-api/internal/payment"
)

type createSessionRequest struct {
	Items           []checkout.LineItemRequest `json:"items"`
	ShippingAddress *checkout.ShippingAddress  `json:"shipping_address,omitempty"`
	Currency        string                     `json:"currency"`
	IdempotencyKey  string                     `json:"idempotency_key,omitempty"`
}

type updateSessionRequest struct {
	Items           []checkout.LineItemRequest `json:"items,omitempty"`
	ShippingOption  string                     `json:"shipping_option,omitempty"`
	ShippingAddress *checkout.ShippingAddress  `json:"shipping_address,omitempty"`
}

type completeSessionRequest struct {
	PaymentToken string `json:"payment_token,omitempty"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
}

type completeSessionResponse struct {
	OrderID    string        `json:"order_id"`
	Status     string        `json:"status"`
	Total      totalResponse `json:"total"`
	Currency   string        `json:"currency"`
	PaymentURL string        `json:"payment_url,omitempty"`
}

type totalResponse struct {
	Subtotal   int64 `json:"subtotal"`
	Shipping   int64 `json:"shipping"`
	VAT        int64 `json:"vat"`
	GrandTotal int64 `json:"grand_total"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	sess, err := h.engine.Create(r.Context(), checkout.CreateRequest{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		Currency:        req.Currency,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.mapSessionError(w, r, err, "Failed to create checkout session")
		return
	}
	h.writeJSON(w, r, http.StatusCreated, sess)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.mapSessionError(w, r, err, "Failed to retrieve checkout session")
		return
	}
	h.writeJSON(w, r, http.StatusOK, sess)
}

func (h *Handler) updateSession(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	sess, err := h.engine.Update(r.Context(), chi.URLParam(r, "id"), checkout.UpdateRequest{
		Items:           req.Items,
		ShippingOption:  req.ShippingOption,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.mapSessionError(w, r, err, "Failed to update checkout session")
		return
	}
	h.writeJSON(w, r, http.StatusOK, sess)
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Complete(r.Context(), chi.URLParam(r, "id"), checkout.CompleteRequest{
		PaymentToken: req.PaymentToken,
		Email:        req.Email,
		Name:         req.Name,
	})
	if err != nil {
		h.mapSessionError(w, r, err, "Failed to complete checkout session")
		return
	}

	sess := result.Session
	h.writeJSON(w, r, http.StatusOK, completeSessionResponse{
		OrderID: result.OrderID,
		Status:  string(sess.Status),
		Total: totalResponse{
			Subtotal:   sess.Subtotal,
			Shipping:   sess.ShippingAmount,
			VAT:        sess.VATAmount,
			GrandTotal: sess.GrandTotal,
		},
		Currency:   sess.Currency,
		PaymentURL: result.PaymentURL,
	})
}

// mapSessionError converts domain errors to HTTP error responses.
func (h *Handler) mapSessionError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, checkout.ErrSessionNotFound):
		h.writeError(w, r, http.StatusNotFound, "not_found", "Checkout session not found", nil)
	case errors.Is(err, checkout.ErrAlreadyCompleted):
		h.writeError(w, r, http.StatusBadRequest, "already_completed", "Checkout session already completed", nil)
	case errors.Is(err, checkout.ErrEmptyItems):
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "Items array is required and must not be empty", nil)
	case errors.Is(err, checkout.ErrNoUpdateFields):
		h.writeError(w, r, http.StatusBadRequest, "invalid_request",
			"At least one update field (items, shipping_option, or shipping_address) is required", nil)
	case errors.Is(err, checkout.ErrCurrencyRequired):
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "Currency is required", nil)
	case errors.Is(err, payment.ErrDeclined):
		h.writeError(w, r, http.StatusPaymentRequired, "payment_declined", "Payment was declined", nil)
	default:
		var currErr *checkout.UnsupportedCurrencyError
		if errors.As(err, &currErr) {
			h.writeError(w, r, http.StatusBadRequest, "unsupported_currency", currErr.Error(), nil)
			return
		}
		var itemErr *checkout.InvalidLineItemError
		if errors.As(err, &itemErr) {
			h.writeError(w, r, http.StatusBadRequest, "invalid_request", itemErr.Error(), nil)
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", fallback, err)
	}
}
