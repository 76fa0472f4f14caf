// Package handler exposes the checkout session engine over HTTP with JSON
// bodies, mapping domain errors onto the API's error taxonomy.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// DebugErrors includes internal error details in 5xx responses.
	// Keep it off outside development.
	DebugErrors bool
}

// Handler translates HTTP requests into checkout engine calls.
type Handler struct {
	engine      *checkout.Service
	debugErrors bool
}

// New constructs a Handler around the session engine.
func New(cfg Config, engine *checkout.Service) *Handler {
	return &Handler{
		engine:      engine,
		debugErrors: cfg.DebugErrors,
	}
}

// Routes returns the checkout session router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/checkout_sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Get("/{id}", h.getSession)
		r.Post("/{id}", h.updateSession)
		r.Post("/{id}/complete", h.completeSession)
	})
	return r
}

// errorResponse is the stable error body shape.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, err error) {
	resp := errorResponse{Error: msg, Code: code}
	if err != nil {
		if status >= http.StatusInternalServerError {
			zctx.From(r.Context()).Error("request failed", zap.String("code", code), zap.Error(err))
		}
		if h.debugErrors {
			resp.Details = err.Error()
		}
	}
	h.writeJSON(w, r, status, resp)
}

// decodeBody parses the JSON request body into v, reporting a 400 on
// malformed input. It returns false when the response has been written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON", err)
		return false
	}
	return true
}
