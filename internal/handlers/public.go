package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/luxury-beauty/api/internal/platform/httpx"
	"github.com/luxury-beauty/api/internal/services"
)

const maxGuestLookupBodySize = 4 * 1024

// PublicOrderHandlers exposes the guest order lookup. A guest proves access
// with the order number plus the email captured at checkout.
type PublicOrderHandlers struct {
	orders  services.OrderService
	enabled bool
	limiter RateLimiter
}

// PublicOrderOption customises public order handler construction.
type PublicOrderOption func(*PublicOrderHandlers)

// WithGuestLookupEnabled toggles the lookup endpoint via feature flag.
func WithGuestLookupEnabled(enabled bool) PublicOrderOption {
	return func(h *PublicOrderHandlers) {
		h.enabled = enabled
	}
}

// WithGuestLookupRateLimiter throttles lookup attempts per client IP.
func WithGuestLookupRateLimiter(limiter RateLimiter) PublicOrderOption {
	return func(h *PublicOrderHandlers) {
		h.limiter = limiter
	}
}

// NewPublicOrderHandlers constructs public order handlers.
func NewPublicOrderHandlers(orders services.OrderService, opts ...PublicOrderOption) *PublicOrderHandlers {
	h := &PublicOrderHandlers{
		orders:  orders,
		enabled: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers public order endpoints under the provided router.
func (h *PublicOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/lookup", h.lookupOrder)
}

type guestLookupRequest struct {
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email"`
}

func (h *PublicOrderHandlers) lookupOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.enabled {
		httpx.WriteError(ctx, w, httpx.NewError("lookup_disabled", "guest order lookup is disabled", http.StatusNotFound))
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxGuestLookupBodySize)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req guestLookupRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	email := strings.TrimSpace(req.Email)
	if orderNumber == "" || email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderNumber and email are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.LookupGuestOrder(ctx, orderNumber, email)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := buildOrderPayload(order)
	// A lookup proves knowledge of the email, not ownership of an account.
	payload.UserID = ""

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: payload})
}
