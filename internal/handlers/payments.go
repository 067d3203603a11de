package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/luxury-beauty/api/internal/platform/auth"
	"github.com/luxury-beauty/api/internal/platform/httpx"
	"github.com/luxury-beauty/api/internal/services"
)

const (
	maxInitializeBodySize = 4 * 1024
	maxWebhookBodySize    = 256 * 1024

	lencoSignatureHeader = "x-lenco-signature"
)

// PaymentHandlers exposes payment initialization, verification, and the
// provider webhook. Verification is public because the client lands on the
// redirect callback before it re-authenticates.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
	limiter  RateLimiter
}

// PaymentOption customises payment handler construction.
type PaymentOption func(*PaymentHandlers)

// WithPaymentRateLimiter throttles the public verification endpoint per client IP.
func WithPaymentRateLimiter(limiter RateLimiter) PaymentOption {
	return func(h *PaymentHandlers) {
		h.limiter = limiter
	}
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService, opts ...PaymentOption) *PaymentHandlers {
	h := &PaymentHandlers{
		authn:    authn,
		payments: payments,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// OrderRoutes registers the authenticated re-initialization endpoint under /orders.
func (h *PaymentHandlers) OrderRoutes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/{orderID}/payment", h.initializePayment)
}

// PublicRoutes registers the unauthenticated verification endpoint.
func (h *PaymentHandlers) PublicRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/payments/{reference}", h.verifyPayment)
}

// WebhookRoutes registers provider push endpoints.
func (h *PaymentHandlers) WebhookRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/lenco", h.handleLencoWebhook)
}

type initializePaymentRequest struct {
	CallbackURL string `json:"callbackUrl"`
}

type initializePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
}

func (h *PaymentHandlers) initializePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req initializePaymentRequest
	body, err := readLimitedBody(r, maxInitializeBodySize)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	case errors.Is(err, errEmptyBody):
		// Body is optional here.
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
		return
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	init, err := h.payments.InitializePayment(ctx, services.InitializePaymentCommand{
		OrderID:     orderID,
		UserID:      identity.UID,
		CallbackURL: strings.TrimSpace(req.CallbackURL),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, initializePaymentResponse{
		Reference:        init.Reference,
		AuthorizationURL: init.AuthorizationURL,
	})
}

type paymentOutcomePayload struct {
	Reference   string `json:"reference"`
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Status      string `json:"status"`
}

func (h *PaymentHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment reference is required", http.StatusBadRequest))
		return
	}

	outcome, err := h.payments.VerifyPayment(ctx, reference)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildPaymentOutcome(outcome))
}

func (h *PaymentHandlers) handleLencoWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}

	outcome, err := h.payments.HandleWebhook(ctx, payload, r.Header.Get(lencoSignatureHeader))
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	// Provider retries on non-2xx. Ignored events still acknowledge.
	writeJSONResponse(w, http.StatusOK, buildPaymentOutcome(outcome))
}

func buildPaymentOutcome(outcome services.ReconcileOutcome) paymentOutcomePayload {
	status := "PENDING"
	switch {
	case outcome.Succeeded:
		status = "SUCCESS"
	case outcome.Failed:
		status = "FAILED"
	case !outcome.Pending && outcome.Reference == "":
		status = "IGNORED"
	}
	return paymentOutcomePayload{
		Reference:   outcome.Reference,
		OrderID:     outcome.OrderID,
		OrderNumber: outcome.OrderNumber,
		Status:      status,
	}
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment transaction not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "order was updated concurrently, retry the request", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentNotInitializable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_initializable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", "payment amount does not reconcile with order total", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentInitFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_init_failed", "payment gateway rejected initialization", http.StatusBadGateway))
	case errors.Is(err, services.ErrServiceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}

func clientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.RemoteAddr)
}
