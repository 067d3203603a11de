package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luxury-beauty/api/internal/platform/auth"
	"github.com/luxury-beauty/api/internal/services"
)

func newPaymentRouter(svc services.PaymentService, identity *auth.Identity, opts ...PaymentOption) chi.Router {
	r := chi.NewRouter()
	if identity != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), identity)))
			})
		})
	}
	h := NewPaymentHandlers(nil, svc, opts...)
	r.Route("/orders", h.OrderRoutes)
	r.Route("/public", h.PublicRoutes)
	r.Route("/webhooks", h.WebhookRoutes)
	return r
}

func TestInitializePaymentReturnsAuthorizationURL(t *testing.T) {
	var received services.InitializePaymentCommand
	svc := &stubPaymentService{
		initializeFn: func(ctx context.Context, cmd services.InitializePaymentCommand) (services.PaymentInitialization, error) {
			received = cmd
			return services.PaymentInitialization{
				Reference:        "LB-1741516200000-123456",
				AuthorizationURL: "https://pay.lenco.co/LB-1741516200000-123456",
			}, nil
		},
	}
	router := newPaymentRouter(svc, customerIdentity())

	body := `{"callbackUrl": "https://shop.example.com/checkout/complete"}`
	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/payment", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.OrderID != "order-1" || received.UserID != "user-1" {
		t.Fatalf("unexpected command: %+v", received)
	}
	if received.CallbackURL != "https://shop.example.com/checkout/complete" {
		t.Fatalf("unexpected callback url: %s", received.CallbackURL)
	}

	var resp initializePaymentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Reference == "" || resp.AuthorizationURL == "" {
		t.Fatalf("expected reference and authorization url, got %+v", resp)
	}
}

func TestInitializePaymentAllowsEmptyBody(t *testing.T) {
	svc := &stubPaymentService{}
	router := newPaymentRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/payment", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestInitializePaymentRequiresIdentity(t *testing.T) {
	router := newPaymentRouter(&stubPaymentService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/payment", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInitializePaymentMapsNotInitializable(t *testing.T) {
	svc := &stubPaymentService{
		initializeFn: func(ctx context.Context, cmd services.InitializePaymentCommand) (services.PaymentInitialization, error) {
			return services.PaymentInitialization{}, services.ErrPaymentNotInitializable
		},
	}
	router := newPaymentRouter(svc, customerIdentity())

	req := httptest.NewRequest(http.MethodPost, "/orders/order-1/payment", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestVerifyPaymentLostRaceReturnsConflict(t *testing.T) {
	svc := &stubPaymentService{
		verifyFn: func(ctx context.Context, reference string) (services.ReconcileOutcome, error) {
			return services.ReconcileOutcome{}, fmt.Errorf("%w: order status changed concurrently", services.ErrOrderConflict)
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/public/payments/LB-1741516200000-123456", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	var envelope map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if envelope["error"] != "conflict" {
		t.Fatalf("expected conflict code, got %v", envelope["error"])
	}
}

func TestVerifyPaymentReportsSuccess(t *testing.T) {
	svc := &stubPaymentService{
		verifyFn: func(ctx context.Context, reference string) (services.ReconcileOutcome, error) {
			if reference != "LB-1741516200000-123456" {
				t.Fatalf("unexpected reference: %s", reference)
			}
			return services.ReconcileOutcome{
				Reference:   reference,
				OrderID:     "order-1",
				OrderNumber: "LB-250309-A1B2C3",
				Succeeded:   true,
			}, nil
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/public/payments/LB-1741516200000-123456", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp paymentOutcomePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %s", resp.Status)
	}
	if resp.OrderNumber != "LB-250309-A1B2C3" {
		t.Fatalf("unexpected order number: %s", resp.OrderNumber)
	}
}

func TestVerifyPaymentReportsPending(t *testing.T) {
	svc := &stubPaymentService{
		verifyFn: func(ctx context.Context, reference string) (services.ReconcileOutcome, error) {
			return services.ReconcileOutcome{Reference: reference, OrderID: "order-1", Pending: true}, nil
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/public/payments/LB-1741516200000-123456", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp paymentOutcomePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %s", resp.Status)
	}
}

func TestVerifyPaymentUnknownReference(t *testing.T) {
	svc := &stubPaymentService{
		verifyFn: func(ctx context.Context, reference string) (services.ReconcileOutcome, error) {
			return services.ReconcileOutcome{}, services.ErrPaymentNotFound
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/public/payments/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestVerifyPaymentRateLimited(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 3, 9, 10, 30, 0, 0, time.UTC) }
	limiter := newSimpleRateLimiter(1, time.Minute, clock)
	router := newPaymentRouter(&stubPaymentService{}, nil, WithPaymentRateLimiter(limiter))

	first := httptest.NewRequest(http.MethodGet, "/public/payments/LB-1741516200000-123456", nil)
	first.RemoteAddr = "203.0.113.7:51000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, first)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/public/payments/LB-1741516200000-123456", nil)
	second.RemoteAddr = "203.0.113.7:51000"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, second)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestWebhookForwardsSignatureHeader(t *testing.T) {
	var receivedSignature string
	var receivedPayload []byte
	svc := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.ReconcileOutcome, error) {
			receivedSignature = signature
			receivedPayload = payload
			return services.ReconcileOutcome{Reference: "LB-1741516200000-123456", Succeeded: true}, nil
		},
	}
	router := newPaymentRouter(svc, nil)

	body := `{"event": "collection.successful", "data": {"reference": "LB-1741516200000-123456"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/lenco", strings.NewReader(body))
	req.Header.Set("x-lenco-signature", "deadbeef")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if receivedSignature != "deadbeef" {
		t.Fatalf("expected signature forwarded, got %q", receivedSignature)
	}
	if string(receivedPayload) != body {
		t.Fatalf("expected raw body forwarded, got %q", string(receivedPayload))
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.ReconcileOutcome, error) {
			return services.ReconcileOutcome{}, services.ErrPaymentInvalidSignature
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/lenco", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWebhookAcknowledgesIgnoredEvents(t *testing.T) {
	svc := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.ReconcileOutcome, error) {
			return services.ReconcileOutcome{}, nil
		},
	}
	router := newPaymentRouter(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/lenco", strings.NewReader(`{"event": "transfer.successful"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rr.Code)
	}
	var resp paymentOutcomePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "IGNORED" {
		t.Fatalf("expected IGNORED, got %s", resp.Status)
	}
}
