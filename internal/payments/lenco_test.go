package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubDoer struct {
	doFn func(req *http.Request) (*http.Response, error)
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	return s.doFn(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestProvider(t *testing.T, doer httpDoer) *LencoProvider {
	t.Helper()
	provider, err := NewLencoProvider(LencoProviderConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_test",
		HTTPClient:    doer,
		Clock: func() time.Time {
			return time.Date(2025, time.March, 9, 10, 30, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("NewLencoProvider returned error: %v", err)
	}
	return provider
}

func TestLencoInitializeCollection(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	doer := &stubDoer{doFn: func(req *http.Request) (*http.Response, error) {
		captured = req
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusOK, `{"status":true,"data":{"reference":"LB-1-000001","authorization_url":"https://pay.lenco.co/c/abc","access_code":"abc"}}`), nil
	}}
	provider := newTestProvider(t, doer)

	collection, err := provider.InitializeCollection(context.Background(), InitializeRequest{
		OrderID:       "ord_1",
		Reference:     "LB-1-000001",
		Amount:        290000,
		Currency:      "zmw",
		CustomerEmail: "jane@example.com",
		CallbackURL:   "https://shop.example.com/checkout/callback",
	})
	if err != nil {
		t.Fatalf("InitializeCollection returned error: %v", err)
	}
	if collection.AuthorizationURL != "https://pay.lenco.co/c/abc" {
		t.Fatalf("unexpected authorization url %q", collection.AuthorizationURL)
	}
	if captured.Method != http.MethodPost || captured.URL.Path != "/v1/transactions/initialize" {
		t.Fatalf("unexpected request %s %s", captured.Method, captured.URL.Path)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer sk_test_123" {
		t.Fatalf("unexpected authorization header %q", got)
	}

	var body map[string]any
	if err := json.Unmarshal(capturedBody, &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if body["currency"] != "ZMW" {
		t.Fatalf("expected currency ZMW, got %v", body["currency"])
	}
	if body["amount"] != float64(290000) {
		t.Fatalf("expected amount 290000, got %v", body["amount"])
	}
	metadata, _ := body["metadata"].(map[string]any)
	if metadata["orderId"] != "ord_1" {
		t.Fatalf("expected orderId metadata, got %v", body["metadata"])
	}
}

func TestLencoVerifyTriState(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		succeeded bool
		pending   bool
		amount    int64
	}{
		{
			name:      "success with minor unit amount",
			body:      `{"status":true,"data":{"reference":"ref","status":"success","amount":290000,"currency":"ZMW","completedAt":"2025-03-09T10:31:00Z"}}`,
			succeeded: true,
			amount:    290000,
		},
		{
			name:    "pending",
			body:    `{"status":true,"data":{"reference":"ref","status":"pending","amount":290000}}`,
			pending: true,
			amount:  290000,
		},
		{
			name:   "declined is neither",
			body:   `{"status":true,"data":{"reference":"ref","status":"failed","amount":290000}}`,
			amount: 290000,
		},
		{
			name:      "decimal major unit amount is normalised",
			body:      `{"status":true,"data":{"reference":"ref","status":"success","amount":"2900.00","currency":"ZMW"}}`,
			succeeded: true,
			amount:    290000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doer := &stubDoer{doFn: func(req *http.Request) (*http.Response, error) {
				if req.URL.Path != "/v1/transactions/verify/ref" {
					t.Fatalf("unexpected verify path %s", req.URL.Path)
				}
				return jsonResponse(http.StatusOK, tc.body), nil
			}}
			provider := newTestProvider(t, doer)

			result, err := provider.Verify(context.Background(), "ref")
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if result.Succeeded != tc.succeeded || result.Pending != tc.pending {
				t.Fatalf("unexpected state succeeded=%v pending=%v", result.Succeeded, result.Pending)
			}
			if result.Amount != tc.amount {
				t.Fatalf("expected amount %d, got %d", tc.amount, result.Amount)
			}
		})
	}
}

func TestLencoWebhookSignature(t *testing.T) {
	provider := newTestProvider(t, &stubDoer{})
	payload := []byte(`{"event":"charge.success","data":{"reference":"ref","amount":290000}}`)

	mac := hmac.New(sha512.New, deriveSigningKey("whsec_test"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	if !provider.VerifyWebhookSignature(payload, signature) {
		t.Fatalf("expected valid signature to verify")
	}
	if !provider.VerifyWebhookSignature(payload, strings.ToUpper(signature)) {
		t.Fatalf("expected case-insensitive hex comparison")
	}
	if provider.VerifyWebhookSignature(payload, signature[:len(signature)-2]+"00") {
		t.Fatalf("expected tampered signature to fail")
	}
	if provider.VerifyWebhookSignature(append(payload, ' '), signature) {
		t.Fatalf("expected tampered payload to fail")
	}
	if provider.VerifyWebhookSignature(payload, "") {
		t.Fatalf("expected empty signature to fail")
	}

	// Raw-secret HMAC must not verify; the key is derived first.
	rawMac := hmac.New(sha512.New, []byte("whsec_test"))
	rawMac.Write(payload)
	if provider.VerifyWebhookSignature(payload, hex.EncodeToString(rawMac.Sum(nil))) {
		t.Fatalf("expected raw-secret signature to fail")
	}
}

func TestLencoParseWebhook(t *testing.T) {
	provider := newTestProvider(t, &stubDoer{})

	event, err := provider.ParseWebhook([]byte(`{"event":"charge.success","data":{"reference":"ref","amount":290000,"currency":"ZMW"}}`))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if event.Type != WebhookCollectionSucceeded || event.Reference != "ref" || event.Amount != 290000 {
		t.Fatalf("unexpected event %+v", event)
	}

	event, err = provider.ParseWebhook([]byte(`{"event":"charge.failed","data":{"reference":"ref"}}`))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if event.Type != WebhookCollectionFailed {
		t.Fatalf("expected failed event, got %s", event.Type)
	}

	event, err = provider.ParseWebhook([]byte(`{"event":"settlement.created","data":{}}`))
	if err != nil {
		t.Fatalf("ParseWebhook returned error: %v", err)
	}
	if event.Type != WebhookIgnored {
		t.Fatalf("expected ignored event, got %s", event.Type)
	}
}

func TestLencoGenerateReference(t *testing.T) {
	provider := newTestProvider(t, &stubDoer{})
	reference := provider.GenerateReference("ord_1")
	if !strings.HasPrefix(reference, "LB-") {
		t.Fatalf("unexpected reference %q", reference)
	}
	parts := strings.Split(reference, "-")
	if len(parts) != 3 || len(parts[2]) != 6 {
		t.Fatalf("unexpected reference shape %q", reference)
	}
}

func TestRegistryResolve(t *testing.T) {
	provider := newTestProvider(t, &stubDoer{})
	registry, err := NewRegistry([]Provider{provider})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	resolved, err := registry.Resolve("")
	if err != nil {
		t.Fatalf("Resolve default returned error: %v", err)
	}
	if resolved.Name() != lencoProviderName {
		t.Fatalf("unexpected provider %s", resolved.Name())
	}
	if _, err := registry.Resolve("paystack"); err != ErrUnsupportedProvider {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestLencoInitializeFailureEnvelope(t *testing.T) {
	doer := &stubDoer{doFn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"status":false,"message":"invalid amount"}`), nil
	}}
	provider := newTestProvider(t, doer)

	_, err := provider.InitializeCollection(context.Background(), InitializeRequest{
		Reference: "ref",
		Amount:    -1,
	})
	if err == nil || !strings.Contains(err.Error(), "invalid amount") {
		t.Fatalf("expected envelope error, got %v", err)
	}
}
