package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	lencoProviderName   = "LENCO"
	lencoDefaultBaseURL = "https://api.lenco.co"
	lencoDefaultTimeout = 30 * time.Second
)

// LencoLogger defines the logging contract for Lenco provider operations.
type LencoLogger func(ctx context.Context, event string, fields map[string]any)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LencoProviderConfig configures the LencoProvider.
type LencoProviderConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTPClient    httpDoer
	Logger        LencoLogger
	Clock         func() time.Time
}

// LencoProvider implements the Provider interface against the Lenco
// collections API.
type LencoProvider struct {
	apiKey     string
	signingKey []byte
	baseURL    string
	client     httpDoer
	logger     LencoLogger
	clock      func() time.Time
}

// NewLencoProvider constructs a Lenco Provider using the given configuration.
func NewLencoProvider(cfg LencoProviderConfig) (*LencoProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("lenco: api key is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("lenco: webhook secret is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = lencoDefaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: lencoDefaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &LencoProvider{
		apiKey:     apiKey,
		signingKey: deriveSigningKey(secret),
		baseURL:    baseURL,
		client:     client,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Name returns the stable provider identifier stored on transactions.
func (p *LencoProvider) Name() string { return lencoProviderName }

// GenerateReference produces a collection reference unique per attempt.
func (p *LencoProvider) GenerateReference(orderID string) string {
	suffix := randomDigits(6)
	return fmt.Sprintf("LB-%d-%s", p.clock().UnixMilli(), suffix)
}

type lencoInitializeRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	Email       string            `json:"email"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type lencoEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type lencoTransactionData struct {
	Reference        string      `json:"reference"`
	AuthorizationURL string      `json:"authorization_url"`
	CheckoutURL      string      `json:"checkout_url"`
	AccessCode       string      `json:"access_code"`
	Status           string      `json:"status"`
	Amount           json.Number `json:"amount"`
	Currency         string      `json:"currency"`
	CompletedAt      string      `json:"completedAt"`
}

// InitializeCollection starts a hosted collection and returns the redirect target.
func (p *LencoProvider) InitializeCollection(ctx context.Context, req InitializeRequest) (Collection, error) {
	if p == nil {
		return Collection{}, errors.New("lenco: provider is nil")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Collection{}, errors.New("lenco: reference is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ZMW"
	}

	body := lencoInitializeRequest{
		Amount:      req.Amount,
		Currency:    currency,
		Reference:   req.Reference,
		Email:       strings.TrimSpace(req.CustomerEmail),
		CallbackURL: strings.TrimSpace(req.CallbackURL),
	}
	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		body.Metadata = map[string]string{"orderId": orderID}
	}

	data, raw, err := p.call(ctx, http.MethodPost, "/v1/transactions/initialize", body)
	if err != nil {
		return Collection{}, err
	}

	authorizationURL := strings.TrimSpace(data.AuthorizationURL)
	if authorizationURL == "" {
		authorizationURL = strings.TrimSpace(data.CheckoutURL)
	}
	if authorizationURL == "" {
		return Collection{}, errors.New("lenco: initialize response missing authorization url")
	}

	p.logger(ctx, "payments.lenco.collection.initialized", map[string]any{
		"reference": req.Reference,
		"orderId":   req.OrderID,
	})

	return Collection{
		Reference:        req.Reference,
		Provider:         lencoProviderName,
		AuthorizationURL: authorizationURL,
		AccessCode:       data.AccessCode,
		Raw:              raw,
	}, nil
}

// Verify polls the gateway for the state of a reference. The result is
// tri-state: succeeded, pending, or neither.
func (p *LencoProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if p == nil {
		return VerifyResult{}, errors.New("lenco: provider is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, errors.New("lenco: reference is required")
	}

	data, raw, err := p.call(ctx, http.MethodGet, "/v1/transactions/verify/"+reference, nil)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{
		Reference: reference,
		Currency:  strings.ToUpper(strings.TrimSpace(data.Currency)),
		Amount:    normalizeAmount(data.Amount),
		Raw:       raw,
	}
	if result.Currency == "" {
		result.Currency = "ZMW"
	}

	switch strings.ToLower(strings.TrimSpace(data.Status)) {
	case "success", "successful":
		result.Succeeded = true
		if ts := strings.TrimSpace(data.CompletedAt); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				utc := parsed.UTC()
				result.PaidAt = &utc
			}
		}
	case "pending", "processing", "pay-offline", "otp-required":
		result.Pending = true
	}

	return result, nil
}

// VerifyWebhookSignature authenticates a raw webhook body. The key is derived
// by hashing the shared secret, the body is then HMAC'd with the derived key
// and the hex digests compared in constant time.
func (p *LencoProvider) VerifyWebhookSignature(payload []byte, signature string) bool {
	if p == nil || len(p.signingKey) == 0 {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, p.signingKey)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

type lencoWebhookBody struct {
	Event string               `json:"event"`
	Data  lencoTransactionData `json:"data"`
}

// ParseWebhook decodes a raw webhook body into a normalised event.
func (p *LencoProvider) ParseWebhook(payload []byte) (WebhookEvent, error) {
	var body lencoWebhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("lenco: decode webhook: %w", err)
	}

	raw := map[string]any{}
	_ = json.Unmarshal(payload, &raw)

	event := WebhookEvent{
		Type:      WebhookIgnored,
		Reference: strings.TrimSpace(body.Data.Reference),
		Amount:    normalizeAmount(body.Data.Amount),
		Currency:  strings.ToUpper(strings.TrimSpace(body.Data.Currency)),
		Raw:       raw,
	}

	switch strings.ToLower(strings.TrimSpace(body.Event)) {
	case "charge.success", "transaction.success":
		event.Type = WebhookCollectionSucceeded
	case "charge.failed", "transaction.failed":
		event.Type = WebhookCollectionFailed
	}

	if event.Type != WebhookIgnored && event.Reference == "" {
		return WebhookEvent{}, errors.New("lenco: webhook payload missing reference")
	}
	return event, nil
}

func (p *LencoProvider) call(ctx context.Context, method, path string, body any) (lencoTransactionData, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return lencoTransactionData{}, nil, fmt.Errorf("lenco: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return lencoTransactionData{}, nil, fmt.Errorf("lenco: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return lencoTransactionData{}, nil, fmt.Errorf("lenco: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return lencoTransactionData{}, nil, fmt.Errorf("lenco: read response: %w", err)
	}

	var envelope lencoEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return lencoTransactionData{}, nil, fmt.Errorf("lenco: decode response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return lencoTransactionData{}, nil, fmt.Errorf("lenco: %s %s failed (http %d): %s", method, path, resp.StatusCode, message)
	}

	var data lencoTransactionData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return lencoTransactionData{}, nil, fmt.Errorf("lenco: decode response data: %w", err)
		}
	}

	raw := map[string]any{}
	_ = json.Unmarshal(payload, &raw)
	return data, raw, nil
}

// deriveSigningKey hashes the shared secret to produce the HMAC key. The
// gateway signs with the derived key, not the raw secret.
func deriveSigningKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// normalizeAmount converts a wire amount to the currency's minor unit.
// Integral values are already minor units; decimal values are major units
// with a fractional part and are scaled by 100.
func normalizeAmount(value json.Number) int64 {
	s := strings.TrimSpace(value.String())
	if s == "" {
		return 0
	}
	if !strings.Contains(s, ".") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return 0
	}
	f, err := value.Float64()
	if err != nil {
		return 0
	}
	minor := f * 100
	if minor >= 0 {
		return int64(minor + 0.5)
	}
	return int64(minor - 0.5)
}

func randomDigits(n int) string {
	max := big.NewInt(10)
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteString(d.String())
	}
	return b.String()
}
