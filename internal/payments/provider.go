package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised collection states shared across providers.
type Status string

const (
	// StatusPending indicates the gateway has not settled the collection yet.
	// Pending must never be treated as failure.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports funds as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a declined or failed collection.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the registry cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// InitializeRequest captures the payload required to start a hosted collection.
// Amount is in the currency's minor unit; each adapter converts to its wire
// convention internally.
type InitializeRequest struct {
	OrderID       string
	Reference     string
	Amount        int64
	Currency      string
	CustomerEmail string
	CallbackURL   string
}

// Collection represents an initialised hosted collection returned to the client.
type Collection struct {
	Reference        string
	Provider         string
	AuthorizationURL string
	AccessCode       string
	Raw              map[string]any
}

// VerifyResult normalises a gateway's answer to "what happened to this
// reference". Exactly one of Succeeded/Pending is set for the non-terminal
// outcomes; both false means failed or declined.
type VerifyResult struct {
	Reference string
	Succeeded bool
	Pending   bool
	Amount    int64
	Currency  string
	PaidAt    *time.Time
	Raw       map[string]any
}

// WebhookEvent is the parsed, signature-verified payload of a gateway push.
type WebhookEvent struct {
	Type      WebhookEventType
	Reference string
	Amount    int64
	Currency  string
	Raw       map[string]any
}

// WebhookEventType classifies the gateway push events reconciliation reacts to.
type WebhookEventType string

const (
	// WebhookCollectionSucceeded signals a successful collection.
	WebhookCollectionSucceeded WebhookEventType = "collection.succeeded"
	// WebhookCollectionFailed signals an explicitly failed collection. This is
	// the only signal allowed to drive a transaction to FAILED.
	WebhookCollectionFailed WebhookEventType = "collection.failed"
	// WebhookIgnored covers event types reconciliation does not act on.
	WebhookIgnored WebhookEventType = "ignored"
)

// Provider defines the contract gateway adapters implement. Implementations
// must be safe for concurrent use.
type Provider interface {
	// Name returns the stable provider identifier stored on transactions.
	Name() string
	// GenerateReference produces a globally unique collection reference for an order.
	GenerateReference(orderID string) string
	// InitializeCollection starts a hosted collection and returns the redirect target.
	InitializeCollection(ctx context.Context, req InitializeRequest) (Collection, error)
	// Verify polls the gateway for the state of a reference.
	Verify(ctx context.Context, reference string) (VerifyResult, error)
	// VerifyWebhookSignature authenticates a raw webhook body against its header signature.
	VerifyWebhookSignature(payload []byte, signature string) bool
	// ParseWebhook decodes a raw webhook body into a normalised event.
	ParseWebhook(payload []byte) (WebhookEvent, error)
}

// Registry holds the configured providers and resolves them by payment method.
type Registry struct {
	providers       map[string]Provider
	defaultProvider string
}

// RegistryOption configures optional behaviour when building a Registry.
type RegistryOption func(*Registry)

// WithDefaultProvider overrides which provider handles requests without an
// explicit provider hint.
func WithDefaultProvider(name string) RegistryOption {
	return func(r *Registry) {
		r.defaultProvider = strings.TrimSpace(strings.ToLower(name))
	}
}

// NewRegistry constructs a Registry over the supplied providers.
func NewRegistry(providers []Provider, opts ...RegistryOption) (*Registry, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider registration")
		}
		key := strings.TrimSpace(strings.ToLower(p.Name()))
		if key == "" {
			return nil, fmt.Errorf("payments: provider %T has no name", p)
		}
		byName[key] = p
	}
	r := &Registry{providers: byName}
	if len(providers) == 1 {
		r.defaultProvider = strings.TrimSpace(strings.ToLower(providers[0].Name()))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the provider registered under name, or the default provider
// when name is empty.
func (r *Registry) Resolve(name string) (Provider, error) {
	if r == nil || len(r.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	key := strings.TrimSpace(strings.ToLower(name))
	if key == "" {
		key = r.defaultProvider
	}
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	return nil, ErrUnsupportedProvider
}
