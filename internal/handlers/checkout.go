package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/platform/auth"
	"github.com/luxury-beauty/api/internal/platform/httpx"
	"github.com/luxury-beauty/api/internal/services"
)

const (
	maxCheckoutRequestBody = 32 * 1024
	maxCustomerNotesLength = 1000
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds allowed size")
)

// notesPolicy strips all markup from free-form customer input before it is
// stored or rendered into email.
var notesPolicy = bluemonday.StrictPolicy()

// CheckoutHandlers exposes the order placement endpoint. Authentication is
// optional so guests can check out with contact details alone.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.OptionalFirebaseAuth())
	}
	group.Post("/", h.placeOrder)
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type checkoutCustomerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Town     string `json:"town"`
	Province string `json:"province"`
}

type checkoutRequest struct {
	Items          []checkoutItemRequest   `json:"items"`
	Customer       checkoutCustomerRequest `json:"customer"`
	PaymentMethod  string                  `json:"paymentMethod"`
	DiscountCode   string                  `json:"discountCode"`
	ShippingRateID string                  `json:"shippingRateId"`
	Notes          string                  `json:"notes"`
	CallbackURL    string                  `json:"callbackUrl"`
}

type checkoutPaymentPayload struct {
	Reference        string `json:"reference,omitempty"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
	Pending          bool   `json:"pending,omitempty"`
}

type checkoutResponse struct {
	Order   orderPayload            `json:"order"`
	Payment *checkoutPaymentPayload `json:"payment,omitempty"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	userID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		userID = strings.TrimSpace(identity.UID)
	}

	notes := truncateNotes(strings.TrimSpace(notesPolicy.Sanitize(req.Notes)), maxCustomerNotesLength)

	cmd := services.CheckoutCommand{
		UserID:         userID,
		Items:          make([]services.CheckoutItemInput, 0, len(req.Items)),
		Name:           strings.TrimSpace(req.Customer.Name),
		Email:          strings.TrimSpace(req.Customer.Email),
		Phone:          strings.TrimSpace(req.Customer.Phone),
		Address:        strings.TrimSpace(req.Customer.Address),
		Town:           strings.TrimSpace(req.Customer.Town),
		Province:       strings.TrimSpace(req.Customer.Province),
		Method:         domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		DiscountCode:   strings.TrimSpace(req.DiscountCode),
		ShippingRateID: strings.TrimSpace(req.ShippingRateID),
		CustomerNotes:  notes,
		CallbackURL:    strings.TrimSpace(req.CallbackURL),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CheckoutItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: strings.TrimSpace(item.VariantID),
			Quantity:  item.Quantity,
		})
	}

	result, err := h.checkout.PlaceOrder(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	resp := checkoutResponse{Order: buildOrderPayload(result.Order)}
	if result.PaymentReference != "" || result.AuthorizationURL != "" || result.PaymentPending {
		resp.Payment = &checkoutPaymentPayload{
			Reference:        result.PaymentReference,
			AuthorizationURL: result.AuthorizationURL,
			Pending:          result.PaymentPending,
		}
	}

	writeJSONResponse(w, http.StatusCreated, resp)
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrServiceUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to place order", http.StatusInternalServerError))
	}
}

// truncateNotes caps notes at limit bytes without splitting a rune.
func truncateNotes(notes string, limit int) string {
	if len(notes) <= limit {
		return notes
	}
	for limit > 0 && !utf8.RuneStart(notes[limit]) {
		limit--
	}
	return notes[:limit]
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxCheckoutRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
