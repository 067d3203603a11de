package services

import (
	"context"

	domain "github.com/luxury-beauty/api/internal/domain"
)

// CheckoutItemInput is one cart line as submitted by the client. Prices are
// never part of the payload; they are recomputed from the catalog.
type CheckoutItemInput struct {
	ProductID string
	VariantID string
	Quantity  int
}

// CheckoutCommand carries everything needed to assemble an order.
type CheckoutCommand struct {
	UserID         string
	Items          []CheckoutItemInput
	Name           string
	Email          string
	Phone          string
	Address        string
	Town           string
	Province       string
	Method         domain.PaymentMethod
	DiscountCode   string
	ShippingRateID string
	CustomerNotes  string
	CallbackURL    string
}

// CheckoutResult reports the committed order and, for online payments, the
// initialized collection. PaymentPending is set when the order committed but
// gateway initialization failed; the client retries payment against the same
// order instead of re-submitting the cart.
type CheckoutResult struct {
	Order            domain.Order
	AuthorizationURL string
	PaymentReference string
	PaymentPending   bool
}

// CheckoutService assembles orders from cart payloads.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// ReconcileOutcome is the normalised answer every reconciliation entry point
// returns. AlreadyFinal marks an idempotent short-circuit: the stored outcome
// was returned and no side effect ran.
type ReconcileOutcome struct {
	Reference    string
	OrderID      string
	OrderNumber  string
	Succeeded    bool
	Pending      bool
	Failed       bool
	AlreadyFinal bool
}

// InitializePaymentCommand requests a fresh collection for an existing order.
type InitializePaymentCommand struct {
	OrderID     string
	UserID      string
	CallbackURL string
}

// PaymentInitialization reports a newly created PENDING transaction.
type PaymentInitialization struct {
	Reference        string
	AuthorizationURL string
}

// PaymentService owns gateway initialization and the reconciliation core.
// VerifyPayment serves both the client redirect callback and the bounded poll
// loop; HandleWebhook serves the provider push. All three converge on one
// idempotent procedure.
type PaymentService interface {
	InitializePayment(ctx context.Context, cmd InitializePaymentCommand) (PaymentInitialization, error)
	VerifyPayment(ctx context.Context, reference string) (ReconcileOutcome, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (ReconcileOutcome, error)
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	Status    domain.OrderStatus
	PageSize  int
	PageToken string
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders        []domain.Order
	NextPageToken string
}

// UpdateOrderStatusCommand is a staff-initiated fulfillment transition.
type UpdateOrderStatusCommand struct {
	OrderID        string
	ActorID        string
	Status         domain.OrderStatus
	TrackingNumber string
}

// OrderService exposes order reads and the fulfillment state machine.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetOrderForUser(ctx context.Context, userID, orderID string) (domain.Order, error)
	LookupGuestOrder(ctx context.Context, orderNumber, email string) (domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, query OrderListQuery) (OrderPage, error)
	ListOrders(ctx context.Context, query OrderListQuery) (OrderPage, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
}

// NotificationService dispatches customer email, fire and forget. Callers
// log and swallow failures; a send must never abort the transaction that
// triggered it.
type NotificationService interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
}

// EmailJobMessage is the payload handed to the out-of-process mail worker.
type EmailJobMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	OrderID string `json:"orderId,omitempty"`
}

// EmailJobPublisher enqueues email jobs for asynchronous delivery.
type EmailJobPublisher interface {
	PublishEmailJob(ctx context.Context, message EmailJobMessage) (string, error)
}
