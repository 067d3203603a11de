package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Currency is the ISO 4217 code all monetary amounts are denominated in.
// Amounts are stored in the minor unit (ngwee).
const Currency = "ZMW"

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPlaced indicates a committed order that does not require online payment up front.
	OrderStatusPlaced OrderStatus = "PLACED"
	// OrderStatusAwaitingPayment indicates the order awaits an online payment collection.
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	// OrderStatusPaid indicates payment has been confirmed.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusPacked indicates the order has been picked and packed.
	OrderStatusPacked OrderStatus = "PACKED"
	// OrderStatusShipped indicates the order has left the warehouse.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled and stock restored.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded indicates the order was refunded after payment or delivery.
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// PaymentMethod enumerates how a customer chose to settle an order.
type PaymentMethod string

const (
	// PaymentMethodLenco routes payment through the hosted Lenco collection flow.
	PaymentMethodLenco PaymentMethod = "LENCO"
	// PaymentMethodManualMomo indicates a manually reconciled mobile-money transfer.
	PaymentMethodManualMomo PaymentMethod = "MANUAL_MOMO"
	// PaymentMethodPayOnDelivery indicates cash or mobile money collected on delivery.
	PaymentMethodPayOnDelivery PaymentMethod = "PAY_ON_DELIVERY"
)

// ShippingSnapshot is the contact and destination captured at order time.
// It is a frozen copy, never a live reference to an address record.
type ShippingSnapshot struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Town     string
	Province Province
}

// Order is the aggregate root of a purchase.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Status      OrderStatus
	Method      PaymentMethod

	Subtotal     int64
	Discount     int64
	ShippingCost int64
	Total        int64

	Shipping       ShippingSnapshot
	DiscountCodeID string
	CustomerNotes  string
	TrackingNumber string

	Items []OrderItem

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	PackedAt    *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
}

// OrderItem is an immutable line item snapshot owned by exactly one order.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	VariantID   string
	ProductName string
	VariantName string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
}

// PaymentStatus enumerates payment transaction states. SUCCESS and FAILED
// are terminal and are never overwritten.
type PaymentStatus string

const (
	// PaymentStatusPending indicates the gateway has not yet settled the collection.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusSuccess indicates funds were captured.
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	// PaymentStatusFailed indicates the gateway explicitly reported a failed collection.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// PaymentTransaction records one attempt to collect payment for an order.
// Reference is globally unique and doubles as the reconciliation idempotency key.
type PaymentTransaction struct {
	ID             string
	OrderID        string
	Reference      string
	Provider       string
	Amount         int64
	Currency       string
	Status         PaymentStatus
	CustomerEmail  string
	IdempotencyKey string
	RawPayload     map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DiscountType selects how a discount code prices against a subtotal.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the subtotal.
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	// DiscountTypeFlat discounts a fixed amount, capped at the subtotal.
	DiscountTypeFlat DiscountType = "FLAT"
)

// DiscountCode is a reusable promotional rule. UsedCount only ever increments.
type DiscountCode struct {
	ID        string
	Code      string
	Type      DiscountType
	Value     int64
	MinSpend  int64
	MaxUses   int
	UsedCount int
	StartsAt  time.Time
	EndsAt    time.Time
	Active    bool
}

// Product is the catalog view the order core reads: price, stock, flags.
type Product struct {
	ID        string
	Name      string
	Price     int64
	StockQty  int
	SoldCount int
	Active    bool
	Variants  []ProductVariant
}

// ProductVariant is a sellable variation carrying its own price and stock.
type ProductVariant struct {
	ID       string
	Name     string
	Price    int64
	StockQty int
	Active   bool
}

// ShippingRate prices flat-rate delivery for a region.
type ShippingRate struct {
	ID     string
	Label  string
	Region Region
	Amount int64
	Active bool
}

// AuditRecord captures a staff-initiated mutation for later review.
type AuditRecord struct {
	ID        string
	ActorID   string
	Action    string
	EntityID  string
	Detail    map[string]any
	CreatedAt time.Time
}
