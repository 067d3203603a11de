package firestore

import (
	"strings"
	"time"

	domain "github.com/luxury-beauty/api/internal/domain"
)

const (
	ordersCollection        = "orders"
	paymentsCollection      = "paymentTransactions"
	productsCollection      = "products"
	discountCodesCollection = "discountCodes"
	shippingRatesCollection = "shippingRates"
	auditLogsCollection     = "auditLogs"
)

type orderItemDocument struct {
	ID          string `firestore:"id"`
	ProductID   string `firestore:"productId"`
	VariantID   string `firestore:"variantId,omitempty"`
	ProductName string `firestore:"productName"`
	VariantName string `firestore:"variantName,omitempty"`
	Quantity    int    `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
	LineTotal   int64  `firestore:"lineTotal"`
}

type orderDocument struct {
	OrderNumber    string              `firestore:"orderNumber"`
	UserID         string              `firestore:"userId,omitempty"`
	Status         string              `firestore:"status"`
	Method         string              `firestore:"paymentMethod"`
	Subtotal       int64               `firestore:"subtotal"`
	Discount       int64               `firestore:"discount"`
	ShippingCost   int64               `firestore:"shippingCost"`
	Total          int64               `firestore:"total"`
	ShippingName   string              `firestore:"shippingName"`
	ShippingEmail  string              `firestore:"shippingEmail"`
	ShippingPhone  string              `firestore:"shippingPhone"`
	ShippingAddr   string              `firestore:"shippingAddress"`
	ShippingTown   string              `firestore:"shippingTown"`
	ShippingProv   string              `firestore:"shippingProvince"`
	DiscountCodeID string              `firestore:"discountCodeId,omitempty"`
	CustomerNotes  string              `firestore:"customerNotes,omitempty"`
	TrackingNumber string              `firestore:"trackingNumber,omitempty"`
	Items          []orderItemDocument `firestore:"items"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
	PaidAt         *time.Time          `firestore:"paidAt,omitempty"`
	PackedAt       *time.Time          `firestore:"packedAt,omitempty"`
	ShippedAt      *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt    *time.Time          `firestore:"deliveredAt,omitempty"`
	CancelledAt    *time.Time          `firestore:"cancelledAt,omitempty"`
	RefundedAt     *time.Time          `firestore:"refundedAt,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return orderDocument{
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         string(order.Status),
		Method:         string(order.Method),
		Subtotal:       order.Subtotal,
		Discount:       order.Discount,
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		ShippingName:   order.Shipping.Name,
		ShippingEmail:  order.Shipping.Email,
		ShippingPhone:  order.Shipping.Phone,
		ShippingAddr:   order.Shipping.Address,
		ShippingTown:   order.Shipping.Town,
		ShippingProv:   string(order.Shipping.Province),
		DiscountCodeID: order.DiscountCodeID,
		CustomerNotes:  order.CustomerNotes,
		TrackingNumber: order.TrackingNumber,
		Items:          items,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		PaidAt:         order.PaidAt,
		PackedAt:       order.PackedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		RefundedAt:     order.RefundedAt,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ID:          item.ID,
			OrderID:     id,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return domain.Order{
		ID:           id,
		OrderNumber:  d.OrderNumber,
		UserID:       d.UserID,
		Status:       domain.OrderStatus(d.Status),
		Method:       domain.PaymentMethod(d.Method),
		Subtotal:     d.Subtotal,
		Discount:     d.Discount,
		ShippingCost: d.ShippingCost,
		Total:        d.Total,
		Shipping: domain.ShippingSnapshot{
			Name:     d.ShippingName,
			Email:    d.ShippingEmail,
			Phone:    d.ShippingPhone,
			Address:  d.ShippingAddr,
			Town:     d.ShippingTown,
			Province: domain.Province(d.ShippingProv),
		},
		DiscountCodeID: d.DiscountCodeID,
		CustomerNotes:  d.CustomerNotes,
		TrackingNumber: d.TrackingNumber,
		Items:          items,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		PaidAt:         d.PaidAt,
		PackedAt:       d.PackedAt,
		ShippedAt:      d.ShippedAt,
		DeliveredAt:    d.DeliveredAt,
		CancelledAt:    d.CancelledAt,
		RefundedAt:     d.RefundedAt,
	}
}

type paymentDocument struct {
	OrderID        string         `firestore:"orderId"`
	Reference      string         `firestore:"reference"`
	Provider       string         `firestore:"provider"`
	Amount         int64          `firestore:"amount"`
	Currency       string         `firestore:"currency"`
	Status         string         `firestore:"status"`
	CustomerEmail  string         `firestore:"customerEmail,omitempty"`
	IdempotencyKey string         `firestore:"idempotencyKey"`
	RawPayload     map[string]any `firestore:"rawPayload,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
}

func encodePayment(tx domain.PaymentTransaction) paymentDocument {
	return paymentDocument{
		OrderID:        tx.OrderID,
		Reference:      tx.Reference,
		Provider:       tx.Provider,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Status:         string(tx.Status),
		CustomerEmail:  tx.CustomerEmail,
		IdempotencyKey: tx.IdempotencyKey,
		RawPayload:     tx.RawPayload,
		CreatedAt:      tx.CreatedAt,
		UpdatedAt:      tx.UpdatedAt,
	}
}

func (d paymentDocument) toDomain(id string) domain.PaymentTransaction {
	return domain.PaymentTransaction{
		ID:             id,
		OrderID:        d.OrderID,
		Reference:      d.Reference,
		Provider:       d.Provider,
		Amount:         d.Amount,
		Currency:       d.Currency,
		Status:         domain.PaymentStatus(d.Status),
		CustomerEmail:  d.CustomerEmail,
		IdempotencyKey: d.IdempotencyKey,
		RawPayload:     d.RawPayload,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type variantDocument struct {
	ID       string `firestore:"id"`
	Name     string `firestore:"name"`
	Price    int64  `firestore:"price"`
	StockQty int    `firestore:"stockQty"`
	Active   bool   `firestore:"active"`
}

type productDocument struct {
	Name      string            `firestore:"name"`
	Price     int64             `firestore:"price"`
	StockQty  int               `firestore:"stockQty"`
	SoldCount int               `firestore:"soldCount"`
	Active    bool              `firestore:"active"`
	Variants  []variantDocument `firestore:"variants,omitempty"`
}

func (d productDocument) toDomain(id string) domain.Product {
	variants := make([]domain.ProductVariant, 0, len(d.Variants))
	for _, v := range d.Variants {
		variants = append(variants, domain.ProductVariant{
			ID:       v.ID,
			Name:     v.Name,
			Price:    v.Price,
			StockQty: v.StockQty,
			Active:   v.Active,
		})
	}
	return domain.Product{
		ID:        id,
		Name:      d.Name,
		Price:     d.Price,
		StockQty:  d.StockQty,
		SoldCount: d.SoldCount,
		Active:    d.Active,
		Variants:  variants,
	}
}

type discountDocument struct {
	Code      string    `firestore:"code"`
	Type      string    `firestore:"type"`
	Value     int64     `firestore:"value"`
	MinSpend  int64     `firestore:"minSpend,omitempty"`
	MaxUses   int       `firestore:"maxUses,omitempty"`
	UsedCount int       `firestore:"usedCount"`
	StartsAt  time.Time `firestore:"startsAt"`
	EndsAt    time.Time `firestore:"endsAt"`
	Active    bool      `firestore:"active"`
}

func (d discountDocument) toDomain(id string) domain.DiscountCode {
	return domain.DiscountCode{
		ID:        id,
		Code:      d.Code,
		Type:      domain.DiscountType(d.Type),
		Value:     d.Value,
		MinSpend:  d.MinSpend,
		MaxUses:   d.MaxUses,
		UsedCount: d.UsedCount,
		StartsAt:  d.StartsAt,
		EndsAt:    d.EndsAt,
		Active:    d.Active,
	}
}

type shippingRateDocument struct {
	Label  string `firestore:"label"`
	Region string `firestore:"region"`
	Amount int64  `firestore:"amount"`
	Active bool   `firestore:"active"`
}

func (d shippingRateDocument) toDomain(id string) domain.ShippingRate {
	return domain.ShippingRate{
		ID:     id,
		Label:  d.Label,
		Region: domain.Region(d.Region),
		Amount: d.Amount,
		Active: d.Active,
	}
}

type auditDocument struct {
	ActorID   string         `firestore:"actorId"`
	Action    string         `firestore:"action"`
	EntityID  string         `firestore:"entityId"`
	Detail    map[string]any `firestore:"detail,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func discountDocID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
