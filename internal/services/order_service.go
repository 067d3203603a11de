package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/repositories"
)

// orderTransitions is the complete edge list of the fulfillment state
// machine. Any transition not listed is rejected.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPlaced:          {domain.OrderStatusAwaitingPayment, domain.OrderStatusPaid, domain.OrderStatusCancelled},
	domain.OrderStatusAwaitingPayment: {domain.OrderStatusPaid, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:            {domain.OrderStatusPacked, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusPacked:          {domain.OrderStatusShipped},
	domain.OrderStatusShipped:         {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:       {domain.OrderStatusRefunded},
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderServiceDeps lists collaborators for NewOrderService.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	AuditLogs   repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	auditLogs repositories.AuditLogRepository
	clock     func() time.Time
	idgen     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService builds the order read and fulfillment service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idgen := deps.IDGenerator
	if idgen == nil {
		idgen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		auditLogs: deps.AuditLogs,
		clock: func() time.Time {
			return clock().UTC()
		},
		idgen:  idgen,
		logger: logger,
	}, nil
}

// GetOrder fetches an order by id.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return order, nil
}

// GetOrderForUser fetches an order and enforces ownership.
func (s *orderService) GetOrderForUser(ctx context.Context, userID, orderID string) (domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID == "" || order.UserID != strings.TrimSpace(userID) {
		return domain.Order{}, ErrOrderAccessDenied
	}
	return order, nil
}

// LookupGuestOrder resolves an order by number and contact email. A wrong
// email reports not-found so order numbers cannot be probed.
func (s *orderService) LookupGuestOrder(ctx context.Context, orderNumber, email string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	email = strings.TrimSpace(email)
	if orderNumber == "" || email == "" {
		return domain.Order{}, fmt.Errorf("%w: order number and email are required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	if !strings.EqualFold(order.Shipping.Email, email) {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListUserOrders pages through a customer's own orders.
func (s *orderService) ListUserOrders(ctx context.Context, userID string, query OrderListQuery) (OrderPage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return OrderPage{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	return s.list(ctx, repositories.OrderListFilter{
		UserID: userID,
		Status: query.Status,
		Pager:  domain.Pagination{PageSize: query.PageSize, PageToken: query.PageToken},
	})
}

// ListOrders pages through all orders for the back office.
func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) (OrderPage, error) {
	return s.list(ctx, repositories.OrderListFilter{
		Status: query.Status,
		Pager:  domain.Pagination{PageSize: query.PageSize, PageToken: query.PageToken},
	})
}

func (s *orderService) list(ctx context.Context, filter repositories.OrderListFilter) (OrderPage, error) {
	if filter.Status != "" && !knownStatus(filter.Status) {
		return OrderPage{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}
	orders, next, err := s.orders.List(ctx, filter)
	if err != nil {
		return OrderPage{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return OrderPage{Orders: orders, NextPageToken: next}, nil
}

// UpdateStatus applies a staff transition. The edge list is checked against
// the currently stored status and re-checked conditionally inside the store
// transaction, so two conflicting staff actions cannot both commit. Entering
// CANCELLED restores stock for every item in the same transaction.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !knownStatus(cmd.Status) {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	if !canTransition(order.Status, cmd.Status) {
		return domain.Order{}, fmt.Errorf("%w: cannot transition from %s to %s", ErrOrderInvalidTransition, order.Status, cmd.Status)
	}

	tracking := ""
	if trackingAllowed(cmd.Status) {
		tracking = strings.TrimSpace(cmd.TrackingNumber)
	}

	updated, err := s.orders.Transition(ctx, cmd.OrderID, repositories.OrderTransition{
		From:           order.Status,
		To:             cmd.Status,
		TrackingNumber: tracking,
		At:             s.clock(),
	})
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}

	s.logger(ctx, "orders.status.updated", map[string]any{
		"orderId": updated.ID,
		"from":    string(order.Status),
		"to":      string(updated.Status),
	})
	s.appendAudit(ctx, cmd, order.Status)

	return updated, nil
}

func (s *orderService) appendAudit(ctx context.Context, cmd UpdateOrderStatusCommand, from domain.OrderStatus) {
	if s.auditLogs == nil {
		return
	}
	record := domain.AuditRecord{
		ID:       s.idgen(),
		ActorID:  cmd.ActorID,
		Action:   "order.status_updated",
		EntityID: cmd.OrderID,
		Detail: map[string]any{
			"from": string(from),
			"to":   string(cmd.Status),
		},
		CreatedAt: s.clock(),
	}
	if cmd.TrackingNumber != "" {
		record.Detail["trackingNumber"] = cmd.TrackingNumber
	}
	if err := s.auditLogs.Append(ctx, record); err != nil {
		s.logger(ctx, "orders.audit.failed", map[string]any{
			"orderId": cmd.OrderID,
			"error":   err.Error(),
		})
	}
}

func knownStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPlaced, domain.OrderStatusAwaitingPayment, domain.OrderStatusPaid,
		domain.OrderStatusPacked, domain.OrderStatusShipped, domain.OrderStatusDelivered,
		domain.OrderStatusCancelled, domain.OrderStatusRefunded:
		return true
	}
	return false
}

// trackingAllowed limits tracking numbers to the shipping-adjacent statuses.
func trackingAllowed(to domain.OrderStatus) bool {
	return to == domain.OrderStatusPacked || to == domain.OrderStatusShipped || to == domain.OrderStatusDelivered
}
