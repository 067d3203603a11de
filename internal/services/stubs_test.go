package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/luxury-beauty/api/internal/domain"
	"github.com/luxury-beauty/api/internal/payments"
	"github.com/luxury-beauty/api/internal/repositories"
)

type stubOrderRepo struct {
	createFn       func(context.Context, domain.Order, repositories.OrderCreateOptions) (domain.Order, error)
	findByIDFn     func(context.Context, string) (domain.Order, error)
	findByNumberFn func(context.Context, string) (domain.Order, error)
	listFn         func(context.Context, repositories.OrderListFilter) ([]domain.Order, string, error)
	transitionFn   func(context.Context, string, repositories.OrderTransition) (domain.Order, error)
}

func (s *stubOrderRepo) Create(ctx context.Context, order domain.Order, opts repositories.OrderCreateOptions) (domain.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, order, opts)
	}
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if s.findByNumberFn != nil {
		return s.findByNumberFn(ctx, orderNumber)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, string, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, "", nil
}

func (s *stubOrderRepo) Transition(ctx context.Context, orderID string, update repositories.OrderTransition) (domain.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, orderID, update)
	}
	return domain.Order{}, errors.New("not implemented")
}

type stubPaymentRepo struct {
	insertFn          func(context.Context, domain.PaymentTransaction) error
	findByReferenceFn func(context.Context, string) (domain.PaymentTransaction, error)
	listByOrderFn     func(context.Context, string) ([]domain.PaymentTransaction, error)
	markSucceededFn   func(context.Context, string, map[string]any, time.Time) (repositories.PaymentCommit, error)
	markFailedFn      func(context.Context, string, map[string]any, time.Time) (repositories.PaymentCommit, error)
}

func (s *stubPaymentRepo) Insert(ctx context.Context, transaction domain.PaymentTransaction) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, transaction)
	}
	return nil
}

func (s *stubPaymentRepo) FindByReference(ctx context.Context, reference string) (domain.PaymentTransaction, error) {
	if s.findByReferenceFn != nil {
		return s.findByReferenceFn(ctx, reference)
	}
	return domain.PaymentTransaction{}, errors.New("not implemented")
}

func (s *stubPaymentRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error) {
	if s.listByOrderFn != nil {
		return s.listByOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubPaymentRepo) MarkSucceeded(ctx context.Context, reference string, raw map[string]any, at time.Time) (repositories.PaymentCommit, error) {
	if s.markSucceededFn != nil {
		return s.markSucceededFn(ctx, reference, raw, at)
	}
	return repositories.PaymentCommit{}, errors.New("not implemented")
}

func (s *stubPaymentRepo) MarkFailed(ctx context.Context, reference string, raw map[string]any, at time.Time) (repositories.PaymentCommit, error) {
	if s.markFailedFn != nil {
		return s.markFailedFn(ctx, reference, raw, at)
	}
	return repositories.PaymentCommit{}, errors.New("not implemented")
}

type stubCatalogRepo struct {
	findProductsFn func(context.Context, []string) (map[string]domain.Product, error)
}

func (s *stubCatalogRepo) FindProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findProductsFn != nil {
		return s.findProductsFn(ctx, productIDs)
	}
	return map[string]domain.Product{}, nil
}

type stubDiscountRepo struct {
	findByCodeFn func(context.Context, string) (domain.DiscountCode, error)
}

func (s *stubDiscountRepo) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	if s.findByCodeFn != nil {
		return s.findByCodeFn(ctx, code)
	}
	return domain.DiscountCode{}, notFoundError{}
}

type stubShippingRepo struct {
	findByIDFn           func(context.Context, string) (domain.ShippingRate, error)
	findActiveByRegionFn func(context.Context, domain.Region) (domain.ShippingRate, error)
}

func (s *stubShippingRepo) FindByID(ctx context.Context, rateID string) (domain.ShippingRate, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, rateID)
	}
	return domain.ShippingRate{}, notFoundError{}
}

func (s *stubShippingRepo) FindActiveByRegion(ctx context.Context, region domain.Region) (domain.ShippingRate, error) {
	if s.findActiveByRegionFn != nil {
		return s.findActiveByRegionFn(ctx, region)
	}
	return domain.ShippingRate{}, notFoundError{}
}

type stubAuditRepo struct {
	appendFn func(context.Context, domain.AuditRecord) error
	records  []domain.AuditRecord
}

func (s *stubAuditRepo) Append(ctx context.Context, record domain.AuditRecord) error {
	if s.appendFn != nil {
		return s.appendFn(ctx, record)
	}
	s.records = append(s.records, record)
	return nil
}

type stubProvider struct {
	name          string
	generateRefFn func(string) string
	initializeFn  func(context.Context, payments.InitializeRequest) (payments.Collection, error)
	verifyFn      func(context.Context, string) (payments.VerifyResult, error)
	verifySigFn   func([]byte, string) bool
	parseFn       func([]byte) (payments.WebhookEvent, error)
}

func (s *stubProvider) Name() string {
	if s.name != "" {
		return s.name
	}
	return "lenco"
}

func (s *stubProvider) GenerateReference(orderID string) string {
	if s.generateRefFn != nil {
		return s.generateRefFn(orderID)
	}
	return "ref-" + orderID
}

func (s *stubProvider) InitializeCollection(ctx context.Context, req payments.InitializeRequest) (payments.Collection, error) {
	if s.initializeFn != nil {
		return s.initializeFn(ctx, req)
	}
	return payments.Collection{Reference: req.Reference, Provider: s.Name(), AuthorizationURL: "https://pay.example/" + req.Reference}, nil
}

func (s *stubProvider) Verify(ctx context.Context, reference string) (payments.VerifyResult, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, reference)
	}
	return payments.VerifyResult{}, errors.New("not implemented")
}

func (s *stubProvider) VerifyWebhookSignature(payload []byte, signature string) bool {
	if s.verifySigFn != nil {
		return s.verifySigFn(payload, signature)
	}
	return true
}

func (s *stubProvider) ParseWebhook(payload []byte) (payments.WebhookEvent, error) {
	if s.parseFn != nil {
		return s.parseFn(payload)
	}
	return payments.WebhookEvent{Type: payments.WebhookIgnored}, nil
}

type stubNotifications struct {
	sendFn func(context.Context, domain.Order) error
	sent   []domain.Order
}

func (s *stubNotifications) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	if s.sendFn != nil {
		return s.sendFn(ctx, order)
	}
	s.sent = append(s.sent, order)
	return nil
}

type stubEmailPublisher struct {
	publishFn func(context.Context, EmailJobMessage) (string, error)
	messages  []EmailJobMessage
}

func (s *stubEmailPublisher) PublishEmailJob(ctx context.Context, message EmailJobMessage) (string, error) {
	if s.publishFn != nil {
		return s.publishFn(ctx, message)
	}
	s.messages = append(s.messages, message)
	return "job-1", nil
}

type notFoundError struct{}

func (notFoundError) Error() string       { return "not found" }
func (notFoundError) IsNotFound() bool    { return true }
func (notFoundError) IsConflict() bool    { return false }
func (notFoundError) IsUnavailable() bool { return false }

type conflictError struct{}

func (conflictError) Error() string       { return "conflict" }
func (conflictError) IsNotFound() bool    { return false }
func (conflictError) IsConflict() bool    { return true }
func (conflictError) IsUnavailable() bool { return false }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}
