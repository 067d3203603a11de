package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	domain "github.com/luxury-beauty/api/internal/domain"
	platform "github.com/luxury-beauty/api/internal/platform/firestore"
	"github.com/luxury-beauty/api/internal/repositories"
)

// PaymentRepository persists payment transactions keyed by their gateway
// reference. The reference doubles as the document id, which makes the
// conditional terminal writes natural: read the document, check PENDING,
// write, all inside one serializable transaction.
type PaymentRepository struct {
	provider *platform.Provider
	base     *platform.BaseRepository[paymentDocument]
}

// NewPaymentRepository builds a payment repository bound to the provider.
func NewPaymentRepository(provider *platform.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: payment repository requires provider")
	}
	return &PaymentRepository{
		provider: provider,
		base:     platform.NewBaseRepository[paymentDocument](provider, paymentsCollection, nil, nil),
	}, nil
}

// Insert stores a new PENDING transaction. A duplicate reference surfaces as
// a conflict.
func (r *PaymentRepository) Insert(ctx context.Context, transaction domain.PaymentTransaction) error {
	reference := strings.TrimSpace(transaction.Reference)
	if reference == "" {
		return errors.New("firestore: payment reference is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(paymentsCollection).Doc(reference)
	if _, err := ref.Create(ctx, encodePayment(transaction)); err != nil {
		return platform.WrapError("payments.insert", err)
	}
	return nil
}

// FindByReference fetches a transaction by its gateway reference.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (domain.PaymentTransaction, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(reference))
	if err != nil {
		return domain.PaymentTransaction{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByOrder returns every collection attempt recorded for an order, oldest
// first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentTransaction, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	transactions := make([]domain.PaymentTransaction, 0, len(docs))
	for _, doc := range docs {
		transactions = append(transactions, doc.Data.toDomain(doc.ID))
	}
	return transactions, nil
}

// MarkSucceeded flips the transaction to SUCCESS and its order to PAID in one
// transaction. The write is conditional on the stored status still being
// PENDING: of two racing callers exactly one commits, the other reads the
// terminal state back with AlreadyFinal set.
func (r *PaymentRepository) MarkSucceeded(ctx context.Context, reference string, raw map[string]any, at time.Time) (repositories.PaymentCommit, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return repositories.PaymentCommit{}, errors.New("firestore: payment reference is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.PaymentCommit{}, err
	}

	var commit repositories.PaymentCommit
	err = platform.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		paymentRef := client.Collection(paymentsCollection).Doc(reference)
		paymentSnap, err := tx.Get(paymentRef)
		if err != nil {
			return platform.WrapError("payments.mark_succeeded", err)
		}
		var payment paymentDocument
		if err := paymentSnap.DataTo(&payment); err != nil {
			return fmt.Errorf("firestore: decode payment %s: %w", reference, err)
		}

		orderRef := client.Collection(ordersCollection).Doc(payment.OrderID)
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return platform.WrapError("payments.mark_succeeded", err)
		}
		var order orderDocument
		if err := orderSnap.DataTo(&order); err != nil {
			return fmt.Errorf("firestore: decode order %s: %w", payment.OrderID, err)
		}

		switch domain.PaymentStatus(payment.Status) {
		case domain.PaymentStatusSuccess:
			commit = repositories.PaymentCommit{
				Transaction:  payment.toDomain(reference),
				Order:        order.toDomain(payment.OrderID),
				AlreadyFinal: true,
			}
			return nil
		case domain.PaymentStatusFailed:
			return platform.WrapError("payments.mark_succeeded", grpcstatus.Error(codes.FailedPrecondition,
				"transaction already failed"))
		}

		switch domain.OrderStatus(order.Status) {
		case domain.OrderStatusAwaitingPayment, domain.OrderStatusPlaced:
		default:
			return platform.WrapError("payments.mark_succeeded", grpcstatus.Errorf(codes.FailedPrecondition,
				"order is %s, cannot mark paid", order.Status))
		}

		payment.Status = string(domain.PaymentStatusSuccess)
		payment.UpdatedAt = at
		if len(raw) > 0 {
			payment.RawPayload = raw
		}
		order.Status = string(domain.OrderStatusPaid)
		order.UpdatedAt = at
		order.PaidAt = &at

		if err := tx.Set(paymentRef, payment); err != nil {
			return platform.WrapError("payments.mark_succeeded", err)
		}
		if err := tx.Set(orderRef, order); err != nil {
			return platform.WrapError("payments.mark_succeeded", err)
		}

		commit = repositories.PaymentCommit{
			Transaction: payment.toDomain(reference),
			Order:       order.toDomain(payment.OrderID),
		}
		return nil
	})
	if err != nil {
		return repositories.PaymentCommit{}, err
	}
	return commit, nil
}

// MarkFailed flips the transaction to FAILED and cancels its order, restoring
// stock for every item, in one transaction. A transaction that already
// reached a terminal state is returned unchanged with AlreadyFinal set:
// SUCCESS wins any race and a repeated failed webhook is a no-op.
func (r *PaymentRepository) MarkFailed(ctx context.Context, reference string, raw map[string]any, at time.Time) (repositories.PaymentCommit, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return repositories.PaymentCommit{}, errors.New("firestore: payment reference is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.PaymentCommit{}, err
	}

	var commit repositories.PaymentCommit
	err = platform.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		paymentRef := client.Collection(paymentsCollection).Doc(reference)
		paymentSnap, err := tx.Get(paymentRef)
		if err != nil {
			return platform.WrapError("payments.mark_failed", err)
		}
		var payment paymentDocument
		if err := paymentSnap.DataTo(&payment); err != nil {
			return fmt.Errorf("firestore: decode payment %s: %w", reference, err)
		}

		orderRef := client.Collection(ordersCollection).Doc(payment.OrderID)
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return platform.WrapError("payments.mark_failed", err)
		}
		var order orderDocument
		if err := orderSnap.DataTo(&order); err != nil {
			return fmt.Errorf("firestore: decode order %s: %w", payment.OrderID, err)
		}

		if domain.PaymentStatus(payment.Status) != domain.PaymentStatusPending {
			commit = repositories.PaymentCommit{
				Transaction:  payment.toDomain(reference),
				Order:        order.toDomain(payment.OrderID),
				AlreadyFinal: true,
			}
			return nil
		}

		// The order is only cancelled while it is still waiting on this
		// payment. If another attempt already paid it, the failed attempt is
		// recorded without touching the order.
		cancelOrder := false
		switch domain.OrderStatus(order.Status) {
		case domain.OrderStatusAwaitingPayment, domain.OrderStatusPlaced:
			cancelOrder = true
		}

		var restores []stockWrite
		if cancelOrder {
			restores, err = readStockRestores(tx, client, order.Items)
			if err != nil {
				return err
			}
		}

		payment.Status = string(domain.PaymentStatusFailed)
		payment.UpdatedAt = at
		if len(raw) > 0 {
			payment.RawPayload = raw
		}
		if err := tx.Set(paymentRef, payment); err != nil {
			return platform.WrapError("payments.mark_failed", err)
		}

		if cancelOrder {
			order.Status = string(domain.OrderStatusCancelled)
			order.UpdatedAt = at
			order.CancelledAt = &at
			if err := tx.Set(orderRef, order); err != nil {
				return platform.WrapError("payments.mark_failed", err)
			}
			for _, restore := range restores {
				if err := tx.Set(restore.ref, restore.doc); err != nil {
					return platform.WrapError("payments.mark_failed", err)
				}
			}
		}

		commit = repositories.PaymentCommit{
			Transaction: payment.toDomain(reference),
			Order:       order.toDomain(payment.OrderID),
		}
		return nil
	})
	if err != nil {
		return repositories.PaymentCommit{}, err
	}
	return commit, nil
}
