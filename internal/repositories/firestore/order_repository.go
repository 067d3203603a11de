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
	"github.com/luxury-beauty/api/internal/platform/pagination"
	"github.com/luxury-beauty/api/internal/repositories"
)

// OrderRepository persists order aggregates in Firestore. Every multi-entity
// mutation (create with stock decrement, transition with stock restore) runs
// in a single Firestore transaction.
type OrderRepository struct {
	provider *platform.Provider
	base     *platform.BaseRepository[orderDocument]
}

// NewOrderRepository builds an order repository bound to the provider.
func NewOrderRepository(provider *platform.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: order repository requires provider")
	}
	return &OrderRepository{
		provider: provider,
		base:     platform.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// Create persists the order with its items, decrements stock per line and
// increments discount usage in one transaction. All reads happen before any
// write; the stock check inside the transaction is the last-line guard
// against a decrement crossing zero.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order, opts repositories.OrderCreateOptions) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("firestore: order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("firestore: order id is required")
	}
	if len(order.Items) == 0 {
		return domain.Order{}, errors.New("firestore: order requires at least one item")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	err = platform.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		type productUpdate struct {
			ref *firestore.DocumentRef
			doc productDocument
		}

		grouped := groupItemsByProduct(order.Items)
		updates := make([]productUpdate, 0, len(grouped))
		for _, group := range grouped {
			ref := client.Collection(productsCollection).Doc(group.productID)
			snap, err := tx.Get(ref)
			if err != nil {
				if grpcstatus.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorProductNotFound, group.productID, "", "product no longer exists")
				}
				return platform.WrapError("orders.create", err)
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore: decode product %s: %w", group.productID, err)
			}
			if err := applyStockDecrement(&doc, group.productID, group.items); err != nil {
				return err
			}
			updates = append(updates, productUpdate{ref: ref, doc: doc})
		}

		orderRef := client.Collection(ordersCollection).Doc(order.ID)
		if err := tx.Create(orderRef, encodeOrder(order)); err != nil {
			return platform.WrapError("orders.create", err)
		}
		for _, update := range updates {
			if err := tx.Set(update.ref, update.doc); err != nil {
				return platform.WrapError("orders.create", err)
			}
		}
		if codeID := discountDocID(opts.DiscountCodeID); codeID != "" {
			discountRef := client.Collection(discountCodesCollection).Doc(codeID)
			if err := tx.Update(discountRef, []firestore.Update{
				{Path: "usedCount", Value: firestore.Increment(1)},
			}); err != nil {
				return platform.WrapError("orders.create", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// FindByID fetches a single order aggregate.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByNumber fetches an order by its human-readable order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, grpcNotFound("orders.find_by_number", "order number is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", orderNumber).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, grpcNotFound("orders.find_by_number", "order not found")
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns orders newest first, optionally filtered by user and status,
// with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, string, error) {
	pageSize := filter.Pager.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pager.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return nil, "", err
		}
		startAfter, err = decodeOrderCursor(cursor)
		if err != nil {
			return nil, "", err
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if startAfter != nil {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return nil, "", err
	}

	nextToken := ""
	if len(docs) > pageSize {
		docs = docs[:pageSize]
		last := docs[len(docs)-1]
		nextToken, err = pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return nil, "", err
		}
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nextToken, nil
}

// Transition applies a conditional status change. The stored status must
// still equal update.From or the write aborts with a conflict. Entering
// CANCELLED restores stock for every item in the same transaction.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, update repositories.OrderTransition) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("firestore: order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err = platform.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef := client.Collection(ordersCollection).Doc(orderID)
		snap, err := tx.Get(orderRef)
		if err != nil {
			return platform.WrapError("orders.transition", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore: decode order %s: %w", orderID, err)
		}
		if doc.Status != string(update.From) {
			return platform.WrapError("orders.transition", grpcstatus.Errorf(codes.FailedPrecondition,
				"order status changed concurrently: have %s, expected %s", doc.Status, update.From))
		}

		var restores []stockWrite
		if update.To == domain.OrderStatusCancelled {
			restores, err = readStockRestores(tx, client, doc.Items)
			if err != nil {
				return err
			}
		}

		doc.Status = string(update.To)
		doc.UpdatedAt = update.At
		stampTimestamp(&doc, update.To, update.At)
		if tracking := strings.TrimSpace(update.TrackingNumber); tracking != "" {
			doc.TrackingNumber = tracking
		}

		if err := tx.Set(orderRef, doc); err != nil {
			return platform.WrapError("orders.transition", err)
		}
		for _, restore := range restores {
			if err := tx.Set(restore.ref, restore.doc); err != nil {
				return platform.WrapError("orders.transition", err)
			}
		}

		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func stampTimestamp(doc *orderDocument, to domain.OrderStatus, at time.Time) {
	switch to {
	case domain.OrderStatusPaid:
		doc.PaidAt = &at
	case domain.OrderStatusPacked:
		doc.PackedAt = &at
	case domain.OrderStatusShipped:
		doc.ShippedAt = &at
	case domain.OrderStatusDelivered:
		doc.DeliveredAt = &at
	case domain.OrderStatusCancelled:
		doc.CancelledAt = &at
	case domain.OrderStatusRefunded:
		doc.RefundedAt = &at
	}
}

type productGroup struct {
	productID string
	items     []orderItemDocument
}

func groupItemsByProduct(items []domain.OrderItem) []productGroup {
	index := make(map[string]int)
	groups := make([]productGroup, 0, len(items))
	for _, item := range items {
		doc := orderItemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
		if pos, ok := index[item.ProductID]; ok {
			groups[pos].items = append(groups[pos].items, doc)
			continue
		}
		index[item.ProductID] = len(groups)
		groups = append(groups, productGroup{productID: item.ProductID, items: []orderItemDocument{doc}})
	}
	return groups
}

// applyStockDecrement mutates the product document for every line of the
// group. Variant lines draw from variant stock; product lines draw from
// product stock and advance the sold-count.
func applyStockDecrement(doc *productDocument, productID string, items []orderItemDocument) error {
	if !doc.Active {
		return repositories.NewStockError(repositories.StockErrorProductNotFound, productID, "", "product is not active")
	}
	for _, item := range items {
		if item.VariantID != "" {
			variant := findVariant(doc, item.VariantID)
			if variant == nil || !variant.Active {
				return repositories.NewStockError(repositories.StockErrorVariantNotFound, productID, item.VariantID, "variant is not available")
			}
			if variant.StockQty < item.Quantity {
				return repositories.NewStockError(repositories.StockErrorInsufficient, productID, item.VariantID,
					fmt.Sprintf("insufficient stock for variant %s: have %d, want %d", item.VariantID, variant.StockQty, item.Quantity))
			}
			variant.StockQty -= item.Quantity
			continue
		}
		if doc.StockQty < item.Quantity {
			return repositories.NewStockError(repositories.StockErrorInsufficient, productID, "",
				fmt.Sprintf("insufficient stock for product %s: have %d, want %d", productID, doc.StockQty, item.Quantity))
		}
		doc.StockQty -= item.Quantity
		doc.SoldCount += item.Quantity
	}
	return nil
}

// applyStockRestore is the inverse of applyStockDecrement. Restores are
// clamped only at the sold-count floor; stock itself is added back verbatim.
func applyStockRestore(doc *productDocument, items []orderItemDocument) {
	for _, item := range items {
		if item.VariantID != "" {
			if variant := findVariant(doc, item.VariantID); variant != nil {
				variant.StockQty += item.Quantity
			}
			continue
		}
		doc.StockQty += item.Quantity
		doc.SoldCount -= item.Quantity
		if doc.SoldCount < 0 {
			doc.SoldCount = 0
		}
	}
}

func findVariant(doc *productDocument, variantID string) *variantDocument {
	for i := range doc.Variants {
		if doc.Variants[i].ID == variantID {
			return &doc.Variants[i]
		}
	}
	return nil
}

type stockWrite struct {
	ref *firestore.DocumentRef
	doc productDocument
}

// readStockRestores reads every product touched by the items and returns the
// restored documents ready to write. Missing products are skipped: a deleted
// catalog record must not block a cancellation.
func readStockRestores(tx *firestore.Transaction, client *firestore.Client, items []orderItemDocument) ([]stockWrite, error) {
	index := make(map[string]int)
	grouped := make([]productGroup, 0, len(items))
	for _, item := range items {
		if pos, ok := index[item.ProductID]; ok {
			grouped[pos].items = append(grouped[pos].items, item)
			continue
		}
		index[item.ProductID] = len(grouped)
		grouped = append(grouped, productGroup{productID: item.ProductID, items: []orderItemDocument{item}})
	}

	writes := make([]stockWrite, 0, len(grouped))
	for _, group := range grouped {
		ref := client.Collection(productsCollection).Doc(group.productID)
		snap, err := tx.Get(ref)
		if err != nil {
			if grpcstatus.Code(err) == codes.NotFound {
				continue
			}
			return nil, platform.WrapError("orders.restore_stock", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore: decode product %s: %w", group.productID, err)
		}
		applyStockRestore(&doc, group.items)
		writes = append(writes, stockWrite{ref: ref, doc: doc})
	}
	return writes, nil
}

// decodeOrderCursor unpacks a [createdAt, docID] cursor into Firestore
// StartAfter values, re-parsing the timestamp the token round-trips as JSON.
func decodeOrderCursor(cursor pagination.Cursor) ([]any, error) {
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	if len(cursor.StartAfter) != 2 {
		return nil, fmt.Errorf("%w: unexpected cursor shape", pagination.ErrInvalidPageToken)
	}
	rawCreatedAt, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: invalid createdAt cursor value", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || docID == "" {
		return nil, fmt.Errorf("%w: invalid document cursor value", pagination.ErrInvalidPageToken)
	}
	return []any{createdAt, docID}, nil
}

func grpcNotFound(op, message string) error {
	return platform.WrapError(op, grpcstatus.Error(codes.NotFound, message))
}
