package storage

import (
	"context"
	"time"

	"customer-rfm/models"
)

// CustomerStore is the document-store contract the pipeline depends on: a
// collection of customer documents with batched writes, per-key upsert and a
// latest-timestamp query. Any backend offering those can stand in.
type CustomerStore interface {
	// SaveAll replaces the collection with the grouped order set. Returns
	// the number of customer documents written.
	SaveAll(ctx context.Context, orders []*models.Order) (int, error)
	// SaveIncremental upserts the new orders into existing customer
	// documents by identity key. Returns the number of orders appended.
	SaveIncremental(ctx context.Context, orders []*models.Order) (int, error)
	// LoadCustomers reads every customer document, most recent order first.
	LoadCustomers(ctx context.Context) ([]*models.Customer, error)
	// LoadOrders flattens the collection back into a flat order list.
	LoadOrders(ctx context.Context) ([]*models.Order, error)
	// Clear deletes every document and reports how many were removed.
	Clear(ctx context.Context) (int64, error)
	// LatestOrderDate returns the most recent order date in the store. The
	// bool is false when the store is empty or holds no dated orders —
	// distinct from an order genuinely dated at the zero time.
	LatestOrderDate(ctx context.Context) (time.Time, bool, error)
	Close() error
}

// ReportWriter persists the per-customer RFM export.
type ReportWriter interface {
	WriteReport(profiles []*models.RFMProfile) error
	Close() error
}
