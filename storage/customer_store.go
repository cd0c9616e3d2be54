package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// PostgresStore keeps one JSONB document per customer, keyed by identity
// key, with the embedded order list inside the document. latest_order_at is
// derived from the embedded orders at write time so the incremental-sync
// cutoff is a single MAX() away.
type PostgresStore struct {
	db         *sql.DB
	logger     *utils.Logger
	batchSize  int
	batchDelay time.Duration
}

// BatchError reports a batched write that failed partway. Batches commit
// sequentially with no cross-batch atomicity: Committed documents are
// durable, the rest were never written. The caller decides whether to retry.
type BatchError struct {
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batched write failed after %d documents committed: %v", e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// NewPostgresStore connects to PostgreSQL, waits for it to become reachable,
// runs migrations and returns a ready store.
func NewPostgresStore(dsn string, logger *utils.Logger, batchSize, batchDelayMs int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Logger:      logger,
	}
	if err := retry.Do("postgres ping", db.Ping); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if batchSize < 1 {
		batchSize = 100
	}

	s := &PostgresStore{
		db:         db,
		logger:     logger,
		batchSize:  batchSize,
		batchDelay: time.Duration(batchDelayMs) * time.Millisecond,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS customers (
			identity_key    TEXT        PRIMARY KEY,
			doc             JSONB       NOT NULL,
			latest_order_at TIMESTAMPTZ,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_customers_latest_order_at
			ON customers(latest_order_at DESC NULLS LAST);
	`)
	return err
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Clear deletes all customer documents and reports how many were removed.
func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM customers")
	if err != nil {
		return 0, fmt.Errorf("postgres: clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SaveAll groups the full order set into customer documents and writes them
// in sequential batches, clearing any previous collection first. On failure
// the returned BatchError says how many documents were already durable.
func (s *PostgresStore) SaveAll(ctx context.Context, orders []*models.Order) (int, error) {
	customers := GroupOrders(orders)
	if len(customers) == 0 {
		return 0, nil
	}

	deleted, err := s.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("[store] Cleared %d existing customer documents", deleted)

	written, err := s.writeDocs(ctx, customers)
	if err != nil {
		return written, err
	}
	s.logger.Info("[store] Saved %d orders as %d customer documents", len(orders), written)
	return written, nil
}

// SaveIncremental merges new orders into existing customer documents: for
// each affected identity key the stored document is fetched, the new orders
// appended (orders already embedded are skipped by order id) and the
// document rewritten. Keys without a document get a fresh one.
func (s *PostgresStore) SaveIncremental(ctx context.Context, orders []*models.Order) (int, error) {
	incoming := GroupOrders(orders)
	if len(incoming) == 0 {
		return 0, nil
	}

	committed := 0
	added := 0
	for start := 0; start < len(incoming); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return added, &BatchError{Committed: committed, Err: err}
		}

		end := start + s.batchSize
		if end > len(incoming) {
			end = len(incoming)
		}
		chunk := incoming[start:end]

		merged, appended, err := s.mergeChunk(ctx, chunk)
		if err != nil {
			return added, &BatchError{Committed: committed, Err: err}
		}
		if err := s.upsertBatch(ctx, merged); err != nil {
			return added, &BatchError{Committed: committed, Err: err}
		}
		committed += len(merged)
		added += appended

		s.pause(ctx, end < len(incoming))
	}

	s.logger.Info("[store] Upserted %d customer documents (%d new orders)", committed, added)
	return added, nil
}

// mergeChunk loads any existing documents for the chunk's keys and appends
// the incoming orders to them.
func (s *PostgresStore) mergeChunk(ctx context.Context, chunk []*models.Customer) ([]*models.Customer, int, error) {
	keys := make([]string, len(chunk))
	for i, c := range chunk {
		keys[i] = c.IdentityKey
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT identity_key, doc FROM customers WHERE identity_key = ANY($1)",
		pq.Array(keys))
	if err != nil {
		return nil, 0, fmt.Errorf("fetch existing documents: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]*models.Customer, len(chunk))
	for rows.Next() {
		var key string
		var doc []byte
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		var c models.Customer
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, 0, fmt.Errorf("decode document %q: %w", key, err)
		}
		existing[key] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	merged := make([]*models.Customer, 0, len(chunk))
	appended := 0
	for _, inc := range chunk {
		cur, ok := existing[inc.IdentityKey]
		if !ok {
			merged = append(merged, inc)
			appended += len(inc.Orders)
			continue
		}

		have := make(map[string]struct{}, len(cur.Orders))
		for _, o := range cur.Orders {
			have[o.OrderID] = struct{}{}
		}
		for _, o := range inc.Orders {
			if _, dup := have[o.OrderID]; dup {
				s.logger.Debug("[store] Order %s already embedded in %s, skipping", o.OrderID, inc.IdentityKey)
				continue
			}
			cur.Orders = append(cur.Orders, o)
			appended++
		}
		fillContact(cur, inc)
		merged = append(merged, cur)
	}
	return merged, appended, nil
}

// writeDocs inserts customer documents in sequential batches, honoring
// cancellation between batches and pacing them when a delay is configured.
func (s *PostgresStore) writeDocs(ctx context.Context, customers []*models.Customer) (int, error) {
	committed := 0
	for start := 0; start < len(customers); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return committed, &BatchError{Committed: committed, Err: err}
		}

		end := start + s.batchSize
		if end > len(customers) {
			end = len(customers)
		}
		if err := s.upsertBatch(ctx, customers[start:end]); err != nil {
			return committed, &BatchError{Committed: committed, Err: err}
		}
		committed += end - start

		s.pause(ctx, end < len(customers))
	}
	return committed, nil
}

// upsertBatch writes one batch of documents with a multi-row upsert.
func (s *PostgresStore) upsertBatch(ctx context.Context, batch []*models.Customer) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*3)

	for idx, c := range batch {
		sanitize(c)
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode document %q: %w", c.IdentityKey, err)
		}

		var latest interface{}
		if o := LatestOrderDate(c); o != nil {
			latest = *o.OrderDate
		}

		base := idx * 3
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d)", base+1, base+2, base+3))
		valueArgs = append(valueArgs, c.IdentityKey, doc, latest)
	}

	query := fmt.Sprintf(`
		INSERT INTO customers (identity_key, doc, latest_order_at)
		VALUES %s
		ON CONFLICT (identity_key) DO UPDATE SET
			doc             = EXCLUDED.doc,
			latest_order_at = EXCLUDED.latest_order_at,
			updated_at      = NOW()
	`, strings.Join(valueStrings, ","))

	if _, err := s.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// LoadCustomers reads every document, most recent order first.
func (s *PostgresStore) LoadCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM customers
		ORDER BY latest_order_at DESC NULLS LAST, identity_key
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres: scan document: %w", err)
		}
		var c models.Customer
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("postgres: decode document: %w", err)
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}

// LoadOrders flattens every document's embedded orders into one list — the
// inverse of the grouping performed on save, so downstream consumers always
// see a flat order set.
func (s *PostgresStore) LoadOrders(ctx context.Context) ([]*models.Order, error) {
	customers, err := s.LoadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return FlattenOrders(customers), nil
}

// LatestOrderDate returns the newest order date present in the store. The
// bool is false when the store is empty or no stored order carries a valid
// date.
func (s *PostgresStore) LatestOrderDate(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(latest_order_at) FROM customers").Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("postgres: latest order date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time, true, nil
}

// pause sleeps between batches when pacing is configured, waking early on
// cancellation. The next loop iteration surfaces the context error.
func (s *PostgresStore) pause(ctx context.Context, more bool) {
	if !more || s.batchDelay <= 0 {
		return
	}
	select {
	case <-time.After(s.batchDelay):
	case <-ctx.Done():
	}
}

// sanitize enforces the storage invariant that a document never carries a
// null field: slices are made non-nil so they encode as [] instead of null.
// Optional scalar fields are omitted by their JSON tags when empty.
func sanitize(c *models.Customer) {
	if c.Orders == nil {
		c.Orders = []*models.Order{}
	}
	for _, o := range c.Orders {
		if o.Items == nil {
			o.Items = []models.LineItem{}
		}
	}
}

// fillContact copies contact fields a stored document is missing from the
// incoming one, mirroring GroupOrders' first-non-empty policy.
func fillContact(dst, src *models.Customer) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.City == "" {
		dst.City = src.City
	}
	if dst.Identity == "" {
		dst.Identity = src.Identity
	}
}
