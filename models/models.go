package models

import "time"

// RawRow is a single spreadsheet row keyed by normalized column header.
// It only lives during ingestion; nothing downstream of the normalizer and
// aggregator ever sees one.
type RawRow map[string]string

// LineItem is one purchased item inside an order. It has no identity of its
// own — it belongs to exactly one Order.
type LineItem struct {
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description,omitempty"`
	Total       float64 `json:"total"`
}

// OrderReportRow is a cleaned row from the order-report file, before billing
// totals have been joined in. OrderDate is nil when the raw date did not
// parse; such rows stay in the dataset but are excluded from any computation
// that needs a valid date.
type OrderReportRow struct {
	OrderID      string
	RawID        string
	CustomerName string
	Email        string
	Phone        string
	City         string
	Identity     string
	Channel      string
	OrderDate    *time.Time
}

// Order is the canonical joined entity persisted inside a Customer document.
// OrderID is unique across the dataset. Optional fields are omitted from the
// stored document when empty — the store never writes a null field.
type Order struct {
	OrderID      string     `json:"order_id"`
	RawID        string     `json:"raw_id"`
	CustomerName string     `json:"customer_name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	City         string     `json:"city,omitempty"`
	Identity     string     `json:"identity,omitempty"`
	OrderDate    *time.Time `json:"order_date,omitempty"`
	TotalAmount  float64    `json:"total_amount"`
	Items        []LineItem `json:"items"`
	Channel      string     `json:"channel,omitempty"`
}

// Customer is the persisted aggregate: one document per identity key with
// the full embedded order list. Customers are always reconstructed by
// grouping the flat order set, never created independently.
type Customer struct {
	IdentityKey string   `json:"identity_key"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	City        string   `json:"city,omitempty"`
	Identity    string   `json:"identity,omitempty"`
	Orders      []*Order `json:"orders"`
}

// RFMProfile holds the computed metrics, 1–5 scores and segment for one
// customer. Recency is in days and is +Inf when the customer has no order
// with a valid date. Profiles are recomputed on every analysis run and are
// never persisted.
type RFMProfile struct {
	Customer       *Customer
	Recency        float64
	Frequency      int
	Monetary       float64
	RecencyScore   int
	FrequencyScore int
	MonetaryScore  int
	TotalScore     int
	Segment        string
}

// SegmentStats aggregates one segment of the scored population.
type SegmentStats struct {
	Count      int
	Revenue    float64
	Percentage float64
	Members    []*RFMProfile
}

// AnalysisResult is the output of one RFM engine run.
type AnalysisResult struct {
	TotalCustomers int
	Profiles       []*RFMProfile
	Stats          map[string]*SegmentStats
	FallbackCount  int
}
