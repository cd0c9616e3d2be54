package services

import (
	"strings"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// Column contract for the billing-detail export: one row per purchased line
// item, sharing the order id with the order report.
const (
	ColBillingOrderID = "numero de orden"
	ColSKU            = "sku"
	ColProduct        = "nombre del producto"
	ColTotal          = "total"
)

var requiredBillingColumns = []string{ColBillingOrderID, ColTotal}

// OrderBilling is the per-order aggregate of billing line items.
type OrderBilling struct {
	TotalAmount float64
	Items       []models.LineItem
}

// BillingSummary maps order ids to their billing aggregate. Keys preserves
// the first-seen order of ids so diagnostics stay deterministic.
type BillingSummary struct {
	ByOrder map[string]*OrderBilling
	Keys    []string
}

// Aggregator collapses billing line-item rows into one aggregate per order.
type Aggregator struct {
	logger *utils.Logger
}

// NewAggregator creates an Aggregator with the given logger.
func NewAggregator(logger *utils.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate groups billing rows by order id, summing line totals and
// collecting line items in their original row order. Rows with an empty
// order id are dropped with a warning; a bad line total defaults to 0 for
// that line only.
func (a *Aggregator) Aggregate(rows []models.RawRow) (*BillingSummary, error) {
	summary := &BillingSummary{ByOrder: make(map[string]*OrderBilling)}
	if len(rows) == 0 {
		return summary, nil
	}
	if err := checkColumns(rows[0], requiredBillingColumns, "billing detail"); err != nil {
		return nil, err
	}

	var dropped int
	for _, row := range rows {
		orderID := strings.TrimSpace(row[ColBillingOrderID])
		if orderID == "" {
			dropped++
			continue
		}

		agg, ok := summary.ByOrder[orderID]
		if !ok {
			agg = &OrderBilling{}
			summary.ByOrder[orderID] = agg
			summary.Keys = append(summary.Keys, orderID)
		}

		total := ParseAmount(row[ColTotal])
		agg.TotalAmount += total
		agg.Items = append(agg.Items, models.LineItem{
			SKU:         NormalizeText(row[ColSKU]),
			Description: NormalizeText(row[ColProduct]),
			Total:       total,
		})
	}

	if dropped > 0 {
		a.logger.Warn("[aggregator] Dropped %d billing rows with empty order id", dropped)
	}
	a.logger.Info("[aggregator] Aggregated %d billing rows into %d orders",
		len(rows), len(summary.Keys))
	return summary, nil
}
