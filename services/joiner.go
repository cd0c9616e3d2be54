package services

import (
	"time"

	"customer-rfm/models"
	"customer-rfm/utils"
)

// JoinResult is the canonical order list plus the join diagnostics.
type JoinResult struct {
	Orders []*models.Order
	// OrphanBillingIDs are billing aggregates whose order id never appeared
	// in the order report, in first-seen billing order.
	OrphanBillingIDs []string
	// NoBillingCount is how many orders had no billing lines at all.
	NoBillingCount int
	// SkippedByCutoff is how many orders fell on or before the incremental cutoff.
	SkippedByCutoff int
}

// Joiner matches normalized order rows to billing aggregates.
type Joiner struct {
	logger *utils.Logger
}

// NewJoiner creates a Joiner with the given logger.
func NewJoiner(logger *utils.Logger) *Joiner {
	return &Joiner{logger: logger}
}

// Join left-joins the order report against the billing summary on the raw
// order id. Every order survives the join: with no billing match the total
// is 0 and the item list empty. Billing aggregates that match no order are
// reported as orphans, never emitted.
//
// A non-nil cutoff switches on incremental mode: only orders dated strictly
// after the cutoff are emitted. An order without a valid date cannot be
// ordered against the cutoff and is not emitted in this mode.
func (j *Joiner) Join(rows []*models.OrderReportRow, billing *BillingSummary, cutoff *time.Time) *JoinResult {
	result := &JoinResult{}
	matched := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		if cutoff != nil {
			if row.OrderDate == nil || !row.OrderDate.After(*cutoff) {
				result.SkippedByCutoff++
				// Still counts as matched so a previously-synced order does
				// not resurface as an orphan diagnostic.
				if _, ok := billing.ByOrder[row.RawID]; ok {
					matched[row.RawID] = struct{}{}
				}
				continue
			}
		}

		order := &models.Order{
			OrderID:      row.OrderID,
			RawID:        row.RawID,
			CustomerName: row.CustomerName,
			Email:        row.Email,
			Phone:        row.Phone,
			City:         row.City,
			Identity:     row.Identity,
			OrderDate:    row.OrderDate,
			Channel:      row.Channel,
			Items:        []models.LineItem{},
		}

		if agg, ok := billing.ByOrder[row.RawID]; ok {
			matched[row.RawID] = struct{}{}
			order.TotalAmount = agg.TotalAmount
			order.Items = append(order.Items, agg.Items...)
		} else {
			result.NoBillingCount++
			j.logger.Debug("[joiner] Order %s has no billing lines, total defaults to 0", row.RawID)
		}

		result.Orders = append(result.Orders, order)
	}

	for _, id := range billing.Keys {
		if _, ok := matched[id]; !ok {
			result.OrphanBillingIDs = append(result.OrphanBillingIDs, id)
		}
	}
	if len(result.OrphanBillingIDs) > 0 {
		j.logger.Warn("[joiner] %d billing aggregates matched no order (orphans)",
			len(result.OrphanBillingIDs))
	}

	j.logger.Info("[joiner] Joined %d orders (%d without billing, %d orphan billing ids, %d before cutoff)",
		len(result.Orders), result.NoBillingCount, len(result.OrphanBillingIDs), result.SkippedByCutoff)
	return result
}
