package services

import (
	"errors"
	"testing"

	"customer-rfm/models"
)

func billingRow(orderID, sku, product, total string) models.RawRow {
	return models.RawRow{
		ColBillingOrderID: orderID,
		ColSKU:            sku,
		ColProduct:        product,
		ColTotal:          total,
	}
}

func TestAggregateGroupsByOrderID(t *testing.T) {
	a := NewAggregator(newTestLogger())
	rows := []models.RawRow{
		billingRow("1001", "SKU-1", "Camisa azul", "$120.00"),
		billingRow("1002", "SKU-3", "Pantalón", "$200.00"),
		billingRow("1001", "SKU-2", "Gorra", "$30.50"),
	}

	summary, err := a.Aggregate(rows)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if len(summary.ByOrder) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(summary.ByOrder))
	}

	agg := summary.ByOrder["1001"]
	if agg.TotalAmount != 150.50 {
		t.Errorf("order 1001 total: got %.2f, want 150.50", agg.TotalAmount)
	}
	if len(agg.Items) != 2 {
		t.Fatalf("order 1001 items: got %d, want 2", len(agg.Items))
	}
	if agg.Items[0].SKU != "SKU-1" || agg.Items[1].SKU != "SKU-2" {
		t.Errorf("items must keep row order: got %q, %q", agg.Items[0].SKU, agg.Items[1].SKU)
	}
}

func TestAggregateKeysFirstSeenOrder(t *testing.T) {
	a := NewAggregator(newTestLogger())
	rows := []models.RawRow{
		billingRow("2002", "S", "x", "10"),
		billingRow("2001", "S", "y", "10"),
		billingRow("2002", "S", "z", "10"),
	}

	summary, err := a.Aggregate(rows)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []string{"2002", "2001"}
	if len(summary.Keys) != 2 || summary.Keys[0] != want[0] || summary.Keys[1] != want[1] {
		t.Errorf("keys: got %v, want %v", summary.Keys, want)
	}
}

func TestAggregateBadTotalDefaultsToZero(t *testing.T) {
	a := NewAggregator(newTestLogger())
	rows := []models.RawRow{
		billingRow("1001", "SKU-1", "Camisa", "no aplica"),
		billingRow("1001", "SKU-2", "Gorra", "50"),
	}

	summary, err := a.Aggregate(rows)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	agg := summary.ByOrder["1001"]
	if agg.TotalAmount != 50 {
		t.Errorf("total: got %.2f, want 50 (bad line defaults to 0)", agg.TotalAmount)
	}
	if agg.Items[0].Total != 0 {
		t.Errorf("bad line total: got %.2f, want 0", agg.Items[0].Total)
	}
}

func TestAggregateDropsEmptyOrderID(t *testing.T) {
	a := NewAggregator(newTestLogger())
	rows := []models.RawRow{
		billingRow("", "SKU-1", "Camisa", "100"),
		billingRow("1001", "SKU-2", "Gorra", "50"),
	}

	summary, err := a.Aggregate(rows)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(summary.ByOrder) != 1 {
		t.Errorf("expected 1 order, got %d", len(summary.ByOrder))
	}
}

func TestAggregateMissingColumnsIsFatal(t *testing.T) {
	a := NewAggregator(newTestLogger())
	rows := []models.RawRow{
		{ColBillingOrderID: "1001"}, // no total column
	}

	_, err := a.Aggregate(rows)
	if err == nil {
		t.Fatal("expected error for missing required columns")
	}
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %T: %v", err, err)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	a := NewAggregator(newTestLogger())
	summary, err := a.Aggregate(nil)
	if err != nil {
		t.Fatalf("Aggregate(nil): %v", err)
	}
	if len(summary.ByOrder) != 0 || len(summary.Keys) != 0 {
		t.Error("empty input should produce an empty summary")
	}
}
