package storage

import (
	"testing"
	"time"

	"customer-rfm/models"
)

func testOrder(id, name, email, phone string) *models.Order {
	return &models.Order{
		OrderID:      id,
		RawID:        id,
		CustomerName: name,
		Email:        email,
		Phone:        phone,
		Items:        []models.LineItem{},
	}
}

func TestIdentityKeyPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		order *models.Order
		want  string
	}{
		{"email wins", testOrder("1", "Ana", "ana@mail.com", "3001234567"), "ana@mail.com"},
		{"phone when no email", testOrder("2", "Ana", "", "3001234567"), "3001234567"},
		{"synthesized from name", testOrder("3", "Ana María Pérez", "", ""), "name:ana maría pérez"},
	}

	for _, tt := range tests {
		if got := IdentityKey(tt.order); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGroupOrdersCollapsesSameCustomer(t *testing.T) {
	orders := []*models.Order{
		testOrder("1001", "Ana", "ana@mail.com", ""),
		testOrder("1002", "Luis", "luis@mail.com", ""),
		testOrder("1003", "Ana P.", "ana@mail.com", "3001234567"),
	}

	customers := GroupOrders(orders)
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}

	ana := customers[0]
	if ana.IdentityKey != "ana@mail.com" {
		t.Fatalf("first-seen order lost: got key %q", ana.IdentityKey)
	}
	if len(ana.Orders) != 2 {
		t.Errorf("ana should own 2 orders, got %d", len(ana.Orders))
	}
	if ana.Phone != "3001234567" {
		t.Errorf("later order should fill the missing phone, got %q", ana.Phone)
	}
	if ana.Name != "Ana" {
		t.Errorf("first non-empty name wins: got %q", ana.Name)
	}
}

func TestGroupFlattenRoundTrip(t *testing.T) {
	orders := []*models.Order{
		testOrder("1001", "Ana", "ana@mail.com", ""),
		testOrder("1002", "Luis", "", "3007654321"),
		testOrder("1003", "Ana", "ana@mail.com", ""),
		testOrder("1004", "Marta", "", ""),
	}

	flat := FlattenOrders(GroupOrders(orders))
	if len(flat) != len(orders) {
		t.Fatalf("round trip changed order count: got %d, want %d", len(flat), len(orders))
	}

	seen := make(map[string]bool, len(flat))
	for _, o := range flat {
		seen[o.OrderID] = true
	}
	for _, o := range orders {
		if !seen[o.OrderID] {
			t.Errorf("order %s lost in round trip", o.OrderID)
		}
	}
}

func TestLatestOrderDateSkipsInvalid(t *testing.T) {
	older := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	undated := testOrder("1", "Ana", "ana@mail.com", "")
	first := testOrder("2", "Ana", "ana@mail.com", "")
	first.OrderDate = &older
	second := testOrder("3", "Ana", "ana@mail.com", "")
	second.OrderDate = &newer

	c := &models.Customer{Orders: []*models.Order{undated, first, second}}
	latest := LatestOrderDate(c)
	if latest == nil || !latest.OrderDate.Equal(newer) {
		t.Errorf("latest: got %v, want %v", latest, newer)
	}

	onlyUndated := &models.Customer{Orders: []*models.Order{undated}}
	if LatestOrderDate(onlyUndated) != nil {
		t.Error("customer with no valid dates should have no latest order")
	}
}
