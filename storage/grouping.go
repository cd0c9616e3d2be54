package storage

import (
	"strings"

	"customer-rfm/models"
)

// IdentityKey derives the grouping key that collapses orders into one
// customer: email first, then phone, then a key synthesized from the
// normalized name. It is a pure function of the order's contact fields, so
// the same customer resolves to the same document across uploads.
func IdentityKey(o *models.Order) string {
	if o.Email != "" {
		return strings.ToLower(strings.TrimSpace(o.Email))
	}
	if o.Phone != "" {
		return o.Phone
	}
	return "name:" + strings.ToLower(strings.Join(strings.Fields(o.CustomerName), " "))
}

// GroupOrders collapses a flat order list into customer aggregates, one per
// identity key, preserving first-seen key order. Contact fields are filled
// from the first order that carries them, so a later order can supply a
// phone the first one lacked.
func GroupOrders(orders []*models.Order) []*models.Customer {
	byKey := make(map[string]*models.Customer, len(orders))
	var customers []*models.Customer

	for _, o := range orders {
		key := IdentityKey(o)
		c, ok := byKey[key]
		if !ok {
			c = &models.Customer{
				IdentityKey: key,
				Name:        o.CustomerName,
				Orders:      []*models.Order{},
			}
			byKey[key] = c
			customers = append(customers, c)
		}

		if c.Name == "" {
			c.Name = o.CustomerName
		}
		if c.Email == "" {
			c.Email = o.Email
		}
		if c.Phone == "" {
			c.Phone = o.Phone
		}
		if c.City == "" {
			c.City = o.City
		}
		if c.Identity == "" {
			c.Identity = o.Identity
		}
		c.Orders = append(c.Orders, o)
	}

	return customers
}

// FlattenOrders is the inverse of GroupOrders: it concatenates every
// customer's embedded orders back into one flat list, in document order.
func FlattenOrders(customers []*models.Customer) []*models.Order {
	var orders []*models.Order
	for _, c := range customers {
		orders = append(orders, c.Orders...)
	}
	return orders
}

// LatestOrderDate returns the most recent valid order date embedded in the
// customer, or nil when no order has one.
func LatestOrderDate(c *models.Customer) *models.Order {
	var latest *models.Order
	for _, o := range c.Orders {
		if o.OrderDate == nil {
			continue
		}
		if latest == nil || o.OrderDate.After(*latest.OrderDate) {
			latest = o
		}
	}
	return latest
}
