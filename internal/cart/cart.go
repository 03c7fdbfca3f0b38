// Package cart holds a client's pre-checkout selection and its persisted form.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrOutOfRange is returned by Remove for an index outside the cart.
	ErrOutOfRange = errors.New("cart index out of range")
	// ErrSlotUnavailable wraps failures of the backing slot.
	ErrSlotUnavailable = errors.New("cart storage unavailable")
)

// Item is one cart line. The same pizza added twice is two lines.
type Item struct {
	PizzaID string  `json:"pizzaId" dynamodbav:"pizzaId"`
	Name    string  `json:"name" dynamodbav:"name"`
	Qty     int     `json:"qty" dynamodbav:"qty"`
	Price   float64 `json:"price" dynamodbav:"price"`
}

// LineTotal is price × qty.
func (it Item) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Qty)))
}

// Cart is an ordered sequence of items. The zero value is an empty cart.
type Cart struct {
	items []Item
}

func New(items ...Item) *Cart {
	return &Cart{items: append([]Item(nil), items...)}
}

func (c *Cart) Add(it Item) {
	c.items = append(c.items, it)
}

// Remove deletes the line at index, preserving the order of the others.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, index, len(c.items))
	}
	c.items = append(c.items[:index], c.items[index+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Total is the exact decimal sum of every line total.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}
