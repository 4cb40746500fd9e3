package togo

import (
	"encoding/json"
	"sync"

	"tableside/internal/errs"
	"tableside/internal/money"
	"tableside/internal/pricing"
	"tableside/internal/sales"
)

const (
	Collection = "togo"
	DocID      = "cart"
)

// Line is one entry on the takeout cart. Price is the unit price captured at
// the moment the line was added, so later menu edits never reprice an open
// cart.
type Line struct {
	Name     string      `json:"name"`
	Price    money.Money `json:"price"`
	Quantity int         `json:"quantity"`
}

// Cart is the shared takeout order. Unlike tables it has no guest counts and
// no seat timer; it is a flat list of priced lines paid as one ticket.
type Cart struct {
	mu      sync.Mutex
	lines   []Line
	version int64
}

func NewCart() *Cart {
	return &Cart{}
}

// AddLine appends a priced line to the cart.
func (c *Cart) AddLine(name string, price money.Money, quantity int) error {
	if name == "" {
		return errs.Validation("togo line needs a name")
	}
	if quantity <= 0 {
		return errs.Validation("togo line quantity must be positive, got %d", quantity)
	}
	if price.IsNegative() {
		return errs.Validation("togo line %q has a negative price", name)
	}
	c.mu.Lock()
	c.lines = append(c.lines, Line{Name: name, Price: price, Quantity: quantity})
	c.mu.Unlock()
	return nil
}

// RemoveLine deletes the line at index. Out-of-range indexes are rejected.
func (c *Cart) RemoveLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return errs.Validation("togo line %d does not exist", index)
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Lines returns a copy of the cart contents.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.lines...)
}

// Subtotal sums unit price times quantity at full precision.
func (c *Cart) Subtotal() money.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotalLocked(c.lines)
}

// Total applies tax to the subtotal and rounds at the boundary.
func (c *Cart) Total(cfg *pricing.Config) money.Money {
	return pricing.ApplyTax(c.Subtotal(), cfg.TaxMultiplier).Round2()
}

// Pay closes the cart as one ticket. Paying an empty cart is a no-op that
// returns a zero delta. The cart is cleared unconditionally on payment.
func (c *Cart) Pay(cfg *pricing.Config) sales.Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return sales.Delta{}
	}
	total := pricing.ApplyTax(subtotalLocked(c.lines), cfg.TaxMultiplier).Round2()
	c.lines = nil
	return sales.Delta{
		Revenue:         total,
		TogoRevenue:     total,
		TicketCount:     1,
		TogoTicketCount: 1,
	}
}

// Restore reinstates a previously captured line list, undoing a payment
// whose remote write failed.
func (c *Cart) Restore(lines []Line) {
	c.mu.Lock()
	c.lines = append([]Line(nil), lines...)
	c.mu.Unlock()
}

// Clear abandons the cart without recording a sale.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Version reports the persisted document version last seen by this terminal.
func (c *Cart) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SetVersion records the version returned by a successful save.
func (c *Cart) SetVersion(v int64) {
	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
}

// Snapshot serializes the cart for the batched flusher.
func (c *Cart) Snapshot() (json.RawMessage, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, 0, err
	}
	return data, c.version, nil
}

// ApplyRemote installs a cart revision received from another terminal.
func (c *Cart) ApplyRemote(data json.RawMessage, version int64) bool {
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if version <= c.version {
		return false
	}
	c.lines = lines
	c.version = version
	return true
}

func subtotalLocked(lines []Line) money.Money {
	total := money.Zero()
	for _, line := range lines {
		total = total.Add(line.Price.MulInt(line.Quantity))
	}
	return total
}
