package table

import (
	"sort"
	"time"

	"tableside/internal/money"
	"tableside/internal/pricing"
	"tableside/internal/sales"
)

// MaxGuestCount bounds each guest category per table.
const MaxGuestCount = 999

// Category is one of the three buffet billing categories.
type Category int

const (
	Adult Category = iota
	BigKid
	SmallKid
)

func (c Category) String() string {
	switch c {
	case BigKid:
		return "big_kid"
	case SmallKid:
		return "small_kid"
	default:
		return "adult"
	}
}

// Table is the order state of one physical table. This package is the only
// mutator of these fields; everything else reads.
//
// The Occupied flag marks a committed (calculated, not yet printed) order.
// Whether a table *looks* occupied is derived by Status from raw activity,
// so the flag and the display state cannot drift apart.
type Table struct {
	Number        int         `json:"number"`
	Name          string      `json:"name,omitempty"`
	AdultCount    int         `json:"adultCount"`
	BigKidCount   int         `json:"bigKidCount"`
	SmallKidCount int         `json:"smallKidCount"`
	Drinks        []string    `json:"drinks,omitempty"`
	DrinkPrice    money.Money `json:"drinkPrice"`
	TotalPrice    money.Money `json:"totalPrice"`
	Occupied      bool        `json:"occupied"`
	// PricingModeDinner freezes the rate schedule once a price is committed;
	// nil means the table tracks the live global lunch/dinner toggle.
	PricingModeDinner *bool  `json:"pricingModeDinner,omitempty"`
	SitDownTime       string `json:"sitDownTime,omitempty"`
	TogoCount         int    `json:"togoCount,omitempty"`

	// Version is the server-assigned marker from the last sync; it is not
	// part of the document body.
	Version int64 `json:"-"`
}

// New returns an empty table.
func New(number int) *Table {
	return &Table{Number: number}
}

// GuestCount returns the sum across the three categories.
func (t *Table) GuestCount() int {
	return t.AdultCount + t.BigKidCount + t.SmallKidCount
}

func (t *Table) hasActivity() bool {
	return t.GuestCount() > 0 || len(t.Drinks) > 0 || t.TogoCount > 0
}

// ShouldUseStoredPrice reports whether TotalPrice is authoritative. When
// true, the stored price must never be silently recomputed; when false the
// price is derived live from counts and the current pricing config.
func (t *Table) ShouldUseStoredPrice() bool {
	return t.Occupied || t.TotalPrice.IsPositive() || t.SitDownTime != ""
}

// priceCommitted reports whether a price (or a seated order protected by its
// timestamp) has been quoted to the guest. Pay trusts the stored total in
// exactly these cases.
func (t *Table) priceCommitted() bool {
	return t.TotalPrice.IsPositive() || t.SitDownTime != ""
}

// IncreaseGuest adds one guest in the category, clamped at MaxGuestCount.
func (t *Table) IncreaseGuest(c Category) {
	switch c {
	case Adult:
		if t.AdultCount < MaxGuestCount {
			t.AdultCount++
		}
	case BigKid:
		if t.BigKidCount < MaxGuestCount {
			t.BigKidCount++
		}
	case SmallKid:
		if t.SmallKidCount < MaxGuestCount {
			t.SmallKidCount++
		}
	}
}

// DecreaseGuest removes one guest in the category; decreasing from zero is a
// no-op, not an error.
func (t *Table) DecreaseGuest(c Category) {
	switch c {
	case Adult:
		if t.AdultCount > 0 {
			t.AdultCount--
		}
	case BigKid:
		if t.BigKidCount > 0 {
			t.BigKidCount--
		}
	case SmallKid:
		if t.SmallKidCount > 0 {
			t.SmallKidCount--
		}
	}
}

// normalizeDrinks restores the sorted-drinks invariant on data decoded from
// documents, which carries no ordering guarantee.
func (t *Table) normalizeDrinks() {
	if !sort.StringsAreSorted(t.Drinks) {
		sort.Strings(t.Drinks)
	}
}

// AddDrink appends a drink code, keeping the list sorted for stable diffing
// and display.
func (t *Table) AddDrink(code string) {
	i := sort.SearchStrings(t.Drinks, code)
	t.Drinks = append(t.Drinks, "")
	copy(t.Drinks[i+1:], t.Drinks[i:])
	t.Drinks[i] = code
}

// RemoveDrink removes one occurrence of the code; returns false if absent.
func (t *Table) RemoveDrink(code string) bool {
	i := sort.SearchStrings(t.Drinks, code)
	if i >= len(t.Drinks) || t.Drinks[i] != code {
		return false
	}
	t.Drinks = append(t.Drinks[:i], t.Drinks[i+1:]...)
	if len(t.Drinks) == 0 {
		t.Drinks = nil
	}
	return true
}

// CaptureSeatTime records when the party sat down, in RFC 3339. Safe to call
// again; the newest call wins.
func (t *Table) CaptureSeatTime(now time.Time) {
	t.SitDownTime = now.UTC().Format(time.RFC3339)
}

// SeatedSince parses the seat timestamp; ok is false when unset or invalid.
func (t *Table) SeatedSince() (time.Time, bool) {
	if t.SitDownTime == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, t.SitDownTime)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SetName sets the display label.
func (t *Table) SetName(name string) {
	t.Name = name
}

// CalculateTotal commits the table's price: drink subtotal, buffet subtotal
// under the resolved pricing mode, tax, rounded at the boundary. A table
// whose stored price is already authoritative is left untouched — repricing
// requires an explicit Clear first.
func (t *Table) CalculateTotal(cfg *pricing.Config, globalDinner bool) {
	if t.ShouldUseStoredPrice() {
		return
	}

	mode := pricing.SelectMode(t.PricingModeDinner, globalDinner)
	t.DrinkPrice = pricing.DrinkSubtotal(t.Drinks, cfg.WaterPrice, cfg.DrinkPrice).Round2()

	subtotal := pricing.BuffetSubtotal(t.AdultCount, t.BigKidCount, t.SmallKidCount, cfg.RatesFor(mode)).
		Add(t.DrinkPrice)
	t.TotalPrice = pricing.ApplyTax(subtotal, cfg.TaxMultiplier).Round2()

	// Pin the mode so a later global toggle cannot change the quoted price.
	dinner := mode == pricing.Dinner
	t.PricingModeDinner = &dinner
	t.Occupied = true
}

// MarkPrinted records that the bill left the building: the committed price
// stands and the table reads as PRINTED until paid or cleared.
func (t *Table) MarkPrinted() {
	if t.TotalPrice.IsPositive() {
		t.Occupied = false
	}
}

// Pay closes the order. A committed price (positive total, or any total under
// a seat timestamp) is trusted as-is so a pricing-config change between
// order-taking and payment cannot alter what the guest was quoted; otherwise
// the total is computed the same way CalculateTotal does. The returned delta
// feeds the shared sales summary; the table is then reset unconditionally.
func (t *Table) Pay(cfg *pricing.Config, globalDinner bool) sales.Delta {
	if !t.hasActivity() && !t.priceCommitted() {
		// Empty table: zero delta, reset is a no-op.
		t.Clear()
		return sales.Delta{}
	}

	if !t.priceCommitted() {
		mode := pricing.SelectMode(t.PricingModeDinner, globalDinner)
		drinks := pricing.DrinkSubtotal(t.Drinks, cfg.WaterPrice, cfg.DrinkPrice)
		subtotal := pricing.BuffetSubtotal(t.AdultCount, t.BigKidCount, t.SmallKidCount, cfg.RatesFor(mode)).
			Add(drinks)
		t.TotalPrice = pricing.ApplyTax(subtotal, cfg.TaxMultiplier).Round2()
	}

	delta := sales.Delta{
		Revenue:       t.TotalPrice,
		AdultCount:    t.AdultCount,
		BigKidCount:   t.BigKidCount,
		SmallKidCount: t.SmallKidCount,
		TicketCount:   1,
	}
	t.Clear()
	return delta
}

// Clear resets the table to its EMPTY defaults without producing a sales
// delta (abandoned order).
func (t *Table) Clear() {
	t.Name = ""
	t.AdultCount = 0
	t.BigKidCount = 0
	t.SmallKidCount = 0
	t.Drinks = nil
	t.DrinkPrice = money.Zero()
	t.TotalPrice = money.Zero()
	t.Occupied = false
	t.PricingModeDinner = nil
	t.SitDownTime = ""
	t.TogoCount = 0
}

// LivePrice derives the displayable total: the stored price when it is
// authoritative, otherwise a fresh computation against the current config.
func (t *Table) LivePrice(cfg *pricing.Config, globalDinner bool) money.Money {
	if t.ShouldUseStoredPrice() {
		return t.TotalPrice
	}
	mode := pricing.SelectMode(t.PricingModeDinner, globalDinner)
	drinks := pricing.DrinkSubtotal(t.Drinks, cfg.WaterPrice, cfg.DrinkPrice)
	subtotal := pricing.BuffetSubtotal(t.AdultCount, t.BigKidCount, t.SmallKidCount, cfg.RatesFor(mode)).
		Add(drinks)
	return pricing.ApplyTax(subtotal, cfg.TaxMultiplier).Round2()
}

// Clone returns a deep copy, used to build rollback snapshots for optimistic
// updates.
func (t *Table) Clone() *Table {
	dup := *t
	if t.Drinks != nil {
		dup.Drinks = append([]string(nil), t.Drinks...)
	}
	if t.PricingModeDinner != nil {
		dinner := *t.PricingModeDinner
		dup.PricingModeDinner = &dinner
	}
	return &dup
}

// Restore overwrites the table from a snapshot taken with Clone.
func (t *Table) Restore(snapshot *Table) {
	*t = *snapshot.Clone()
}
