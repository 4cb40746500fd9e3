package pricing

import (
	"tableside/internal/money"
)

// WaterCode is the sentinel drink token for water, which may be free.
const WaterCode = "WATER"

// Mode selects which buffet rate schedule applies.
type Mode int

const (
	Lunch Mode = iota
	Dinner
)

func (m Mode) String() string {
	if m == Dinner {
		return "dinner"
	}
	return "lunch"
}

// Rates are the three per-guest buffet prices for a single mode.
type Rates struct {
	Adult    money.Money
	BigKid   money.Money
	SmallKid money.Money
}

// Config carries every price the engine consumes. It is loaded at startup and
// mutated only through the settings update path; table operations never touch
// it. Validation tags are enforced by settings.Validate before any update is
// accepted.
type Config struct {
	TaxMultiplier money.Money `json:"taxMultiplier" validate:"gt=0"`

	AdultLunch     money.Money `json:"adultLunch" validate:"gte=0"`
	AdultDinner    money.Money `json:"adultDinner" validate:"gte=0"`
	BigKidLunch    money.Money `json:"bigKidLunch" validate:"gte=0"`
	BigKidDinner   money.Money `json:"bigKidDinner" validate:"gte=0"`
	SmallKidLunch  money.Money `json:"smallKidLunch" validate:"gte=0"`
	SmallKidDinner money.Money `json:"smallKidDinner" validate:"gte=0"`

	DrinkPrice money.Money `json:"drinkPrice" validate:"gte=0"`
	WaterPrice money.Money `json:"waterPrice" validate:"gte=0"`
}

// RatesFor returns the rate schedule for the given mode.
func (c *Config) RatesFor(mode Mode) Rates {
	if mode == Dinner {
		return Rates{Adult: c.AdultDinner, BigKid: c.BigKidDinner, SmallKid: c.SmallKidDinner}
	}
	return Rates{Adult: c.AdultLunch, BigKid: c.BigKidLunch, SmallKid: c.SmallKidLunch}
}

// SelectMode resolves the frozen-vs-live pricing mode rule. A table that has
// never been priced tracks the live global toggle; once printed, its mode is
// pinned so later toggles cannot change an already-quoted price.
func SelectMode(frozenDinner *bool, globalDinner bool) Mode {
	dinner := globalDinner
	if frozenDinner != nil {
		dinner = *frozenDinner
	}
	if dinner {
		return Dinner
	}
	return Lunch
}

// DrinkSubtotal partitions drink tokens into water and everything else and
// prices each group. Full precision; callers round at the boundary.
func DrinkSubtotal(drinks []string, waterPrice, drinkPrice money.Money) money.Money {
	var water, other int
	for _, code := range drinks {
		if code == WaterCode {
			water++
		} else {
			other++
		}
	}
	return waterPrice.MulInt(water).Add(drinkPrice.MulInt(other))
}

// BuffetSubtotal sums unit × count across the three guest categories.
func BuffetSubtotal(adult, bigKid, smallKid int, r Rates) money.Money {
	return r.Adult.MulInt(adult).
		Add(r.BigKid.MulInt(bigKid)).
		Add(r.SmallKid.MulInt(smallKid))
}

// ApplyTax multiplies at full precision; no rounding here.
func ApplyTax(subtotal, taxMultiplier money.Money) money.Money {
	return subtotal.Mul(taxMultiplier)
}

// GratuityOptions returns base × pct/100 for each percentage, each rounded
// to 2 decimals independently.
func GratuityOptions(base money.Money, percentages []int64) []money.Money {
	options := make([]money.Money, len(percentages))
	for i, pct := range percentages {
		options[i] = base.Percent(pct).Round2()
	}
	return options
}
