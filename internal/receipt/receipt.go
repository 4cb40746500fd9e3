package receipt

import (
	"context"
	"time"

	"tableside/internal/money"
	"tableside/internal/pricing"
	"tableside/internal/table"
	"tableside/internal/togo"
)

// Line is one printed row: a label, a unit price, and a quantity.
type Line struct {
	Label    string
	Price    money.Money
	Quantity int
}

// Summary is everything a printed ticket carries. It is built from a table
// or cart at print time and never references live state afterwards, so a
// ticket re-printed later shows exactly what the guest saw.
type Summary struct {
	TicketNumber string
	TableNumber  int
	TableName    string
	PricingMode  string
	SeatedAt     string

	Lines      []Line
	DrinkTotal money.Money
	Total      money.Money

	// GratuityOptions are suggested tips computed from Total, one per
	// configured percentage, in the same order.
	GratuityPercents []int64
	GratuityOptions  []money.Money

	PrintedAt time.Time
}

// Renderer sends a summary to an output device. Rendering failures are
// reported to the caller for logging but never undo the sale that produced
// the summary.
type Renderer interface {
	Render(ctx context.Context, s Summary) error
}

// BuildTableSummary captures a table's bill. The table's total must already
// be committed; the summary reads stored prices and never reprices.
func BuildTableSummary(t *table.Table, cfg *pricing.Config, globalDinner bool, ticketNumber string, gratuityPercents []int64, now time.Time) Summary {
	mode := pricing.SelectMode(t.PricingModeDinner, globalDinner)
	rates := cfg.RatesFor(mode)

	var lines []Line
	if t.AdultCount > 0 {
		lines = append(lines, Line{Label: "Adult buffet", Price: rates.Adult, Quantity: t.AdultCount})
	}
	if t.BigKidCount > 0 {
		lines = append(lines, Line{Label: "Child buffet", Price: rates.BigKid, Quantity: t.BigKidCount})
	}
	if t.SmallKidCount > 0 {
		lines = append(lines, Line{Label: "Small child buffet", Price: rates.SmallKid, Quantity: t.SmallKidCount})
	}
	for _, code := range t.Drinks {
		price := cfg.DrinkPrice
		label := "Drink"
		if code == pricing.WaterCode {
			price = cfg.WaterPrice
			label = "Water"
		}
		lines = append(lines, Line{Label: label, Price: price, Quantity: 1})
	}

	total := t.TotalPrice.Round2()
	return Summary{
		TicketNumber:     ticketNumber,
		TableNumber:      t.Number,
		TableName:        t.Name,
		PricingMode:      mode.String(),
		SeatedAt:         t.SitDownTime,
		Lines:            lines,
		DrinkTotal:       t.DrinkPrice.Round2(),
		Total:            total,
		GratuityPercents: append([]int64(nil), gratuityPercents...),
		GratuityOptions:  pricing.GratuityOptions(total, gratuityPercents),
		PrintedAt:        now,
	}
}

// BuildTogoSummary captures a takeout cart's bill before payment clears it.
func BuildTogoSummary(lines []togo.Line, cfg *pricing.Config, ticketNumber string, now time.Time) Summary {
	out := make([]Line, 0, len(lines))
	subtotal := money.Zero()
	for _, line := range lines {
		out = append(out, Line{Label: line.Name, Price: line.Price, Quantity: line.Quantity})
		subtotal = subtotal.Add(line.Price.MulInt(line.Quantity))
	}
	return Summary{
		TicketNumber: ticketNumber,
		PricingMode:  "togo",
		Lines:        out,
		Total:        pricing.ApplyTax(subtotal, cfg.TaxMultiplier).Round2(),
		PrintedAt:    now,
	}
}
