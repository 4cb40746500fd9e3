package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/money"
	"tableside/internal/pricing"
)

func testConfig() *pricing.Config {
	return &pricing.Config{
		TaxMultiplier:  money.MustFromString("1.07"),
		AdultLunch:     money.MustFromString("9.99"),
		AdultDinner:    money.MustFromString("12.99"),
		BigKidLunch:    money.MustFromString("5.99"),
		BigKidDinner:   money.MustFromString("7.99"),
		SmallKidLunch:  money.MustFromString("3.99"),
		SmallKidDinner: money.MustFromString("4.99"),
		DrinkPrice:     money.MustFromString("1.50"),
		WaterPrice:     money.Zero(),
	}
}

func TestGuestCountBounds(t *testing.T) {
	tbl := New(1)

	tbl.DecreaseGuest(Adult)
	assert.Equal(t, 0, tbl.AdultCount, "decrease from zero is a no-op")

	for i := 0; i < MaxGuestCount+50; i++ {
		tbl.IncreaseGuest(Adult)
	}
	assert.Equal(t, MaxGuestCount, tbl.AdultCount)

	// Arbitrary interleavings never leave [0, 999].
	seq := []bool{true, false, false, true, true, false, true, false, false, false}
	tbl2 := New(2)
	for i := 0; i < 500; i++ {
		if seq[i%len(seq)] {
			tbl2.IncreaseGuest(BigKid)
		} else {
			tbl2.DecreaseGuest(BigKid)
		}
		require.GreaterOrEqual(t, tbl2.BigKidCount, 0)
		require.LessOrEqual(t, tbl2.BigKidCount, MaxGuestCount)
	}
}

func TestDrinksStaySorted(t *testing.T) {
	tbl := New(1)
	tbl.AddDrink("SODA")
	tbl.AddDrink(pricing.WaterCode)
	tbl.AddDrink("COFFEE")
	tbl.AddDrink("SODA")
	assert.Equal(t, []string{"COFFEE", "SODA", "SODA", pricing.WaterCode}, tbl.Drinks)

	assert.True(t, tbl.RemoveDrink("SODA"))
	assert.Equal(t, []string{"COFFEE", "SODA", pricing.WaterCode}, tbl.Drinks)
	assert.False(t, tbl.RemoveDrink("TEA"))
}

func TestStatusDerivation(t *testing.T) {
	tbl := New(5)
	assert.Equal(t, StatusEmpty, tbl.Status())

	tbl.IncreaseGuest(Adult)
	assert.Equal(t, StatusOccupied, tbl.Status())

	tbl.DecreaseGuest(Adult)
	assert.Equal(t, StatusEmpty, tbl.Status(), "status auto-clears when activity drops to zero")

	// Printed outranks occupied: committed price, flag down, guests present.
	tbl.AdultCount = 2
	tbl.TotalPrice = money.MustFromString("12.99")
	tbl.Occupied = false
	assert.Equal(t, StatusPrinted, tbl.Status())
}

func TestCalculateTotalCommitsAndFreezes(t *testing.T) {
	cfg := testConfig()
	tbl := New(3)
	tbl.IncreaseGuest(Adult)
	tbl.IncreaseGuest(Adult)
	tbl.IncreaseGuest(BigKid)

	tbl.CalculateTotal(cfg, false)
	assert.Equal(t, "27.79", tbl.TotalPrice.String())
	assert.True(t, tbl.Occupied)
	require.NotNil(t, tbl.PricingModeDinner)
	assert.False(t, *tbl.PricingModeDinner)

	// Stored price is authoritative: a recalculation under the dinner toggle
	// must not touch it.
	tbl.CalculateTotal(cfg, true)
	assert.Equal(t, "27.79", tbl.TotalPrice.String())
	assert.False(t, *tbl.PricingModeDinner, "frozen mode survives the global toggle")
}

func TestShouldUseStoredPrice(t *testing.T) {
	tbl := New(1)
	assert.False(t, tbl.ShouldUseStoredPrice())

	tbl.Occupied = true
	assert.True(t, tbl.ShouldUseStoredPrice())

	tbl = New(1)
	tbl.TotalPrice = money.MustFromString("5.00")
	assert.True(t, tbl.ShouldUseStoredPrice())

	tbl = New(1)
	tbl.CaptureSeatTime(time.Now())
	assert.True(t, tbl.ShouldUseStoredPrice())
}

func TestPayTrustsCommittedPrice(t *testing.T) {
	cfg := testConfig()
	tbl := New(4)
	tbl.IncreaseGuest(Adult)
	tbl.IncreaseGuest(Adult)
	tbl.IncreaseGuest(BigKid)
	tbl.CalculateTotal(cfg, false)
	tbl.MarkPrinted()
	require.Equal(t, StatusPrinted, tbl.Status())

	// Pricing changes between print and payment must not alter the quote.
	cfg.AdultLunch = money.MustFromString("19.99")

	delta := tbl.Pay(cfg, false)
	assert.Equal(t, "27.79", delta.Revenue.String())
	assert.Equal(t, 2, delta.AdultCount)
	assert.Equal(t, 1, delta.BigKidCount)
	assert.Equal(t, 0, delta.SmallKidCount)
	assert.Equal(t, 1, delta.TicketCount)

	// Payment is destructive: table resets to EMPTY defaults.
	assert.Equal(t, StatusEmpty, tbl.Status())
	assert.Zero(t, tbl.AdultCount)
	assert.True(t, tbl.TotalPrice.IsZero())
	assert.Nil(t, tbl.PricingModeDinner)
	assert.Empty(t, tbl.SitDownTime)
}

func TestPayComputesWhenNeverPriced(t *testing.T) {
	cfg := testConfig()
	tbl := New(4)
	tbl.IncreaseGuest(Adult)
	tbl.AddDrink("SODA")

	delta := tbl.Pay(cfg, true)
	// 12.99 + 1.50 = 14.49, ×1.07 = 15.5043 → 15.50
	assert.Equal(t, "15.5", delta.Revenue.String())
	assert.Equal(t, StatusEmpty, tbl.Status())
}

func TestPayEmptyTableIsNoop(t *testing.T) {
	cfg := testConfig()
	tbl := New(9)
	delta := tbl.Pay(cfg, false)
	assert.True(t, delta.IsZero())
	assert.Equal(t, StatusEmpty, tbl.Status())
}

func TestPaySeatedZeroTotalTrustsStoredZero(t *testing.T) {
	// Documented policy for the seated-but-unpriced edge: the timestamp marks
	// an order in progress, so the stored (zero) total is trusted rather than
	// recomputed at the register.
	cfg := testConfig()
	tbl := New(7)
	tbl.IncreaseGuest(Adult)
	tbl.CaptureSeatTime(time.Now())

	delta := tbl.Pay(cfg, false)
	assert.True(t, delta.Revenue.IsZero())
	assert.Equal(t, 1, delta.AdultCount)
	assert.Equal(t, StatusEmpty, tbl.Status())
}

func TestSeatTimeOverwrite(t *testing.T) {
	tbl := New(2)
	first := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	tbl.CaptureSeatTime(first)
	tbl.CaptureSeatTime(second)

	seated, ok := tbl.SeatedSince()
	require.True(t, ok)
	assert.True(t, seated.Equal(second))
}

func TestCloneRestore(t *testing.T) {
	tbl := New(6)
	tbl.IncreaseGuest(Adult)
	tbl.AddDrink("SODA")

	snapshot := tbl.Clone()
	tbl.IncreaseGuest(Adult)
	tbl.AddDrink("TEA")

	tbl.Restore(snapshot)
	assert.Equal(t, 1, tbl.AdultCount)
	assert.Equal(t, []string{"SODA"}, tbl.Drinks)

	// The snapshot's slices are independent of the live table.
	tbl.AddDrink("COFFEE")
	assert.Equal(t, []string{"SODA"}, snapshot.Drinks)
}
