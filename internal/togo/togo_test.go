package togo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tableside/internal/money"
	"tableside/internal/pricing"
)

func testPricing() *pricing.Config {
	return &pricing.Config{TaxMultiplier: money.MustFromString("1.07")}
}

func TestAddLineValidation(t *testing.T) {
	c := NewCart()
	require.Error(t, c.AddLine("", money.MustFromString("1.00"), 1))
	require.Error(t, c.AddLine("rice", money.MustFromString("1.00"), 0))
	require.Error(t, c.AddLine("rice", money.MustFromString("-1.00"), 1))
	require.Empty(t, c.Lines())
}

func TestRemoveLine(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine("rice", money.MustFromString("3.00"), 1))
	require.NoError(t, c.AddLine("soup", money.MustFromString("4.00"), 1))

	require.Error(t, c.RemoveLine(2))
	require.NoError(t, c.RemoveLine(0))

	lines := c.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "soup", lines[0].Name)
}

func TestTotalAppliesTaxAndRounds(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine("lo mein", money.MustFromString("9.99"), 2))
	require.NoError(t, c.AddLine("soda", money.MustFromString("1.99"), 1))

	// (19.98 + 1.99) * 1.07 = 23.5079 -> 23.51
	require.Equal(t, "23.51", c.Total(testPricing()).String())
}

func TestPayClosesCartAsOneTicket(t *testing.T) {
	c := NewCart()
	require.NoError(t, c.AddLine("lo mein", money.MustFromString("9.99"), 2))

	delta := c.Pay(testPricing())
	require.Equal(t, "21.38", delta.Revenue.String())
	require.Equal(t, "21.38", delta.TogoRevenue.String())
	require.Equal(t, 1, delta.TicketCount)
	require.Equal(t, 1, delta.TogoTicketCount)
	require.Empty(t, c.Lines())
}

func TestPayEmptyCartIsNoop(t *testing.T) {
	c := NewCart()
	require.True(t, c.Pay(testPricing()).IsZero())
}

func TestApplyRemoteVersionGuard(t *testing.T) {
	c := NewCart()
	c.SetVersion(3)

	data := []byte(`[{"name":"rice","price":"3.00","quantity":2}]`)
	require.False(t, c.ApplyRemote(data, 3))
	require.Empty(t, c.Lines())

	require.True(t, c.ApplyRemote(data, 4))
	require.Len(t, c.Lines(), 1)
	require.Equal(t, "6.00", c.Subtotal().StringFixed2())
}
