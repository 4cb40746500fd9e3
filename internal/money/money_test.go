package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticIsExact(t *testing.T) {
	// 2 adults at 9.99 plus 1 big kid at 5.99, taxed at 1.07. Naive floats
	// drift on this sequence; the decimal path must hit 27.79 every time.
	adult := MustFromString("9.99")
	bigKid := MustFromString("5.99")
	tax := MustFromString("1.07")

	for i := 0; i < 1000; i++ {
		subtotal := adult.MulInt(2).Add(bigKid.MulInt(1))
		require.Equal(t, "25.97", subtotal.String())

		total := subtotal.Mul(tax)
		require.Equal(t, "27.7879", total.String())
		require.Equal(t, "27.79", total.Round2().String())
	}
}

func TestRound2HalfUp(t *testing.T) {
	cases := map[string]string{
		"27.7879": "27.79",
		"1.005":   "1.01",
		"1.004":   "1",
		"0.125":   "0.13",
		"10":      "10",
	}
	for in, want := range cases {
		got := MustFromString(in).Round2()
		assert.Equal(t, want, got.String(), "rounding %s", in)
	}
}

func TestPercent(t *testing.T) {
	base := MustFromString("27.79")
	assert.Equal(t, "4.17", base.Percent(15).Round2().String())
	assert.Equal(t, "5.00", base.Percent(18).Round2().StringFixed2())
	assert.Equal(t, "5.56", base.Percent(20).Round2().String())
}

func TestCompare(t *testing.T) {
	a := MustFromString("1.10")
	b := MustFromString("1.1")
	assert.Equal(t, 0, a.Cmp(b))
	assert.True(t, Zero().IsZero())
	assert.True(t, a.IsPositive())
	assert.True(t, Zero().Sub(a).IsNegative())
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustFromString("12.99")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"12.99"`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, m.Cmp(back))

	// Legacy documents stored bare numbers.
	var legacy Money
	require.NoError(t, json.Unmarshal([]byte(`12.99`), &legacy))
	assert.Equal(t, 0, m.Cmp(legacy))
}

func TestFromStringRejectsGarbage(t *testing.T) {
	_, err := FromString("12.9.9")
	assert.Error(t, err)
}
