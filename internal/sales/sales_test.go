package sales

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tableside/internal/money"
)

func TestUnmarshalAcceptsStringAndNumberCounts(t *testing.T) {
	// Counts written through atomic increments come back as decimal strings;
	// local snapshots write plain numbers. Both must load.
	stringDoc := []byte(`{"revenue":"55.58","adultCount":"4","ticketCount":"2"}`)
	numberDoc := []byte(`{"revenue":55.58,"adultCount":4,"ticketCount":2}`)

	for _, doc := range [][]byte{stringDoc, numberDoc} {
		var s Summary
		require.NoError(t, json.Unmarshal(doc, &s))
		require.Equal(t, "55.58", s.Revenue.StringFixed2())
		require.Equal(t, 4, s.AdultCount)
		require.Equal(t, 2, s.TicketCount)
		require.Equal(t, 0, s.TogoTicketCount)
	}
}

func TestDeltaFieldsSkipsZeroes(t *testing.T) {
	d := Delta{Revenue: money.MustFromString("21.38"), AdultCount: 2, TicketCount: 1}
	fields := d.Fields()
	require.Len(t, fields, 3)
	require.Equal(t, "21.38", fields["revenue"].String())
	require.Equal(t, "2", fields["adultCount"].String())
	_, ok := fields["togoRevenue"]
	require.False(t, ok)
}

func TestApplyFoldsDelta(t *testing.T) {
	var s Summary
	s.Apply(Delta{Revenue: money.MustFromString("10.00"), AdultCount: 1, TicketCount: 1})
	s.Apply(Delta{Revenue: money.MustFromString("5.50"), TogoRevenue: money.MustFromString("5.50"), TogoTicketCount: 1, TicketCount: 1})

	require.Equal(t, "15.50", s.Revenue.StringFixed2())
	require.Equal(t, 1, s.AdultCount)
	require.Equal(t, 2, s.TicketCount)
	require.Equal(t, 1, s.TogoTicketCount)
}

func TestTicketNumberFormat(t *testing.T) {
	date := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "TKT_20260901_007", TicketNumber(date, 7))
}
