package sales

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"tableside/internal/money"
)

// Collection and document id of the shared sales summary.
const (
	Collection = "sales"
	DocID      = "summary"
)

// Summary holds the shift-wide aggregate counters shared by every terminal.
// It is mutated only through atomic increments, never overwritten: two
// terminals closing tables in the same instant must both land.
type Summary struct {
	Revenue         money.Money `json:"revenue"`
	AdultCount      int         `json:"adultCount"`
	BigKidCount     int         `json:"bigKidCount"`
	SmallKidCount   int         `json:"smallKidCount"`
	TogoRevenue     money.Money `json:"togoRevenue"`
	TicketCount     int         `json:"ticketCount"`
	TogoTicketCount int         `json:"togoTicketCount"`
}

// UnmarshalJSON tolerates counts encoded either as JSON numbers (local
// snapshots) or as decimal strings (documents written through the store's
// atomic-increment path, which encodes every field as a decimal).
func (s *Summary) UnmarshalJSON(data []byte) error {
	var wire struct {
		Revenue         money.Money `json:"revenue"`
		AdultCount      money.Money `json:"adultCount"`
		BigKidCount     money.Money `json:"bigKidCount"`
		SmallKidCount   money.Money `json:"smallKidCount"`
		TogoRevenue     money.Money `json:"togoRevenue"`
		TicketCount     money.Money `json:"ticketCount"`
		TogoTicketCount money.Money `json:"togoTicketCount"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Revenue = wire.Revenue
	s.AdultCount = toCount(wire.AdultCount)
	s.BigKidCount = toCount(wire.BigKidCount)
	s.SmallKidCount = toCount(wire.SmallKidCount)
	s.TogoRevenue = wire.TogoRevenue
	s.TicketCount = toCount(wire.TicketCount)
	s.TogoTicketCount = toCount(wire.TogoTicketCount)
	return nil
}

func toCount(m money.Money) int {
	return int(math.Round(m.Float64()))
}

// Delta is the contribution of a single payment to the summary.
type Delta struct {
	Revenue         money.Money
	AdultCount      int
	BigKidCount     int
	SmallKidCount   int
	TogoRevenue     money.Money
	TicketCount     int
	TogoTicketCount int
}

// IsZero reports whether applying the delta would change nothing.
func (d Delta) IsZero() bool {
	return d.Revenue.IsZero() && d.AdultCount == 0 && d.BigKidCount == 0 &&
		d.SmallKidCount == 0 && d.TogoRevenue.IsZero() &&
		d.TicketCount == 0 && d.TogoTicketCount == 0
}

// Fields maps the delta onto summary document field names for the store's
// atomic-increment operation. Counts ride as integral decimals.
func (d Delta) Fields() map[string]money.Money {
	fields := make(map[string]money.Money)
	if !d.Revenue.IsZero() {
		fields["revenue"] = d.Revenue
	}
	if d.AdultCount != 0 {
		fields["adultCount"] = money.FromInt(int64(d.AdultCount))
	}
	if d.BigKidCount != 0 {
		fields["bigKidCount"] = money.FromInt(int64(d.BigKidCount))
	}
	if d.SmallKidCount != 0 {
		fields["smallKidCount"] = money.FromInt(int64(d.SmallKidCount))
	}
	if !d.TogoRevenue.IsZero() {
		fields["togoRevenue"] = d.TogoRevenue
	}
	if d.TicketCount != 0 {
		fields["ticketCount"] = money.FromInt(int64(d.TicketCount))
	}
	if d.TogoTicketCount != 0 {
		fields["togoTicketCount"] = money.FromInt(int64(d.TogoTicketCount))
	}
	return fields
}

// Apply folds the delta into a local summary copy (the remote store applies
// the same delta through AtomicIncrement).
func (s *Summary) Apply(d Delta) {
	s.Revenue = s.Revenue.Add(d.Revenue)
	s.AdultCount += d.AdultCount
	s.BigKidCount += d.BigKidCount
	s.SmallKidCount += d.SmallKidCount
	s.TogoRevenue = s.TogoRevenue.Add(d.TogoRevenue)
	s.TicketCount += d.TicketCount
	s.TogoTicketCount += d.TogoTicketCount
}

// TicketNumber formats a daily receipt sequence number, e.g. TKT_20260901_042.
func TicketNumber(date time.Time, sequence int) string {
	return fmt.Sprintf("TKT_%s_%03d", date.Format("20060102"), sequence)
}
