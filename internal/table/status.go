package table

// Status is the derived lifecycle state of a table. It is never stored: it is
// a pure function of the table's data, so the two can't drift apart.
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusOccupied Status = "occupied"
	StatusPrinted  Status = "printed"
)

// Status derives the lifecycle state. The priority order is a correctness
// tie-break: a table holding a committed nonzero price with the occupied flag
// down (post-print, pre-clear) must read PRINTED even though its guest counts
// are still nonzero.
func (t *Table) Status() Status {
	if t.TotalPrice.IsPositive() && !t.Occupied {
		return StatusPrinted
	}
	if t.Occupied || t.hasActivity() {
		return StatusOccupied
	}
	return StatusEmpty
}
