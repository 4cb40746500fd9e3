package table

import (
	"sync"

	"tableside/internal/errs"
)

// Collection is the document collection holding tables, one document per
// table keyed by its number.
const Collection = "tables"

// DocID names the legacy whole-floor snapshot document, still read at
// startup so data written by older builds imports cleanly.
const DocID = "floor"

// Registry holds this terminal's tables, keyed by table number. Local
// mutations are serialized by the mutex, so a read-then-write sequence on one
// table never interleaves with another local mutation; cross-terminal
// contention is the transaction layer's problem, never client-side locking
// beyond this.
type Registry struct {
	mu     sync.Mutex
	tables map[int]*Table
}

// NewRegistry creates count empty tables numbered 1..count.
func NewRegistry(count int) *Registry {
	tables := make(map[int]*Table, count)
	for n := 1; n <= count; n++ {
		tables[n] = New(n)
	}
	return &Registry{tables: tables}
}

// WithTable runs fn against the table while holding the registry lock. fn
// must not block on I/O.
func (r *Registry) WithTable(number int, fn func(*Table) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tables[number]
	if !ok {
		return errs.Validation("no such table: %d", number)
	}
	return fn(t)
}

// Snapshot returns a deep copy of every table, for persistence or display.
func (r *Registry) Snapshot() map[int]*Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int]*Table, len(r.tables))
	for n, t := range r.tables {
		out[n] = t.Clone()
	}
	return out
}

// ApplyRemote merges a remote table state, last-writer-wins, unless the local
// copy already carries a newer version (a local optimistic update still in
// flight must not be clobbered by a stale snapshot).
func (r *Registry) ApplyRemote(incoming *Table) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	incoming.normalizeDrinks()
	local, ok := r.tables[incoming.Number]
	if !ok {
		r.tables[incoming.Number] = incoming.Clone()
		return true
	}
	if incoming.Version <= local.Version {
		return false
	}
	local.Restore(incoming)
	local.Version = incoming.Version
	return true
}

// SetVersion records the server-assigned version after a successful write.
func (r *Registry) SetVersion(number int, version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[number]; ok && version > t.Version {
		t.Version = version
	}
}

// Numbers returns the table numbers in no particular order.
func (r *Registry) Numbers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	nums := make([]int, 0, len(r.tables))
	for n := range r.tables {
		nums = append(nums, n)
	}
	return nums
}
