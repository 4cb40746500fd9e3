package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tableside/internal/money"
)

// Document is one versioned JSON document in a collection. Version is
// server-assigned and increases monotonically with every write; it is the
// optimistic-concurrency precondition.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	Version    int64
	UpdatedAt  time.Time
}

// UpdateFunc derives the new document body from the current one inside a
// transactional update. current is nil when the document does not exist yet.
type UpdateFunc func(current json.RawMessage, version int64) (json.RawMessage, error)

// Store is the remote document store contract. The system persists a fixed
// small set of collections (tables, sales, settings, menu, togo); it is not a
// general database.
type Store interface {
	// Get returns the document or errs.ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// List returns every document in a collection, for startup loads.
	List(ctx context.Context, collection string) ([]*Document, error)

	// Put unconditionally upserts the document and bumps its version.
	Put(ctx context.Context, collection, id string, data json.RawMessage) (*Document, error)

	// CompareAndPut writes only if the stored version still equals
	// expectedVersion (0 means "must not exist yet"); otherwise it returns
	// errs.ErrVersionConflict. This is the compare-and-swap the optimistic
	// transaction layer retries on.
	CompareAndPut(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) (*Document, error)

	// TransactionalUpdate runs fn against the current body inside a
	// store-side transaction; concurrent updates to the same document are
	// serialized by the store.
	TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (*Document, error)

	// AtomicIncrement adds deltas to numeric fields of the document inside a
	// transaction. Never a blind overwrite: two terminals incrementing at the
	// same instant both land.
	AtomicIncrement(ctx context.Context, collection, id string, deltas map[string]money.Money) (*Document, error)
}

// ApplyIncrements adds deltas to the named top-level fields of a JSON
// document body. Missing fields start at zero; amounts are written back as
// decimal strings. Shared by every Store implementation so their increment
// semantics cannot diverge.
func ApplyIncrements(current json.RawMessage, deltas map[string]money.Money) (json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	if len(current) > 0 {
		if err := json.Unmarshal(current, &doc); err != nil {
			return nil, fmt.Errorf("parsing document for increment: %w", err)
		}
	}

	for field, delta := range deltas {
		base := money.Zero()
		if raw, ok := doc[field]; ok {
			if err := json.Unmarshal(raw, &base); err != nil {
				return nil, fmt.Errorf("field %q is not numeric: %w", field, err)
			}
		}
		encoded, err := json.Marshal(base.Add(delta))
		if err != nil {
			return nil, err
		}
		doc[field] = encoded
	}

	return json.Marshal(doc)
}
