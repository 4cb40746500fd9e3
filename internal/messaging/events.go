package messaging

import (
	"encoding/json"
	"time"
)

// ChangeEvent announces a committed remote write so other terminals can
// reconcile. Origin is the writing terminal's id; a listener drops events it
// originated itself.
type ChangeEvent struct {
	Collection string          `json:"collection"`
	DocID      string          `json:"doc_id"`
	Version    int64           `json:"version"`
	Origin     string          `json:"origin"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RoutingKey returns <collection>.<docID> for the changes exchange.
func (e ChangeEvent) RoutingKey() string {
	return e.Collection + "." + e.DocID
}
