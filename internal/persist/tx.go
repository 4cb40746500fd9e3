package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tableside/internal/docstore"
	"tableside/internal/errs"
	"tableside/internal/logger"
	"tableside/internal/messaging"
	"tableside/internal/retry"
	"tableside/internal/sales"
	"tableside/internal/table"
)

// ConflictStrategy picks how a write conflict on a shared document is
// reconciled after the optimistic precondition fails.
type ConflictStrategy int

const (
	// NoResolver propagates the conflict to the caller.
	NoResolver ConflictStrategy = iota
	// Merge adds numeric counters together and takes the incoming value for
	// everything else.
	Merge
	// LatestWins compares version timestamps.
	LatestWins
	// CurrentWins keeps the remote document and adopts it locally.
	CurrentWins
	// IncomingWins overwrites with the local document.
	IncomingWins
)

// Result is the structured outcome of an optimistic persistence attempt.
type Result struct {
	Success bool
	Err     error
}

// Manager wraps remote read-modify-writes in retryable, conflict-aware
// transactions and announces every committed write on the change bus.
type Manager struct {
	store     docstore.Store
	publisher messaging.ChangePublisher
	policy    retry.Policy
	origin    string
	log       *logger.Logger
}

// NewManager creates a transaction manager for one terminal. publisher may be
// nil (local-only mode); committed writes are then simply not announced.
func NewManager(store docstore.Store, publisher messaging.ChangePublisher, origin string, log *logger.Logger) *Manager {
	return &Manager{
		store:     store,
		publisher: publisher,
		policy:    retry.DefaultPolicy(),
		origin:    origin,
		log:       log,
	}
}

// Origin returns the terminal id stamped on published change events.
func (m *Manager) Origin() string {
	return m.origin
}

// transientOnly keeps conflict handling out of the generic retry loop; the
// resolution attempt below runs once, per the error-handling policy.
func transientOnly(err error) bool {
	return errs.Classify(err) == errs.KindTransient
}

// SaveTable persists one table document with a version compare-and-swap. On a
// conflict the supplied strategy is applied once against a fresh read; an
// unresolved conflict surfaces as the error.
func (m *Manager) SaveTable(ctx context.Context, reg *table.Registry, number int, strategy ConflictStrategy) error {
	docID := strconv.Itoa(number)

	return retry.Do(ctx, m.policy, func(ctx context.Context) error {
		var (
			incoming json.RawMessage
			version  int64
		)
		err := reg.WithTable(number, func(t *table.Table) error {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal table %d: %w", number, err)
			}
			incoming = data
			version = t.Version
			return nil
		})
		if err != nil {
			return err
		}

		doc, err := m.store.CompareAndPut(ctx, table.Collection, docID, incoming, version)
		if errors.Is(err, errs.ErrVersionConflict) {
			doc, err = m.resolveTableConflict(ctx, reg, number, docID, incoming, strategy)
			if err != nil {
				return err
			}
			if doc == nil {
				// Current won: remote state adopted locally, nothing to publish.
				return nil
			}
		} else if err != nil {
			return err
		}

		reg.SetVersion(number, doc.Version)
		m.publish(ctx, doc)
		return nil
	}, transientOnly)
}

// resolveTableConflict re-reads remote state and applies the strategy once.
// A nil document with nil error means the current (remote) version won.
func (m *Manager) resolveTableConflict(ctx context.Context, reg *table.Registry, number int, docID string, incoming json.RawMessage, strategy ConflictStrategy) (*docstore.Document, error) {
	if strategy == NoResolver {
		return nil, fmt.Errorf("table %d: %w", number, errs.ErrVersionConflict)
	}

	current, err := m.store.Get(ctx, table.Collection, docID)
	if err != nil {
		return nil, fmt.Errorf("re-read for conflict resolution: %w", err)
	}

	m.log.Debug("conflict_resolving",
		fmt.Sprintf("Resolving write conflict on table %d", number),
		"", map[string]interface{}{
			"table":    number,
			"strategy": int(strategy),
			"remote_v": current.Version,
		})

	resolved, keepCurrent, err := resolve(strategy, current, incoming, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if keepCurrent {
		if err := m.adoptRemoteTable(reg, current); err != nil {
			return nil, err
		}
		return nil, nil
	}

	doc, err := m.store.CompareAndPut(ctx, table.Collection, docID, resolved, current.Version)
	if err != nil {
		return nil, fmt.Errorf("conflict resolution write: %w", err)
	}
	return doc, nil
}

func (m *Manager) adoptRemoteTable(reg *table.Registry, doc *docstore.Document) error {
	var remote table.Table
	if err := json.Unmarshal(doc.Data, &remote); err != nil {
		return fmt.Errorf("decode remote table: %w", err)
	}
	remote.Version = doc.Version
	reg.ApplyRemote(&remote)
	return nil
}

// IncrementSales applies a sales delta through the store's atomic increment.
// The counters are never read-compute-overwritten with a plain value: two
// terminals closing tables in the same instant must both land.
func (m *Manager) IncrementSales(ctx context.Context, delta sales.Delta) error {
	fields := delta.Fields()
	if len(fields) == 0 {
		return nil
	}

	var doc *docstore.Document
	err := retry.Do(ctx, m.policy, func(ctx context.Context) error {
		var err error
		doc, err = m.store.AtomicIncrement(ctx, sales.Collection, sales.DocID, fields)
		return err
	}, nil)
	if err != nil {
		return fmt.Errorf("increment sales summary: %w", err)
	}

	m.publish(ctx, doc)
	return nil
}

// SaveSnapshot writes one consolidated document for a batched persistence
// class (settings, menu, togo) and returns the stored document so the caller
// can record its assigned version.
func (m *Manager) SaveSnapshot(ctx context.Context, collection, id string, data json.RawMessage) (*docstore.Document, error) {
	var doc *docstore.Document
	err := retry.Do(ctx, m.policy, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Put(ctx, collection, id, data)
		return err
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", collection, id, err)
	}

	m.publish(ctx, doc)
	return doc, nil
}

// PersistOptimistic runs the remote write after the caller already applied
// the local change. On failure after retries the rollback runs exactly once
// and the structured failure is returned; on success the optimistic state
// stands.
func (m *Manager) PersistOptimistic(ctx context.Context, rollback func(), write func(ctx context.Context) error) Result {
	err := write(ctx)
	if err == nil {
		return Result{Success: true}
	}

	if rollback != nil {
		rollback()
	}
	m.log.Error("optimistic_rollback",
		"Remote write failed after retries, local change rolled back",
		"", err, nil)
	return Result{Success: false, Err: err}
}

// publish announces a committed write. Best effort: the store is the source
// of truth, listeners reconcile on the next event.
func (m *Manager) publish(ctx context.Context, doc *docstore.Document) {
	if m.publisher == nil || doc == nil {
		return
	}
	event := messaging.ChangeEvent{
		Collection: doc.Collection,
		DocID:      doc.ID,
		Version:    doc.Version,
		Origin:     m.origin,
		Data:       doc.Data,
		OccurredAt: time.Now().UTC(),
	}
	if err := m.publisher.PublishChange(ctx, event); err != nil {
		m.log.Error("change_publish_failed",
			fmt.Sprintf("Failed to announce %s/%s", doc.Collection, doc.ID),
			"", err, nil)
	}
}

// resolve reconciles two divergent document versions. keepCurrent reports
// that the remote document should stand unchanged.
func resolve(strategy ConflictStrategy, current *docstore.Document, incoming json.RawMessage, incomingAt time.Time) (resolved json.RawMessage, keepCurrent bool, err error) {
	switch strategy {
	case CurrentWins:
		return nil, true, nil
	case IncomingWins:
		return incoming, false, nil
	case LatestWins:
		if current.UpdatedAt.After(incomingAt) {
			return nil, true, nil
		}
		return incoming, false, nil
	case Merge:
		merged, err := mergeDocuments(current.Data, incoming)
		if err != nil {
			return nil, false, err
		}
		return merged, false, nil
	default:
		return nil, false, fmt.Errorf("unknown conflict strategy %d", strategy)
	}
}

// counterFields are the additive counters MERGE sums when both sides carry
// the field. Everything else, numeric or not, is last-write-wins in favor of
// incoming; identity fields like "number" must never be added together.
var counterFields = map[string]bool{
	"adultCount":      true,
	"bigKidCount":     true,
	"smallKidCount":   true,
	"togoCount":       true,
	"ticketCount":     true,
	"togoTicketCount": true,
}

// mergeDocuments folds incoming into current: allowlisted counters are
// added, everything else is last-write-wins in favor of incoming.
func mergeDocuments(current, incoming json.RawMessage) (json.RawMessage, error) {
	var base, in map[string]json.RawMessage
	if len(current) > 0 {
		if err := json.Unmarshal(current, &base); err != nil {
			return nil, fmt.Errorf("merge: current document: %w", err)
		}
	}
	if base == nil {
		base = make(map[string]json.RawMessage)
	}
	if err := json.Unmarshal(incoming, &in); err != nil {
		return nil, fmt.Errorf("merge: incoming document: %w", err)
	}

	for key, incomingRaw := range in {
		currentRaw, ok := base[key]
		if ok && counterFields[key] {
			var a, b int64
			if json.Unmarshal(currentRaw, &a) == nil && json.Unmarshal(incomingRaw, &b) == nil {
				sum, err := json.Marshal(a + b)
				if err != nil {
					return nil, err
				}
				base[key] = sum
				continue
			}
		}
		base[key] = incomingRaw
	}

	return json.Marshal(base)
}
