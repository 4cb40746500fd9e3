package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tableside/internal/errs"
	"tableside/internal/money"
)

// Memory is an in-process Store with the same semantics as Postgres. It backs
// tests and local-only mode (no actor signed in, nothing leaves the process).
type Memory struct {
	mu   sync.Mutex
	docs map[string]*Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*Document)}
}

func key(collection, id string) string {
	return collection + "/" + id
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[key(collection, id)]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, errs.ErrNotFound)
	}
	return copyDoc(doc), nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := collection + "/"
	var docs []*Document
	for k, doc := range m.docs {
		if strings.HasPrefix(k, prefix) {
			docs = append(docs, copyDoc(doc))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *Memory) Put(ctx context.Context, collection, id string, data json.RawMessage) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(collection, id, data), nil
}

func (m *Memory) putLocked(collection, id string, data json.RawMessage) *Document {
	k := key(collection, id)
	var version int64 = 1
	if existing, ok := m.docs[k]; ok {
		version = existing.Version + 1
	}
	doc := &Document{
		Collection: collection,
		ID:         id,
		Data:       append(json.RawMessage(nil), data...),
		Version:    version,
		UpdatedAt:  time.Now().UTC(),
	}
	m.docs[k] = doc
	return copyDoc(doc)
}

func (m *Memory) CompareAndPut(ctx context.Context, collection, id string, data json.RawMessage, expectedVersion int64) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[key(collection, id)]
	var current int64
	if ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("compare-and-put %s/%s at v%d (stored v%d): %w",
			collection, id, expectedVersion, current, errs.ErrVersionConflict)
	}
	return m.putLocked(collection, id, data), nil
}

func (m *Memory) TransactionalUpdate(ctx context.Context, collection, id string, fn UpdateFunc) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		current json.RawMessage
		version int64
	)
	if existing, ok := m.docs[key(collection, id)]; ok {
		current = append(json.RawMessage(nil), existing.Data...)
		version = existing.Version
	}

	next, err := fn(current, version)
	if err != nil {
		return nil, err
	}
	return m.putLocked(collection, id, next), nil
}

func (m *Memory) AtomicIncrement(ctx context.Context, collection, id string, deltas map[string]money.Money) (*Document, error) {
	return m.TransactionalUpdate(ctx, collection, id, func(current json.RawMessage, _ int64) (json.RawMessage, error) {
		return ApplyIncrements(current, deltas)
	})
}

func copyDoc(doc *Document) *Document {
	dup := *doc
	dup.Data = append(json.RawMessage(nil), doc.Data...)
	return &dup
}
