// Package sync reconciles remote changes into this terminal's in-memory
// state. It consumes change events published by other terminals, drops its
// own echoes, and applies the rest through each component's version-guarded
// ApplyRemote path.
package sync

import (
	"context"
	"encoding/json"
	"strconv"
	gosync "sync"

	"tableside/internal/logger"
	"tableside/internal/menu"
	"tableside/internal/messaging"
	"tableside/internal/sales"
	"tableside/internal/settings"
	"tableside/internal/table"
	"tableside/internal/togo"
)

// Listener applies change events to local state. All component references
// are optional; a nil component means events for its collection are ignored,
// which keeps single-purpose deployments (a kitchen display that only wants
// tables) cheap.
type Listener struct {
	origin   string
	registry *table.Registry
	settings *settings.Service
	catalog  *menu.Catalog
	cart     *togo.Cart
	log      *logger.Logger

	mu           gosync.Mutex
	salesSummary sales.Summary
	salesVersion int64
}

func NewListener(origin string, registry *table.Registry, svc *settings.Service, catalog *menu.Catalog, cart *togo.Cart, log *logger.Logger) *Listener {
	return &Listener{
		origin:   origin,
		registry: registry,
		settings: svc,
		catalog:  catalog,
		cart:     cart,
		log:      log,
	}
}

// Run consumes from the terminal queue until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, consumer *messaging.Consumer) error {
	return consumer.StartConsuming(ctx, l.Handle)
}

// Handle processes one raw event body. Malformed bodies are logged and
// dropped rather than requeued; a body that failed to parse once will fail
// forever.
func (l *Listener) Handle(ctx context.Context, body []byte) error {
	var evt messaging.ChangeEvent
	if err := messaging.ParseMessage(body, &evt); err != nil {
		l.logError("sync_parse_failed", "dropping malformed change event", err, nil)
		return nil
	}
	if evt.Origin == l.origin {
		return nil
	}

	applied := l.dispatch(ctx, evt)
	if l.log != nil {
		l.log.Debug("sync_event", "change event processed", "", map[string]interface{}{
			"collection": evt.Collection,
			"doc_id":     evt.DocID,
			"version":    evt.Version,
			"origin":     evt.Origin,
			"applied":    applied,
		})
	}
	return nil
}

func (l *Listener) dispatch(ctx context.Context, evt messaging.ChangeEvent) bool {
	switch evt.Collection {
	case table.Collection:
		return l.applyTable(evt)
	case sales.Collection:
		return l.applySales(evt)
	case settings.Collection:
		if l.settings == nil {
			return false
		}
		return l.settings.ApplyRemote(evt.Data, evt.Version)
	case menu.Collection:
		if l.catalog == nil {
			return false
		}
		return l.catalog.ApplyRemote(ctx, evt.Data, evt.Version)
	case togo.Collection:
		if l.cart == nil {
			return false
		}
		return l.cart.ApplyRemote(evt.Data, evt.Version)
	default:
		l.logError("sync_unknown_collection", "dropping event for unknown collection", nil, map[string]interface{}{
			"collection": evt.Collection,
		})
		return false
	}
}

func (l *Listener) applyTable(evt messaging.ChangeEvent) bool {
	if l.registry == nil {
		return false
	}
	number, err := strconv.Atoi(evt.DocID)
	if err != nil {
		l.logError("sync_bad_table_id", "dropping table event with non-numeric id", err, map[string]interface{}{
			"doc_id": evt.DocID,
		})
		return false
	}
	var incoming table.Table
	if err := json.Unmarshal(evt.Data, &incoming); err != nil {
		l.logError("sync_bad_table_body", "dropping malformed table event", err, nil)
		return false
	}
	incoming.Number = number
	incoming.Version = evt.Version
	return l.registry.ApplyRemote(&incoming)
}

func (l *Listener) applySales(evt messaging.ChangeEvent) bool {
	var incoming sales.Summary
	if err := json.Unmarshal(evt.Data, &incoming); err != nil {
		l.logError("sync_bad_sales_body", "dropping malformed sales event", err, nil)
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if evt.Version <= l.salesVersion {
		return false
	}
	l.salesSummary = incoming
	l.salesVersion = evt.Version
	return true
}

// Sales returns the latest remote sales summary seen on the bus.
func (l *Listener) Sales() (sales.Summary, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.salesSummary, l.salesVersion
}

func (l *Listener) logError(action, message string, err error, fields map[string]interface{}) {
	if l.log != nil {
		l.log.Error(action, message, "", err, fields)
	}
}
