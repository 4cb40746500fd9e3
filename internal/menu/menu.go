package menu

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tableside/internal/docstore"
	"tableside/internal/errs"
	"tableside/internal/logger"
	"tableside/internal/money"
)

const (
	Collection = "menu"
	DocID      = "catalog"

	priceKeyPrefix = "menu:price:"
)

// Item is a sellable menu entry. Code is the stable identifier printed on
// tickets; Name is the display label and may be edited freely.
type Item struct {
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Category string      `json:"category,omitempty"`
	Price    money.Money `json:"price"`
}

// Catalog is the in-memory menu with an optional Redis price cache in front
// of the document store. Edits are batched; other terminals see them through
// the change bus and through cache invalidation.
type Catalog struct {
	mu      sync.RWMutex
	items   map[string]Item
	version int64

	cache *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCatalog(cache *redis.Client, ttl time.Duration, log *logger.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		items: make(map[string]Item),
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// Load pulls the persisted catalog. A missing document leaves the catalog
// empty, which is valid for a fresh installation.
func (c *Catalog) Load(ctx context.Context, store docstore.Store) error {
	doc, err := store.Get(ctx, Collection, DocID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	items, err := decodeItems(doc.Data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = items
	c.version = doc.Version
	c.mu.Unlock()
	return nil
}

// Item returns the entry for code, if present.
func (c *Catalog) Item(code string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[code]
	return item, ok
}

// Price resolves a price by code. The local map is authoritative; Redis is
// consulted only for codes this terminal has never loaded, so a terminal
// that joined mid-shift can price items edited elsewhere before its next
// catalog sync lands.
func (c *Catalog) Price(ctx context.Context, code string) (money.Money, error) {
	c.mu.RLock()
	item, ok := c.items[code]
	c.mu.RUnlock()
	if ok {
		c.cachePrice(ctx, code, item.Price)
		return item.Price, nil
	}

	if c.cache != nil {
		raw, err := c.cache.Get(ctx, priceKeyPrefix+code).Result()
		if err == nil {
			return money.FromString(raw)
		}
		if err != redis.Nil && c.log != nil {
			c.log.Error("menu_price_cache", "price cache read failed", "", err, map[string]interface{}{"code": code})
		}
	}
	return money.Zero(), errs.Validation("unknown menu item %q", code)
}

// Upsert inserts or replaces an item locally and refreshes its cache entry.
func (c *Catalog) Upsert(ctx context.Context, item Item) error {
	if item.Code == "" {
		return errs.Validation("menu item code is required")
	}
	if item.Price.IsNegative() {
		return errs.Validation("menu item %q has a negative price", item.Code)
	}
	c.mu.Lock()
	c.items[item.Code] = item
	c.mu.Unlock()
	c.cachePrice(ctx, item.Code, item.Price)
	return nil
}

// Remove deletes an item and drops its cache entry. Removing an unknown
// code is a no-op.
func (c *Catalog) Remove(ctx context.Context, code string) {
	c.mu.Lock()
	delete(c.items, code)
	c.mu.Unlock()
	if c.cache != nil {
		if err := c.cache.Del(ctx, priceKeyPrefix+code).Err(); err != nil && c.log != nil {
			c.log.Error("menu_cache_invalidate", "price cache delete failed", "", err, map[string]interface{}{"code": code})
		}
	}
}

// Items returns all entries sorted by code.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Version reports the persisted document version last seen by this terminal.
func (c *Catalog) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetVersion records the version returned by a successful save.
func (c *Catalog) SetVersion(v int64) {
	c.mu.Lock()
	c.version = v
	c.mu.Unlock()
}

// Snapshot serializes the catalog for the batched flusher. Items are emitted
// as a sorted list so successive snapshots of the same catalog are identical.
func (c *Catalog) Snapshot() (json.RawMessage, int64, error) {
	items := c.Items()
	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()
	data, err := json.Marshal(items)
	if err != nil {
		return nil, 0, err
	}
	return data, version, nil
}

// ApplyRemote installs a catalog revision received from another terminal.
func (c *Catalog) ApplyRemote(ctx context.Context, data json.RawMessage, version int64) bool {
	items, err := decodeItems(data)
	if err != nil {
		if c.log != nil {
			c.log.Error("menu_apply_remote", "dropping malformed catalog event", "", err, nil)
		}
		return false
	}
	c.mu.Lock()
	if version <= c.version {
		c.mu.Unlock()
		return false
	}
	c.items = items
	c.version = version
	c.mu.Unlock()
	for code, item := range items {
		c.cachePrice(ctx, code, item.Price)
	}
	return true
}

func (c *Catalog) cachePrice(ctx context.Context, code string, price money.Money) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, priceKeyPrefix+code, price.String(), c.ttl).Err(); err != nil && c.log != nil {
		c.log.Error("menu_price_cache", "price cache write failed", "", err, map[string]interface{}{"code": code})
	}
}

func decodeItems(data json.RawMessage) (map[string]Item, error) {
	var list []Item
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errs.Wrap(errs.KindPermanent, "menu document is corrupt", err)
	}
	items := make(map[string]Item, len(list))
	for _, item := range list {
		items[item.Code] = item
	}
	return items, nil
}
