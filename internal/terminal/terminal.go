// Package terminal is the per-terminal façade the UI talks to. Every
// mutation goes through Apply or one of the named operations: the local
// change lands first, the router decides whether and when it reaches the
// remote store, and a failed remote write rolls the local change back.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"tableside/internal/docstore"
	"tableside/internal/errs"
	"tableside/internal/logger"
	"tableside/internal/menu"
	"tableside/internal/money"
	"tableside/internal/persist"
	"tableside/internal/receipt"
	"tableside/internal/sales"
	"tableside/internal/settings"
	"tableside/internal/table"
	"tableside/internal/togo"
)

// Ack is the immediate answer to a mutation. Status reflects the local state
// after the change; Result reports the remote outcome once it is known. For
// local-only and batched mutations Result is already resolved.
type Ack struct {
	Status table.Status
	Mode   persist.Mode
	Result <-chan persist.Result
}

func resolvedAck(status table.Status, mode persist.Mode, res persist.Result) *Ack {
	ch := make(chan persist.Result, 1)
	ch <- res
	close(ch)
	return &Ack{Status: status, Mode: mode, Result: ch}
}

// Service wires one terminal's state to the persistence and sync machinery.
type Service struct {
	id       string
	registry *table.Registry
	settings *settings.Service
	catalog  *menu.Catalog
	cart     *togo.Cart
	manager  *persist.Manager
	flusher  *persist.Flusher
	printer  receipt.Renderer
	log      *logger.Logger
	strategy persist.ConflictStrategy

	mu        sync.Mutex
	sales     sales.Summary
	ticketDay string
	ticketSeq int
}

type Deps struct {
	ID       string
	Registry *table.Registry
	Settings *settings.Service
	Catalog  *menu.Catalog
	Cart     *togo.Cart
	Manager  *persist.Manager
	Flusher  *persist.Flusher
	Printer  receipt.Renderer
	Logger   *logger.Logger
	Strategy persist.ConflictStrategy
}

func NewService(d Deps) *Service {
	return &Service{
		id:       d.ID,
		registry: d.Registry,
		settings: d.Settings,
		catalog:  d.Catalog,
		cart:     d.Cart,
		manager:  d.Manager,
		flusher:  d.Flusher,
		printer:  d.Printer,
		log:      d.Logger,
		strategy: d.Strategy,
	}
}

// LoadState pulls every persisted document this terminal cares about. The
// legacy whole-floor snapshot is applied first so newer per-table documents
// win through the registry's version guard.
func (s *Service) LoadState(ctx context.Context, store docstore.Store) error {
	docs, err := store.List(ctx, table.Collection)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID != table.DocID {
			continue
		}
		tables, err := table.UnmarshalFloor(doc.Data)
		if err != nil {
			return err
		}
		for _, t := range tables {
			t.Version = doc.Version
			s.registry.ApplyRemote(t)
		}
	}
	for _, doc := range docs {
		number, err := strconv.Atoi(doc.ID)
		if err != nil {
			continue
		}
		var t table.Table
		if err := json.Unmarshal(doc.Data, &t); err != nil {
			return errs.Wrap(errs.KindPermanent, "table document is corrupt", err)
		}
		t.Number = number
		t.Version = doc.Version
		s.registry.ApplyRemote(&t)
	}

	if err := s.settings.Load(ctx, store); err != nil {
		return err
	}
	if s.catalog != nil {
		if err := s.catalog.Load(ctx, store); err != nil {
			return err
		}
	}
	if s.cart != nil {
		if doc, err := store.Get(ctx, togo.Collection, togo.DocID); err == nil {
			s.cart.ApplyRemote(doc.Data, doc.Version)
		} else if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
	}
	if doc, err := store.Get(ctx, sales.Collection, sales.DocID); err == nil {
		var summary sales.Summary
		if err := json.Unmarshal(doc.Data, &summary); err != nil {
			return errs.Wrap(errs.KindPermanent, "sales document is corrupt", err)
		}
		s.mu.Lock()
		s.sales = summary
		s.mu.Unlock()
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

// RegisterFlushers wires the batched classes into the periodic flusher.
func (s *Service) RegisterFlushers() {
	if s.flusher == nil {
		return
	}
	s.flusher.Register(persist.ClassTogo, func(ctx context.Context) error {
		data, _, err := s.cart.Snapshot()
		if err != nil {
			return err
		}
		doc, err := s.manager.SaveSnapshot(ctx, togo.Collection, togo.DocID, data)
		if err != nil {
			return err
		}
		s.cart.SetVersion(doc.Version)
		return nil
	})
	s.flusher.Register(persist.ClassSettings, func(ctx context.Context) error {
		data, _, err := s.settings.Snapshot()
		if err != nil {
			return err
		}
		doc, err := s.manager.SaveSnapshot(ctx, settings.Collection, settings.DocID, data)
		if err != nil {
			return err
		}
		s.settings.SetVersion(doc.Version)
		return nil
	})
	if s.catalog != nil {
		s.flusher.Register(persist.ClassMenu, func(ctx context.Context) error {
			data, _, err := s.catalog.Snapshot()
			if err != nil {
				return err
			}
			doc, err := s.manager.SaveSnapshot(ctx, menu.Collection, menu.DocID, data)
			if err != nil {
				return err
			}
			s.catalog.SetVersion(doc.Version)
			return nil
		})
	}
}

// Apply executes one table mutation. The local change is visible before the
// remote write completes; the Ack's Result channel delivers the remote
// outcome without blocking the caller.
func (s *Service) Apply(ctx context.Context, intent persist.Intent) (*Ack, error) {
	cfg := s.settings.PricingConfig()
	dinner := s.settings.DinnerMode()

	var (
		snapshot *table.Table
		status   table.Status
		delta    sales.Delta
	)
	err := s.registry.WithTable(intent.TableNumber, func(t *table.Table) error {
		snapshot = t.Clone()
		switch intent.Kind {
		case persist.KindGuestIncrease:
			t.IncreaseGuest(intent.Category)
		case persist.KindGuestDecrease:
			t.DecreaseGuest(intent.Category)
		case persist.KindDrinkAdd:
			t.AddDrink(intent.DrinkCode)
		case persist.KindDrinkRemove:
			t.RemoveDrink(intent.DrinkCode)
		case persist.KindSeatTime:
			t.CaptureSeatTime(time.Now())
		case persist.KindNameEdit:
			t.SetName(intent.Name)
		case persist.KindCalculateTotal:
			t.CalculateTotal(&cfg, dinner)
		case persist.KindMarkPrinted:
			t.MarkPrinted()
		case persist.KindPay:
			delta = t.Pay(&cfg, dinner)
		case persist.KindClear:
			t.Clear()
		default:
			return errs.Validation("%s is not a table mutation", intent.Kind)
		}
		status = t.Status()
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, mode := persist.Route(ctx, intent.Kind)
	if mode != persist.ModeImmediate {
		// A pay that never goes remote still counts toward the shift summary.
		if !delta.IsZero() {
			s.recordSale(delta)
		}
		return resolvedAck(status, mode, persist.Result{Success: true}), nil
	}

	ch := make(chan persist.Result, 1)
	number := intent.TableNumber
	// The write outlives the UI call but keeps the actor identity.
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		rollback := func() {
			_ = s.registry.WithTable(number, func(t *table.Table) error {
				t.Restore(snapshot)
				return nil
			})
		}
		res := s.manager.PersistOptimistic(writeCtx, rollback, func(ctx context.Context) error {
			if err := s.manager.SaveTable(ctx, s.registry, number, s.strategy); err != nil {
				return err
			}
			if delta.IsZero() {
				return nil
			}
			return s.manager.IncrementSales(ctx, delta)
		})
		if res.Success && !delta.IsZero() {
			s.recordSale(delta)
		}
		ch <- res
	}()
	return &Ack{Status: status, Mode: mode, Result: ch}, nil
}

// PrintBill commits the table's total, renders the ticket, and marks the
// table printed. A renderer failure is logged and reported in the summary's
// wake but never undoes the committed price.
func (s *Service) PrintBill(ctx context.Context, number int) (receipt.Summary, *Ack, error) {
	cfg := s.settings.PricingConfig()
	current := s.settings.Current()

	// Committing the price must land before the printed flag is written, or
	// the second compare-and-put races the first on the same version.
	calcAck, err := s.Apply(ctx, persist.Intent{Kind: persist.KindCalculateTotal, TableNumber: number})
	if err != nil {
		return receipt.Summary{}, nil, err
	}
	if res := <-calcAck.Result; !res.Success {
		return receipt.Summary{}, nil, res.Err
	}

	now := time.Now()
	var summary receipt.Summary
	err = s.registry.WithTable(number, func(t *table.Table) error {
		summary = receipt.BuildTableSummary(t, &cfg, current.DinnerMode, s.nextTicket(now), current.GratuityPercents, now)
		return nil
	})
	if err != nil {
		return receipt.Summary{}, nil, err
	}

	if s.printer != nil {
		if err := s.printer.Render(ctx, summary); err != nil {
			s.log.Error("receipt_render_failed", "Ticket did not print; bill stands", "", err, map[string]interface{}{
				"table":  number,
				"ticket": summary.TicketNumber,
			})
		}
	}

	ack, err := s.Apply(ctx, persist.Intent{Kind: persist.KindMarkPrinted, TableNumber: number})
	return summary, ack, err
}

// AddTogoLine prices a menu item and appends it to the shared takeout cart.
func (s *Service) AddTogoLine(ctx context.Context, code string, quantity int) error {
	item, ok := s.catalog.Item(code)
	if !ok {
		price, err := s.catalog.Price(ctx, code)
		if err != nil {
			return err
		}
		item = menu.Item{Code: code, Name: code, Price: price}
	}
	if err := s.cart.AddLine(item.Name, item.Price, quantity); err != nil {
		return err
	}
	s.markDirty(ctx, persist.KindTogoEdit)
	return nil
}

// RemoveTogoLine drops one cart line by index.
func (s *Service) RemoveTogoLine(ctx context.Context, index int) error {
	if err := s.cart.RemoveLine(index); err != nil {
		return err
	}
	s.markDirty(ctx, persist.KindTogoEdit)
	return nil
}

// PayTogo closes the cart as a single takeout ticket. The sales increment is
// immediate; the emptied cart itself rides the next batched snapshot.
func (s *Service) PayTogo(ctx context.Context) (*Ack, error) {
	cfg := s.settings.PricingConfig()
	lines := s.cart.Lines()
	delta := s.cart.Pay(&cfg)
	if delta.IsZero() {
		return resolvedAck("", persist.ModeLocalOnly, persist.Result{Success: true}), nil
	}

	_, mode := persist.Route(ctx, persist.KindTogoPay)
	if mode != persist.ModeImmediate {
		s.recordSale(delta)
		return resolvedAck("", mode, persist.Result{Success: true}), nil
	}

	s.markDirty(ctx, persist.KindTogoEdit)
	ch := make(chan persist.Result, 1)
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(ch)
		res := s.manager.PersistOptimistic(writeCtx, func() {
			s.cart.Restore(lines)
		}, func(ctx context.Context) error {
			return s.manager.IncrementSales(ctx, delta)
		})
		if res.Success {
			s.recordSale(delta)
		}
		ch <- res
	}()
	return &Ack{Mode: mode, Result: ch}, nil
}

// UpdateSettings validates and installs new settings, then queues them for
// the next batched flush.
func (s *Service) UpdateSettings(ctx context.Context, next settings.Settings) error {
	if err := s.settings.Update(next); err != nil {
		return err
	}
	s.markDirty(ctx, persist.KindSettingsUpdate)
	return nil
}

// SetDinnerMode flips the global lunch/dinner toggle.
func (s *Service) SetDinnerMode(ctx context.Context, dinner bool) {
	s.settings.SetDinnerMode(dinner)
	s.markDirty(ctx, persist.KindSettingsUpdate)
}

// UpsertMenuItem edits the shared catalog.
func (s *Service) UpsertMenuItem(ctx context.Context, item menu.Item) error {
	if err := s.catalog.Upsert(ctx, item); err != nil {
		return err
	}
	s.markDirty(ctx, persist.KindMenuEdit)
	return nil
}

// RemoveMenuItem deletes a catalog entry.
func (s *Service) RemoveMenuItem(ctx context.Context, code string) {
	s.catalog.Remove(ctx, code)
	s.markDirty(ctx, persist.KindMenuEdit)
}

// LivePrice quotes the table's current running total without committing it.
func (s *Service) LivePrice(number int) (money.Money, error) {
	cfg := s.settings.PricingConfig()
	dinner := s.settings.DinnerMode()
	var price money.Money
	err := s.registry.WithTable(number, func(t *table.Table) error {
		price = t.LivePrice(&cfg, dinner)
		return nil
	})
	return price, err
}

// SeatedLong lists tables whose parties have been seated longer than the
// configured alert threshold.
func (s *Service) SeatedLong(now time.Time) []int {
	threshold := time.Duration(s.settings.Current().SeatedAlertMin) * time.Minute
	if threshold <= 0 {
		return nil
	}
	var overdue []int
	for number, t := range s.registry.Snapshot() {
		if seated, ok := t.SeatedSince(); ok && now.Sub(seated) > threshold {
			overdue = append(overdue, number)
		}
	}
	return overdue
}

// Sales returns this terminal's running view of the shift summary.
func (s *Service) Sales() sales.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sales
}

func (s *Service) recordSale(delta sales.Delta) {
	s.mu.Lock()
	s.sales.Apply(delta)
	s.mu.Unlock()
}

func (s *Service) nextTicket(now time.Time) string {
	day := now.Format("20060102")
	s.mu.Lock()
	// Ticket numbers restart at _001 every calendar day.
	if day != s.ticketDay {
		s.ticketDay = day
		s.ticketSeq = 0
	}
	s.ticketSeq++
	seq := s.ticketSeq
	s.mu.Unlock()
	return sales.TicketNumber(now, seq)
}

// markDirty queues a batched class for the next snapshot flush, unless the
// mutation routed local-only.
func (s *Service) markDirty(ctx context.Context, kind persist.MutationKind) {
	if s.flusher == nil {
		return
	}
	class, mode := persist.Route(ctx, kind)
	if mode == persist.ModeLocalOnly {
		return
	}
	s.flusher.MarkDirty(class)
}
