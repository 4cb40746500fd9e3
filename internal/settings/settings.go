package settings

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	"tableside/internal/docstore"
	"tableside/internal/errs"
	"tableside/internal/logger"
	"tableside/internal/money"
	"tableside/internal/pricing"
)

const (
	Collection = "settings"
	DocID      = "pos"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if m, ok := field.Interface().(money.Money); ok {
			return m.Float64()
		}
		return nil
	}, money.Money{})
	return v
}

// Settings is the single shared configuration document. Every terminal
// loads it at startup and receives later revisions over the change bus.
type Settings struct {
	Pricing          pricing.Config `json:"pricing" validate:"required"`
	DinnerMode       bool           `json:"dinnerMode"`
	GratuityPercents []int64        `json:"gratuityPercents" validate:"required,min=1,dive,gte=0,lte=100"`
	SeatedAlertMin   int            `json:"seatedAlertMinutes" validate:"gte=0"`
	Language         string         `json:"language,omitempty"`
}

// Default returns the settings used before any document has been saved.
func Default() Settings {
	return Settings{
		Pricing: pricing.Config{
			TaxMultiplier:  money.MustFromString("1.07"),
			AdultLunch:     money.MustFromString("10.99"),
			AdultDinner:    money.MustFromString("14.99"),
			BigKidLunch:    money.MustFromString("6.99"),
			BigKidDinner:   money.MustFromString("8.99"),
			SmallKidLunch:  money.MustFromString("3.99"),
			SmallKidDinner: money.MustFromString("4.99"),
			DrinkPrice:     money.MustFromString("1.99"),
			WaterPrice:     money.Zero(),
		},
		DinnerMode:       false,
		GratuityPercents: []int64{10, 15, 20},
		SeatedAlertMin:   60,
	}
}

// Validate checks a candidate settings document. All updates funnel through
// here; there is no second write path that could skip it.
func Validate(s Settings) error {
	if err := validate.Struct(s); err != nil {
		return errs.Validation("settings rejected: %s", err.Error())
	}
	return nil
}

// Service holds the current settings revision behind a mutex. Reads hand out
// copies so callers can never mutate shared state in place.
type Service struct {
	mu      sync.RWMutex
	current Settings
	version int64
	log     *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	return &Service{current: Default(), log: log}
}

// Current returns a copy of the active settings.
func (s *Service) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.current
	out.GratuityPercents = append([]int64(nil), s.current.GratuityPercents...)
	return out
}

// PricingConfig returns a copy of the active pricing table.
func (s *Service) PricingConfig() pricing.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Pricing
}

// DinnerMode reports the live global pricing toggle.
func (s *Service) DinnerMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.DinnerMode
}

// Update validates and installs a full replacement document.
func (s *Service) Update(next Settings) error {
	if err := Validate(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

// SetDinnerMode flips the global lunch/dinner toggle. Tables that already
// printed keep their frozen mode regardless.
func (s *Service) SetDinnerMode(dinner bool) {
	s.mu.Lock()
	s.current.DinnerMode = dinner
	s.mu.Unlock()
}

// Version reports the persisted document version last seen by this terminal.
func (s *Service) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetVersion records the version returned by a successful save.
func (s *Service) SetVersion(v int64) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

// Load pulls the persisted document if one exists. A missing document is not
// an error; defaults stay in effect until the first save.
func (s *Service) Load(ctx context.Context, store docstore.Store) error {
	doc, err := store.Get(ctx, Collection, DocID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	var loaded Settings
	if err := json.Unmarshal(doc.Data, &loaded); err != nil {
		return errs.Wrap(errs.KindPermanent, "settings document is corrupt", err)
	}
	if err := Validate(loaded); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = loaded
	s.version = doc.Version
	s.mu.Unlock()
	return nil
}

// Snapshot serializes the current settings for the batched flusher.
func (s *Service) Snapshot() (json.RawMessage, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s.current)
	if err != nil {
		return nil, 0, err
	}
	return data, s.version, nil
}

// ApplyRemote installs a settings revision received from another terminal.
// Stale or invalid revisions are dropped.
func (s *Service) ApplyRemote(data json.RawMessage, version int64) bool {
	var incoming Settings
	if err := json.Unmarshal(data, &incoming); err != nil {
		if s.log != nil {
			s.log.Error("settings_apply_remote", "dropping malformed settings event", "", err, nil)
		}
		return false
	}
	if err := Validate(incoming); err != nil {
		if s.log != nil {
			s.log.Error("settings_apply_remote", "dropping invalid settings event", "", err, nil)
		}
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if version <= s.version {
		return false
	}
	s.current = incoming
	s.version = version
	return true
}
