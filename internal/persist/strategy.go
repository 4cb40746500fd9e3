package persist

import (
	"context"

	"tableside/internal/auth"
	"tableside/internal/table"
)

// Class is the persistence class of a mutation: which collection its state
// lives in.
type Class int

const (
	ClassTable Class = iota
	ClassSettings
	ClassMenu
	ClassTogo
	ClassSales
)

func (c Class) String() string {
	switch c {
	case ClassSettings:
		return "settings"
	case ClassMenu:
		return "menu"
	case ClassTogo:
		return "togo"
	case ClassSales:
		return "sales"
	default:
		return "table"
	}
}

// MutationKind enumerates every mutation the terminal can apply. The policy
// switch below is exhaustive, so adding a kind without a policy is a compile
// review item rather than a silent string-map miss.
type MutationKind int

const (
	KindGuestIncrease MutationKind = iota
	KindGuestDecrease
	KindDrinkAdd
	KindDrinkRemove
	KindSeatTime
	KindNameEdit
	KindCalculateTotal
	KindMarkPrinted
	KindPay
	KindClear
	KindTogoEdit
	KindTogoPay
	KindSettingsUpdate
	KindMenuEdit
)

func (k MutationKind) String() string {
	switch k {
	case KindGuestIncrease:
		return "guest_increase"
	case KindGuestDecrease:
		return "guest_decrease"
	case KindDrinkAdd:
		return "drink_add"
	case KindDrinkRemove:
		return "drink_remove"
	case KindSeatTime:
		return "seat_time"
	case KindNameEdit:
		return "name_edit"
	case KindCalculateTotal:
		return "calculate_total"
	case KindMarkPrinted:
		return "mark_printed"
	case KindPay:
		return "pay"
	case KindClear:
		return "clear"
	case KindTogoEdit:
		return "togo_edit"
	case KindTogoPay:
		return "togo_pay"
	case KindSettingsUpdate:
		return "settings_update"
	case KindMenuEdit:
		return "menu_edit"
	default:
		return "unknown"
	}
}

// Intent is one named mutation plus its payload, the unit the router
// classifies.
type Intent struct {
	Kind         MutationKind
	TableNumber  int
	Category     table.Category
	DrinkCode    string
	Name         string
	GlobalDinner bool
}

// Mode says if and when a mutation reaches the remote store.
type Mode int

const (
	// ModeLocalOnly keeps the mutation on this terminal (no actor signed in).
	ModeLocalOnly Mode = iota
	// ModeImmediate flushes the mutation as soon as it happens; losing it
	// mid-shift is unacceptable and it is a cheap single-document write.
	ModeImmediate
	// ModeBatched folds the mutation into the next periodic snapshot write.
	ModeBatched
)

// Policy is the static persistence policy for one mutation kind.
type Policy struct {
	Class     Class
	Immediate bool
}

// PolicyFor returns the static policy table entry for a kind. The switch is
// exhaustive over MutationKind.
func PolicyFor(kind MutationKind) Policy {
	switch kind {
	case KindGuestIncrease, KindGuestDecrease, KindDrinkAdd, KindDrinkRemove,
		KindSeatTime, KindNameEdit, KindCalculateTotal, KindMarkPrinted,
		KindPay, KindClear:
		return Policy{Class: ClassTable, Immediate: true}
	case KindTogoEdit:
		return Policy{Class: ClassTogo, Immediate: false}
	case KindTogoPay:
		return Policy{Class: ClassSales, Immediate: true}
	case KindSettingsUpdate:
		return Policy{Class: ClassSettings, Immediate: false}
	case KindMenuEdit:
		return Policy{Class: ClassMenu, Immediate: false}
	default:
		return Policy{Class: ClassTable, Immediate: true}
	}
}

// Route classifies a mutation for the current context. The router performs no
// I/O; it only decides. Without an actor every mutation stays local.
func Route(ctx context.Context, kind MutationKind) (Class, Mode) {
	policy := PolicyFor(kind)
	if _, ok := auth.FromContext(ctx); !ok {
		return policy.Class, ModeLocalOnly
	}
	if policy.Immediate {
		return policy.Class, ModeImmediate
	}
	return policy.Class, ModeBatched
}
