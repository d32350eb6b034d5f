package domain

import "github.com/shopspring/decimal"

type UnitStatus string

const (
	UnitStatusInventoryDraft UnitStatus = "INVENTORY_DRAFT"
	UnitStatusAvailable      UnitStatus = "AVAILABLE"
	UnitStatusBlocked        UnitStatus = "BLOCKED"
	UnitStatusReserved       UnitStatus = "RESERVED"
	UnitStatusSold           UnitStatus = "SOLD"
)

// PricingBreakdown is the standard plan a unit is priced against; the
// evaluator recomputes standard PV rather than trusting a stored value.
type PricingBreakdown struct {
	TotalPrice        decimal.Decimal
	AnnualRatePercent decimal.Decimal
	StandardPV        decimal.Decimal
}

// Unit ownership moves exclusively through the block -> reserve -> sell
// chain. available is kept in lockstep with unit_status by
// every engine transition that touches it.
type Unit struct {
	ID        int64
	Code      string
	Status    UnitStatus
	Available bool
	ModelID   *int64
	Pricing   *PricingBreakdown
	Version   int
}

// Consistent checks the invariant `unit_status=AVAILABLE ⇔ available=true`
// and `BLOCKED/RESERVED/SOLD ⇒ available=false`.
func (u *Unit) Consistent() bool {
	if u.Status == UnitStatusAvailable {
		return u.Available
	}
	if u.Status == UnitStatusBlocked || u.Status == UnitStatusReserved || u.Status == UnitStatusSold {
		return !u.Available
	}
	return true
}

type UnitRepository interface {
	GetByID(id int64) (*Unit, error)
	GetByCode(code string) (*Unit, error)
	// ExecuteTransition locks the unit row, runs mutate, and persists the
	// result in its own transaction.
	ExecuteTransition(id int64, mutate func(*Unit) (*Unit, error)) (*Unit, error)
	// ExecuteTransitionTx is the same operation joined to a Tx a caller
	// already began, so a Unit mutation commits atomically alongside the
	// Block or ReservationForm mutation that triggered it.
	ExecuteTransitionTx(tx Tx, id int64, mutate func(*Unit) (*Unit, error)) (*Unit, error)
}
