// Package coordinator enforces the cross-entity gate ordering of the
// deal lifecycle: a reservation form requires an approved plan on a
// blocked unit with an active block, and a contract requires an approved
// reservation. Document generation reads through the same gates.
package coordinator

import (
	"time"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Gates reads prerequisite rows and asserts the create-time gate matrix.
// All checks re-read current state; callers that mutate afterwards do so
// under row locks in the same transaction, which is what makes the gates
// race-free.
type Gates struct {
	dealRepo  domain.DealRepository
	planRepo  domain.PaymentPlanRepository
	unitRepo  domain.UnitRepository
	blockRepo domain.BlockRepository
	rfRepo    domain.ReservationFormRepository
	now       func() time.Time
}

// NewGates creates a new Gates checker.
func NewGates(dealRepo domain.DealRepository, planRepo domain.PaymentPlanRepository, unitRepo domain.UnitRepository, blockRepo domain.BlockRepository, rfRepo domain.ReservationFormRepository) *Gates {
	return &Gates{
		dealRepo:  dealRepo,
		planRepo:  planRepo,
		unitRepo:  unitRepo,
		blockRepo: blockRepo,
		rfRepo:    rfRepo,
		now:       time.Now,
	}
}

// ReservationPrerequisites is what CheckReservationCreate hands back to
// the caller once every gate passed.
type ReservationPrerequisites struct {
	Plan  *domain.PaymentPlan
	Unit  *domain.Unit
	Block *domain.Block
}

// CheckReservationCreate asserts the full reservation gate: plan
// approved, unit BLOCKED and unavailable, an active approved block, and
// no prior pending or approved reservation for the plan.
func (g *Gates) CheckReservationCreate(planID, unitID int64) (*ReservationPrerequisites, error) {
	plan, err := g.planRepo.GetByID(planID)
	if err != nil {
		return nil, domain.NewNotFound("payment plan not found")
	}
	if plan.Status != domain.PaymentPlanApproved {
		return nil, domain.NewInvariantViolation("Payment plan must be approved to create a reservation")
	}

	unit, err := g.unitRepo.GetByID(unitID)
	if err != nil {
		return nil, domain.NewNotFound("unit not found")
	}
	if unit.Status != domain.UnitStatusBlocked || unit.Available {
		return nil, domain.NewInvariantViolation("Reservation forms can only be created for units that are currently BLOCKED")
	}

	block, err := g.blockRepo.ActiveForUnit(unitID)
	if err != nil {
		return nil, err
	}
	if block == nil || !block.IsActive(g.now()) {
		return nil, domain.NewInvariantViolation("Unit has no active approved block")
	}

	existing, err := g.rfRepo.ExistingForPlan(planID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewInvariantViolation("A reservation already exists for this payment plan")
	}

	return &ReservationPrerequisites{Plan: plan, Unit: unit, Block: block}, nil
}

// CheckContractCreate asserts that the reservation backing a new
// contract is approved.
func (g *Gates) CheckContractCreate(reservationFormID int64) (*domain.ReservationForm, error) {
	rf, err := g.rfRepo.GetByID(reservationFormID)
	if err != nil {
		return nil, domain.NewNotFound("reservation form not found")
	}
	if rf.Status != domain.ReservationApproved {
		return nil, domain.NewInvariantViolation("Reservation form must be approved to create a contract")
	}
	return rf, nil
}

// CheckReservationDocument gates reservation document generation: the
// plan must have an approved reservation form.
func (g *Gates) CheckReservationDocument(planID int64) (*domain.ReservationForm, error) {
	rf, err := g.rfRepo.ExistingForPlan(planID)
	if err != nil {
		return nil, err
	}
	if rf == nil || rf.Status != domain.ReservationApproved {
		return nil, domain.NewInvariantViolation("Payment plan has no approved reservation form")
	}
	return rf, nil
}

// CheckContractDocument gates contract document generation: the deal
// must be approved, and a deal flagged for override must carry an
// approved override.
func (g *Gates) CheckContractDocument(dealID int64) (*domain.Deal, error) {
	deal, err := g.dealRepo.GetByID(dealID)
	if err != nil {
		return nil, domain.NewNotFound("deal not found")
	}
	if deal.Status != domain.DealStatusApproved {
		return nil, domain.NewInvariantViolation("Deal must be approved to generate a contract document")
	}
	if deal.NeedsOverride && deal.OverrideApprovedAt == nil {
		return nil, domain.NewInvariantViolation("Deal requires an approved override")
	}
	return deal, nil
}
