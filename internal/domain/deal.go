package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DealStatus string

const (
	DealStatusDraft            DealStatus = "draft"
	DealStatusPendingApproval  DealStatus = "pending_approval"
	DealStatusApproved         DealStatus = "approved"
	DealStatusRejected         DealStatus = "rejected"
)

// Deal is the root of the lifecycle. `details` carries a frozen snapshot
// of the calculator output (buyers, unit info, generated plan,
// evaluation) — see Snapshot in snapshot.go.
type Deal struct {
	ID                 int64
	Title              string
	Amount             decimal.Decimal
	Status             DealStatus
	NeedsOverride      bool
	OverrideApprovedAt *time.Time
	FMReviewAt         *time.Time
	CreatedBy          string
	CreatedAt          time.Time
	Details            Snapshot
	Version            int
}

// CanBeApproved reports whether approval is permitted: it
// requires either a prior evaluator ACCEPT, or an override that has been
// approved.
func (d *Deal) CanBeApproved() bool {
	if d.NeedsOverride {
		return d.OverrideApprovedAt != nil
	}
	if d.Details.Calculator == nil {
		return false
	}
	return d.Details.Calculator.Evaluation.Decision == "ACCEPT"
}

type DealRepository interface {
	Create(d *Deal) (*Deal, error)
	GetByID(id int64) (*Deal, error)
	// ExecuteTransition re-reads the row with FOR UPDATE, invokes mutate,
	// persists the result and a history entry in one transaction.
	ExecuteTransition(id int64, mutate func(*Deal) (*Deal, *HistoryEntry, error)) (*Deal, error)
}
