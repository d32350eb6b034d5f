package domain

import "time"

type BlockStatus string

const (
	BlockStatusPending  BlockStatus = "pending"
	BlockStatusApproved BlockStatus = "approved"
	BlockStatusRejected BlockStatus = "rejected"
	BlockStatusExpired  BlockStatus = "expired"
)

type OverrideStatus string

const (
	OverrideNone       OverrideStatus = "none"
	OverridePendingSM  OverrideStatus = "pending_sm"
	OverridePendingFM  OverrideStatus = "pending_fm"
	OverridePendingTM  OverrideStatus = "pending_tm"
	OverrideApproved   OverrideStatus = "approved"
	OverrideRejected   OverrideStatus = "rejected"
)

// FinancialDecision is the evaluator-style verdict recorded against a
// block when its request was scored (ACCEPT lets the normal FM approval
// proceed; REJECT requires the override chain).
type FinancialDecision string

const (
	FinancialDecisionAccept FinancialDecision = "ACCEPT"
	FinancialDecisionReject FinancialDecision = "REJECT"
)

const (
	MinBlockDurationDays = 1
	MaxBlockDurationDays = 28
	MaxExtensions        = 3
	ExtensionStepDays    = 7
)

// Block holds a unit out of availability for a requested duration.
// Invariants: at most one approved+active block per unit;
// initial duration + extension_count*7 + any pending extra ≤ 28 days.
type Block struct {
	ID                int64
	UnitID            int64
	RequestedBy       string
	DurationDays      int
	Reason            string
	Status            BlockStatus
	OverrideStatus    OverrideStatus
	BlockedUntil      time.Time
	ExtensionCount    int
	FinancialDecision *FinancialDecision
	NextNotifyAt      *time.Time
	Version           int
}

// IsActive reports whether this block currently occupies the unit.
func (b *Block) IsActive(now time.Time) bool {
	return b.Status == BlockStatusApproved && b.BlockedUntil.After(now)
}

// CanExtend requires extension_count<3 and total duration
// (initial + extension_count*7 + additional) <= 28.
func (b *Block) CanExtend(additionalDays int) bool {
	if b.ExtensionCount >= MaxExtensions {
		return false
	}
	total := b.DurationDays + b.ExtensionCount*ExtensionStepDays + additionalDays
	return total <= MaxBlockDurationDays
}

type BlockRepository interface {
	Create(b *Block) (*Block, error)
	GetByID(id int64) (*Block, error)
	// ActiveForUnit returns the current approved+active block for a unit,
	// if any.
	ActiveForUnit(unitID int64) (*Block, error)
	ExpiredApproved(now time.Time, limit int) ([]*Block, error)
	DueForReminder(now time.Time, limit int) ([]*Block, error)
	ExecuteTransition(id int64, mutate func(*Block) (*Block, *HistoryEntry, error)) (*Block, error)
	// ExecuteTransitionTx joins a Tx a caller already began (via
	// Transactor.Begin), used when the Block mutation must commit
	// atomically with a Unit availability flip.
	ExecuteTransitionTx(tx Tx, id int64, mutate func(*Block) (*Block, *HistoryEntry, error)) (*Block, error)
}
