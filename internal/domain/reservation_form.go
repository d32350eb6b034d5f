package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPendingApproval ReservationStatus = "pending_approval"
	ReservationApproved        ReservationStatus = "approved"
	ReservationRejected        ReservationStatus = "rejected"
	ReservationCancelled       ReservationStatus = "cancelled"
)

// AmendmentRequest is the pending sub-protocol payload carried on an
// approved ReservationForm.
type AmendmentRequest struct {
	NewReservationDate    time.Time       `json:"newReservationDate"`
	NewPreliminaryPayment decimal.Decimal `json:"newPreliminaryPayment"`
	Reason                string          `json:"reason"`
	RequestedBy           string          `json:"requestedBy"`
	RequestedAt           time.Time       `json:"requestedAt"`
}

// ReservationDetails holds the amendment sub-protocol state: at most one
// pending request, plus an append-only archive of resolved attempts.
type ReservationDetails struct {
	AmendmentRequest *AmendmentRequest   `json:"amendmentRequest,omitempty"`
	AmendmentHistory []AmendmentSnapshot `json:"amendmentHistory,omitempty"`
}

// ReservationForm anchors a Contract. Create invariant:
// associated plan is approved AND unit is BLOCKED with an active approved
// block AND no prior pending/approved reservation exists for this plan.
type ReservationForm struct {
	ID                  int64
	PaymentPlanID       int64
	UnitID              int64
	ReservationDate     time.Time
	PreliminaryPayment  decimal.Decimal
	Status              ReservationStatus
	Details             ReservationDetails
	Version             int
}

type ReservationFormRepository interface {
	Create(r *ReservationForm) (*ReservationForm, error)
	GetByID(id int64) (*ReservationForm, error)
	// ExistingForPlan returns any reservation in pending_approval or
	// approved state for the given plan, if one exists.
	ExistingForPlan(planID int64) (*ReservationForm, error)
	ExecuteTransition(id int64, mutate func(*ReservationForm) (*ReservationForm, *HistoryEntry, error)) (*ReservationForm, error)
	// ExecuteTransitionTx joins a Tx a caller already began, used when
	// approval must commit atomically with the Unit flip to RESERVED.
	ExecuteTransitionTx(tx Tx, id int64, mutate func(*ReservationForm) (*ReservationForm, *HistoryEntry, error)) (*ReservationForm, error)
}
