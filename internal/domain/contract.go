package domain

type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractPendingCM ContractStatus = "pending_cm"
	ContractPendingTM ContractStatus = "pending_tm"
	ContractApproved  ContractStatus = "approved"
	ContractRejected  ContractStatus = "rejected"
	ContractExecuted  ContractStatus = "executed"
)

// ChangeType enumerates the history change types a Contract records. The
// ordered sequence of a contract's approval entries is always a prefix of
// [create, submit, approve_cm, approve_tm, execute], possibly truncated
// by a reject.
type ChangeType string

const (
	ChangeCreate     ChangeType = "create"
	ChangeSubmit     ChangeType = "submit"
	ChangeApproveCM  ChangeType = "approve_cm"
	ChangeApproveTM  ChangeType = "approve_tm"
	ChangeExecute    ChangeType = "execute"
	ChangeReject     ChangeType = "reject"
)

// Contract is created from an approved ReservationForm. Create requires
// reservation status=approved. Contract settings may only be
// edited while ContractSettingsLocked is false; locking is one-way and
// required before submission to CM.
type Contract struct {
	ID                     int64
	ReservationFormID      int64
	Status                 ContractStatus
	ContractSettingsLocked bool
	Details                Snapshot
	CreatedBy              string
	Version                int
}

type ContractRepository interface {
	Create(c *Contract) (*Contract, error)
	GetByID(id int64) (*Contract, error)
	ExecuteTransition(id int64, mutate func(*Contract) (*Contract, *HistoryEntry, error)) (*Contract, error)
}
