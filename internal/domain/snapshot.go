package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SnapshotKind discriminates the tagged union persisted as the opaque
// `details` blob on Deal, PaymentPlan, ReservationForm and Contract. The
// source system carried this as an untyped object; here it is an explicit
// versioned variant deserialized at every read.
type SnapshotKind string

const (
	SnapshotKindCalculatorV1 SnapshotKind = "calculator_v1"
	SnapshotKindAmendmentV1  SnapshotKind = "amendment_v1"
	SnapshotKindContractV1   SnapshotKind = "contract_v1"
)

// BuyerInfo is a frozen buyer record carried inside a CalculatorSnapshot.
type BuyerInfo struct {
	Name       string `json:"name"`
	NationalID string `json:"nationalId"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// UnitInfo is a frozen unit reference carried inside a CalculatorSnapshot.
type UnitInfo struct {
	UnitID int64  `json:"unitId"`
	Code   string `json:"code"`
	Model  string `json:"model,omitempty"`
}

// CalculatorSnapshot is the frozen output of the financial plan evaluator
// at the moment a Deal or PaymentPlan was created or mutated. It is the
// concrete variant of `details` most callers deserialize into.
type CalculatorSnapshot struct {
	Kind       SnapshotKind      `json:"kind"`
	Buyers     []BuyerInfo       `json:"buyers"`
	Unit       UnitInfo          `json:"unit"`
	Schedule   []ScheduleEntry   `json:"schedule"`
	Totals     ScheduleTotals    `json:"totals"`
	Evaluation EvaluationVerdict `json:"evaluation"`
}

// ScheduleEntry mirrors evaluator.ScheduleEntry so domain does not import
// the evaluator package (keeps the dependency direction evaluator ->
// domain, not the reverse).
type ScheduleEntry struct {
	Label       string          `json:"label"`
	MonthOffset int             `json:"monthOffset"`
	Amount      decimal.Decimal `json:"amount"`
}

type ScheduleTotals struct {
	NominalTotal     decimal.Decimal `json:"nominalTotal"`
	MaintenanceTotal decimal.Decimal `json:"maintenanceTotal"`
	ProposedPV       decimal.Decimal `json:"proposedPV"`
}

type EvaluationVerdict struct {
	Decision        string          `json:"decision"` // ACCEPT | REJECT
	StandardPV      decimal.Decimal `json:"standardPV"`
	ProposedPV      decimal.Decimal `json:"proposedPV"`
	UsedStoredFMPV  bool            `json:"usedStoredFMPV"`
	FailedCondition string          `json:"failedCondition,omitempty"`
	// Reasons carries the evaluator's Explain lines for a REJECT verdict,
	// frozen at evaluation time so rejection notifications can phrase the
	// failing conditions long after the evaluator ran.
	Reasons []string `json:"reasons,omitempty"`
}

// AmendmentSnapshot is the frozen variant carried inside a pending or
// historical ReservationForm amendment.
type AmendmentSnapshot struct {
	Kind                SnapshotKind    `json:"kind"`
	PreviousDate        string          `json:"previousDate"`
	PreviousPayment     decimal.Decimal `json:"previousPayment"`
	NewDate             string          `json:"newDate"`
	NewPayment          decimal.Decimal `json:"newPayment"`
	Reason              string          `json:"reason"`
	RequestedBy         string          `json:"requestedBy"`
}

// ContractSnapshot is the frozen variant carried inside a Contract's
// `details` column (contract settings such as power-of-attorney text).
type ContractSnapshot struct {
	Kind                   SnapshotKind `json:"kind"`
	ContractDate           string       `json:"contractDate"`
	PowerOfAttorneyText    string       `json:"powerOfAttorneyText"`
}

// Snapshot is the sum type persisted as jsonb; exactly one of the typed
// fields is populated, selected by Kind.
type Snapshot struct {
	Kind       SnapshotKind
	Calculator *CalculatorSnapshot
	Amendment  *AmendmentSnapshot
	Contract   *ContractSnapshot
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SnapshotKindCalculatorV1:
		return json.Marshal(s.Calculator)
	case SnapshotKindAmendmentV1:
		return json.Marshal(s.Amendment)
	case SnapshotKindContractV1:
		return json.Marshal(s.Contract)
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown snapshot kind %q", s.Kind)
	}
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Snapshot{}
		return nil
	}
	var probe struct {
		Kind SnapshotKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case SnapshotKindCalculatorV1:
		var c CalculatorSnapshot
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*s = Snapshot{Kind: probe.Kind, Calculator: &c}
	case SnapshotKindAmendmentV1:
		var a AmendmentSnapshot
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*s = Snapshot{Kind: probe.Kind, Amendment: &a}
	case SnapshotKindContractV1:
		var c ContractSnapshot
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*s = Snapshot{Kind: probe.Kind, Contract: &c}
	default:
		return fmt.Errorf("unknown snapshot kind %q", probe.Kind)
	}
	return nil
}
