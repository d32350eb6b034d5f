// Package evaluator implements the financial plan evaluator: a pure,
// deterministic function that turns a proposed payment schedule into a
// present-value figure and an ACCEPT/REJECT verdict against policy
// thresholds. It has no suspension points and no
// dependency on the database or the approval state engine.
package evaluator

import "github.com/shopspring/decimal"

// Frequency is the normalized installment frequency. Raw input strings
// are normalized case-insensitively by NormalizeFrequency, with
// "biannually" mapping to "bi-annually".
type Frequency string

const (
	FrequencyMonthly     Frequency = "monthly"
	FrequencyQuarterly   Frequency = "quarterly"
	FrequencyBiAnnually  Frequency = "bi-annually"
	FrequencyAnnually    Frequency = "annually"
)

// InstallmentsPerYear returns the installment count a frequency
// distributes a year's nominal across (12, 4, 2, 1).
func (f Frequency) InstallmentsPerYear() (int, bool) {
	switch f {
	case FrequencyMonthly:
		return 12, true
	case FrequencyQuarterly:
		return 4, true
	case FrequencyBiAnnually:
		return 2, true
	case FrequencyAnnually:
		return 1, true
	default:
		return 0, false
	}
}

// DPType selects how DownPaymentValue is interpreted when
// SplitFirstYearPayments is false.
type DPType string

const (
	DPTypePercentage DPType = "percentage"
	DPTypeFixed      DPType = "fixed"
)

// FirstYearPaymentType tags an explicit first-year entry when
// SplitFirstYearPayments is true.
type FirstYearPaymentType string

const (
	FirstYearPaymentDP      FirstYearPaymentType = "dp"
	FirstYearPaymentRegular FirstYearPaymentType = "regular"
)

// FirstYearPayment is one verbatim entry of the split-first-year array.
type FirstYearPayment struct {
	MonthOffset int // 1..12
	Type        FirstYearPaymentType
	Amount      decimal.Decimal
}

// SubsequentYear distributes TotalNominal across n installments for one
// plan year, n derived from Frequency.
type SubsequentYear struct {
	TotalNominal decimal.Decimal
	Frequency    Frequency
}

// MaintenanceDeposit is the single maintenance entry. Month resolution
// order: explicit Month, else 12*HandoverYear, else 12.
// A nil/zero Amount means no maintenance entry is emitted.
type MaintenanceDeposit struct {
	Amount decimal.Decimal
	Month  *int
}

// ResolverMode selects between an explicit schedule (DP + subsequent
// years exactly as given) and the equal-installment resolver, which
// solves for a level payment closing the gap between the discrete
// entries' nominal and the effective sale price.
type ResolverMode string

const (
	ResolverExplicit        ResolverMode = "explicit"
	ResolverEqualInstallment ResolverMode = "equal_installment"
)

// StdPlan is the unit's standard pricing: the basis the proposed schedule
// is scored against. StandardPV is a stored financial-manager value; the
// evaluator recomputes the standard PV from the zero-discount schedule
// and treats that as authoritative, falling back to the stored value —
// flagged in the evaluation — only when recomputation degenerates.
type StdPlan struct {
	TotalPrice        decimal.Decimal
	AnnualRatePercent decimal.Decimal
	StandardPV        decimal.Decimal
}

// Inputs is the proposed plan as the consultant shaped it.
type Inputs struct {
	SalesDiscountPercent     decimal.Decimal
	DPType                   DPType
	DownPaymentValue         decimal.Decimal
	PlanDurationYears        int // 1..12
	InstallmentFrequency     Frequency
	HandoverYear             int // 0 means unset
	AdditionalHandoverPayment decimal.Decimal
	SplitFirstYearPayments   bool
	FirstYearPayments        []FirstYearPayment
	SubsequentYears          []SubsequentYear
	Maintenance              MaintenanceDeposit
	Mode                     ResolverMode
}

// ScheduleEntry is one emitted cash-flow line.
type ScheduleEntry struct {
	Label       string
	MonthOffset int
	Amount      decimal.Decimal
	ExcludedFromPV bool
}

// Totals aggregates the emitted schedule.
type Totals struct {
	NominalTotal     decimal.Decimal // all entries incl. handover, excl. maintenance
	MaintenanceTotal decimal.Decimal
	GrandTotal       decimal.Decimal // NominalTotal + MaintenanceTotal
	ProposedPV       decimal.Decimal // accumulated in double precision, rounded to 2dp for display
}

// ConditionResult is the detail behind one of the five acceptance checks.
type ConditionResult struct {
	Name    string
	Pass    bool
	Actual  decimal.Decimal // percent, where applicable
	Min     *decimal.Decimal
	Max     *decimal.Decimal
}

// Evaluation is the ACCEPT/REJECT verdict plus the per-condition detail
// needed to explain a REJECT.
type Evaluation struct {
	Decision       string // ACCEPT | REJECT
	StandardPV     decimal.Decimal
	ProposedPV     decimal.Decimal
	UsedStoredFMPV bool
	Conditions     []ConditionResult
}

// Result is the full evaluator output: schedule, totals,
// evaluation.
type Result struct {
	Schedule   []ScheduleEntry
	Totals     Totals
	Evaluation Evaluation
}
