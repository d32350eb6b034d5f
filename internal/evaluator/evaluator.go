package evaluator

import (
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Evaluate is the evaluator's single entry point: validate → build
// schedule → compute PV → score against policy thresholds. It performs
// no I/O and returns a *domain.Error of kind INVALID_INPUT on bad input;
// everything else is a successful, deterministic Result.
func Evaluate(std StdPlan, in Inputs, policy domain.PolicyConfig) (Result, error) {
	if err := Validate(std, in); err != nil {
		return Result{}, err
	}

	entries := BuildSchedule(std, in)
	rate := MonthlyRate(std.AnnualRatePercent)
	proposedPV := PresentValue(entries, rate)
	totals := Totalize(entries, proposedPV)

	// The standard basis is the same schedule priced without the sales
	// discount; its PV is authoritative over any stored FM value.
	stdInputs := in
	stdInputs.SalesDiscountPercent = decimal.Zero
	standardPV := PresentValue(BuildSchedule(std, stdInputs), rate)
	usedStoredFMPV := false
	if standardPV <= 0 && std.StandardPV.IsPositive() {
		standardPV, _ = std.StandardPV.Float64()
		usedStoredFMPV = true
	}

	evaluation := Verdict(entries, totals, standardPV, usedStoredFMPV, proposedPV, in, policy)

	return Result{
		Schedule:   entries,
		Totals:     totals,
		Evaluation: evaluation,
	}, nil
}
