package evaluator

import "github.com/shopspring/decimal"

// applyEqualInstallmentResolver drops the installment entries SubsequentYears would have
// produced (the discrete DP/split-first-year, handover and maintenance
// entries stand) and replaces them with a single level-payment series that
// closes the gap between the effective sale price and what the discrete
// entries already cover, spread at InstallmentFrequency's cadence across
// the remainder of the plan horizon.
//
// The level payment is solved against the nominal total, not iteratively
// against a PV target.
func applyEqualInstallmentResolver(std StdPlan, in Inputs, discreteEntries []ScheduleEntry) []ScheduleEntry {
	kept := make([]ScheduleEntry, 0, len(discreteEntries))
	var coveredNominal decimal.Decimal
	lastMonth := 0
	for _, e := range discreteEntries {
		kept = append(kept, e)
		if e.ExcludedFromPV {
			continue
		}
		coveredNominal = coveredNominal.Add(e.Amount)
		if e.MonthOffset > lastMonth {
			lastMonth = e.MonthOffset
		}
	}

	effectivePrice := std.TotalPrice
	if in.SalesDiscountPercent.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(in.SalesDiscountPercent.Div(decimal.NewFromInt(100)))
		effectivePrice = std.TotalPrice.Mul(factor)
	}

	gap := effectivePrice.Sub(coveredNominal)
	if !gap.IsPositive() {
		return kept
	}

	n, ok := in.InstallmentFrequency.InstallmentsPerYear()
	if !ok || n == 0 {
		return kept
	}
	step := 12 / n
	horizonEnd := 12 * in.PlanDurationYears
	if horizonEnd <= lastMonth {
		return kept
	}

	remainingMonths := horizonEnd - lastMonth
	count := remainingMonths / step
	if count == 0 {
		count = 1
	}
	perInstallment := gap.Div(decimal.NewFromInt(int64(count))).Round(2)

	month := lastMonth + step
	for i := 0; i < count; i++ {
		kept = append(kept, ScheduleEntry{
			Label:       labelWithIndex("Level Installment", i),
			MonthOffset: month,
			Amount:      perInstallment,
		})
		month += step
	}
	return kept
}
