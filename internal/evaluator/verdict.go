package evaluator

import (
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
)

const tolerance = 0.01

// Verdict runs the five acceptance conditions against the emitted
// schedule and the resolved policy thresholds. All five must pass for
// decision=ACCEPT.
func Verdict(entries []ScheduleEntry, totals Totals, standardPV float64, usedStoredFMPV bool, proposedPV float64, in Inputs, policy domain.PolicyConfig) Evaluation {
	conditions := make([]ConditionResult, 0, 5)

	pvTolerance, _ := policy.PVTolerancePercent.Float64()
	pvTarget := standardPV * pvTolerance / 100
	pvPass := proposedPV+tolerance >= pvTarget
	conditions = append(conditions, ConditionResult{
		Name:   "present_value",
		Pass:   pvPass,
		Actual: decimal.NewFromFloat(proposedPV).Round(2),
	})

	nominalBase := totals.NominalTotal
	conditions = append(conditions, cumulativeCondition("cumulative_y1", entries, nominalBase, 12, policy.Year1PercentMin, policy.Year1PercentMax))
	conditions = append(conditions, cumulativeCondition("cumulative_y2", entries, nominalBase, 24, policy.Year2PercentMin, policy.Year2PercentMax))
	conditions = append(conditions, cumulativeCondition("cumulative_y3", entries, nominalBase, 36, policy.Year3PercentMin, policy.Year3PercentMax))

	// The handover condition is skipped entirely when no handover year is
	// set. When the handover month coincides with one of the fixed year
	// checkpoints, that checkpoint's window is the binding one; the
	// dedicated handover floor applies to handovers beyond year three.
	if in.HandoverYear > 0 {
		handoverMonth := 12 * in.HandoverYear
		hMin, hMax := policy.HandoverPercentMin, policy.HandoverPercentMax
		switch handoverMonth {
		case 12:
			hMin, hMax = policy.Year1PercentMin, policy.Year1PercentMax
		case 24:
			hMin, hMax = policy.Year2PercentMin, policy.Year2PercentMax
		case 36:
			hMin, hMax = policy.Year3PercentMin, policy.Year3PercentMax
		}
		conditions = append(conditions, cumulativeCondition("cumulative_handover", entries, nominalBase, handoverMonth, hMin, hMax))
	}

	decision := "ACCEPT"
	for _, c := range conditions {
		if !c.Pass {
			decision = "REJECT"
			break
		}
	}

	return Evaluation{
		Decision:       decision,
		StandardPV:     decimal.NewFromFloat(standardPV).Round(2),
		ProposedPV:     decimal.NewFromFloat(proposedPV).Round(2),
		UsedStoredFMPV: usedStoredFMPV,
		Conditions:     conditions,
	}
}

// cumulativeCondition expresses one cumulative-by-month check as a percentage of nominalBase within [min,max].
func cumulativeCondition(name string, entries []ScheduleEntry, nominalBase decimal.Decimal, upTo int, min decimal.Decimal, max *decimal.Decimal) ConditionResult {
	cumulative := cumulativeByMonth(entries, upTo)
	var actualPercent decimal.Decimal
	if nominalBase.IsPositive() {
		actualPercent = cumulative.Div(nominalBase).Mul(decimal.NewFromInt(100))
	}

	pass := actualPercent.GreaterThanOrEqual(min) || nearlyGTE(actualPercent, min)
	if max != nil {
		pass = pass && (actualPercent.LessThanOrEqual(*max) || nearlyLTE(actualPercent, *max))
	}

	return ConditionResult{
		Name:   name,
		Pass:   pass,
		Actual: actualPercent.Round(2),
		Min:    &min,
		Max:    max,
	}
}

func nearlyGTE(a, b decimal.Decimal) bool {
	diff, _ := a.Sub(b).Float64()
	return diff >= -tolerance
}

func nearlyLTE(a, b decimal.Decimal) bool {
	diff, _ := a.Sub(b).Float64()
	return diff <= tolerance
}
