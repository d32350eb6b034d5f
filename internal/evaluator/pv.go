package evaluator

import (
	"math"

	"github.com/shopspring/decimal"
)

// MonthlyRate converts an annual nominal rate (percent) into the
// equivalent monthly compounding rate: r = (1+annualRate/100)^(1/12) − 1.
func MonthlyRate(annualRatePercent decimal.Decimal) float64 {
	annual, _ := annualRatePercent.Float64()
	return math.Pow(1+annual/100, 1.0/12) - 1
}

// PresentValue discounts every non-maintenance entry back to month 0 at
// the given monthly rate, accumulating in double precision. Maintenance deposits are excluded from
// PV but still counted in the grand totals computed by Totalize.
func PresentValue(entries []ScheduleEntry, monthlyRate float64) float64 {
	var pv float64
	for _, e := range entries {
		if e.ExcludedFromPV {
			continue
		}
		amount, _ := e.Amount.Float64()
		pv += amount / math.Pow(1+monthlyRate, float64(e.MonthOffset))
	}
	return pv
}

// Totalize sums the emitted schedule into NominalTotal (everything but
// maintenance), MaintenanceTotal, GrandTotal and the rounded ProposedPV.
func Totalize(entries []ScheduleEntry, proposedPV float64) Totals {
	var nominal, maintenance decimal.Decimal
	for _, e := range entries {
		if e.ExcludedFromPV {
			maintenance = maintenance.Add(e.Amount)
			continue
		}
		nominal = nominal.Add(e.Amount)
	}
	return Totals{
		NominalTotal:     nominal.Round(2),
		MaintenanceTotal: maintenance.Round(2),
		GrandTotal:       nominal.Add(maintenance).Round(2),
		ProposedPV:       decimal.NewFromFloat(proposedPV).Round(2),
	}
}

// cumulativeByMonth sums every non-maintenance entry with MonthOffset <=
// upTo, used by the acceptance verdict's Y1/Y2/Y3/handover windows.
func cumulativeByMonth(entries []ScheduleEntry, upTo int) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.ExcludedFromPV {
			continue
		}
		if e.MonthOffset <= upTo {
			total = total.Add(e.Amount)
		}
	}
	return total
}
