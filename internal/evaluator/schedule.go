package evaluator

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// BuildSchedule constructs the cash-flow entries for a proposed plan:
// down payment (or split first-year entries), subsequent-year installment
// distribution, handover entry, maintenance deposit, and — when
// requested — the equal-installment resolver.
//
// Subsequent-year installments begin within year 1 when the first year
// is not split, and at year 2 when it is (year 1 already fully specified
// by FirstYearPayments).
func BuildSchedule(std StdPlan, in Inputs) []ScheduleEntry {
	var entries []ScheduleEntry

	if in.SplitFirstYearPayments {
		for i, p := range in.FirstYearPayments {
			label := "Down Payment"
			if p.Type == FirstYearPaymentRegular {
				label = "Year 1 Installment"
			}
			entries = append(entries, ScheduleEntry{
				Label:       labelWithIndex(label, i),
				MonthOffset: p.MonthOffset,
				Amount:      p.Amount.Round(2),
			})
		}
	} else {
		entries = append(entries, ScheduleEntry{
			Label:       "Down Payment",
			MonthOffset: 0,
			Amount:      computeDownPayment(std, in).Round(2),
		})
	}

	startYear := 1
	if in.SplitFirstYearPayments {
		startYear = 2
	}
	subsequentYears := in.SubsequentYears
	if in.Mode == ResolverEqualInstallment {
		// The resolver's level payments take the place of these entries.
		subsequentYears = nil
	}
	for idx, sy := range subsequentYears {
		k := startYear + idx
		n, ok := sy.Frequency.InstallmentsPerYear()
		if !ok || n == 0 {
			continue
		}
		step := 12 / n
		perInstallment := sy.TotalNominal.Div(decimal.NewFromInt(int64(n))).Round(2)
		month := 12*k - 12 + step
		for i := 0; i < n; i++ {
			entries = append(entries, ScheduleEntry{
				Label:       labelWithIndex("Year "+strconv.Itoa(k)+" Installment", i),
				MonthOffset: month,
				Amount:      perInstallment,
			})
			month += step
		}
	}

	if in.HandoverYear > 0 && in.AdditionalHandoverPayment.IsPositive() {
		entries = append(entries, ScheduleEntry{
			Label:       "Handover Payment",
			MonthOffset: 12 * in.HandoverYear,
			Amount:      in.AdditionalHandoverPayment.Round(2),
		})
	}

	if in.Maintenance.Amount.IsPositive() {
		month := maintenanceMonth(in)
		entries = append(entries, ScheduleEntry{
			Label:          "Maintenance Deposit",
			MonthOffset:    month,
			Amount:         in.Maintenance.Amount.Round(2),
			ExcludedFromPV: true,
		})
	}

	if in.Mode == ResolverEqualInstallment {
		entries = applyEqualInstallmentResolver(std, in, entries)
	}

	return entries
}

// maintenanceMonth resolves the maintenance deposit's month: explicit
// Month, else 12*HandoverYear, else 12.
func maintenanceMonth(in Inputs) int {
	if in.Maintenance.Month != nil {
		return *in.Maintenance.Month
	}
	if in.HandoverYear > 0 {
		return 12 * in.HandoverYear
	}
	return 12
}

// computeDownPayment applies the sales discount to the standard total
// price before resolving a percentage-type down payment; a fixed-type
// down payment is taken verbatim.
func computeDownPayment(std StdPlan, in Inputs) decimal.Decimal {
	effectivePrice := std.TotalPrice
	if in.SalesDiscountPercent.IsPositive() {
		discountFactor := decimal.NewFromInt(1).Sub(in.SalesDiscountPercent.Div(decimal.NewFromInt(100)))
		effectivePrice = std.TotalPrice.Mul(discountFactor)
	}
	if in.DPType == DPTypeFixed {
		return in.DownPaymentValue
	}
	return effectivePrice.Mul(in.DownPaymentValue).Div(decimal.NewFromInt(100))
}

func labelWithIndex(label string, i int) string {
	if i == 0 {
		return label
	}
	return label + " (" + strconv.Itoa(i+1) + ")"
}
