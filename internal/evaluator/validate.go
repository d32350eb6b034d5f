package evaluator

import (
	"fmt"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Validate rejects malformed inputs: invalid frequency, planDurationYears outside [1,12], negative amounts,
// missing required fields. It returns a *domain.Error of kind
// INVALID_INPUT with one FieldDetail per violation, or nil.
func Validate(std StdPlan, in Inputs) error {
	var details []domain.FieldDetail

	if std.TotalPrice.IsZero() || std.TotalPrice.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "stdPlan.totalPrice", Message: "must be positive"})
	}
	if std.AnnualRatePercent.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "stdPlan.annualRatePercent", Message: "must not be negative"})
	}
	if std.StandardPV.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "stdPlan.standardPV", Message: "must not be negative"})
	}

	if in.PlanDurationYears < 1 || in.PlanDurationYears > 12 {
		details = append(details, domain.FieldDetail{Field: "inputs.planDurationYears", Message: "must be between 1 and 12"})
	}

	if in.InstallmentFrequency == "" {
		details = append(details, domain.FieldDetail{Field: "inputs.installmentFrequency", Message: "is required"})
	} else if _, ok := in.InstallmentFrequency.InstallmentsPerYear(); !ok {
		details = append(details, domain.FieldDetail{Field: "inputs.installmentFrequency", Message: fmt.Sprintf("invalid frequency %q", in.InstallmentFrequency)})
	}

	if in.SalesDiscountPercent.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "inputs.salesDiscountPercent", Message: "must not be negative"})
	}
	if in.DownPaymentValue.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "inputs.downPaymentValue", Message: "must not be negative"})
	}
	if in.AdditionalHandoverPayment.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "inputs.additionalHandoverPayment", Message: "must not be negative"})
	}
	if in.HandoverYear < 0 {
		details = append(details, domain.FieldDetail{Field: "inputs.handoverYear", Message: "must not be negative"})
	}

	if in.SplitFirstYearPayments {
		if len(in.FirstYearPayments) == 0 {
			details = append(details, domain.FieldDetail{Field: "inputs.firstYearPayments", Message: "required when splitFirstYearPayments is true"})
		}
		for i, p := range in.FirstYearPayments {
			if p.MonthOffset < 1 || p.MonthOffset > 12 {
				details = append(details, domain.FieldDetail{Field: fmt.Sprintf("inputs.firstYearPayments[%d].monthOffset", i), Message: "must be between 1 and 12"})
			}
			if p.Amount.IsNegative() {
				details = append(details, domain.FieldDetail{Field: fmt.Sprintf("inputs.firstYearPayments[%d].amount", i), Message: "must not be negative"})
			}
		}
	} else {
		if in.DPType != DPTypePercentage && in.DPType != DPTypeFixed {
			details = append(details, domain.FieldDetail{Field: "inputs.dpType", Message: "must be \"percentage\" or \"fixed\""})
		}
	}

	for i, sy := range in.SubsequentYears {
		if sy.TotalNominal.IsNegative() {
			details = append(details, domain.FieldDetail{Field: fmt.Sprintf("inputs.subsequentYears[%d].totalNominal", i), Message: "must not be negative"})
		}
		if _, ok := sy.Frequency.InstallmentsPerYear(); !ok {
			details = append(details, domain.FieldDetail{Field: fmt.Sprintf("inputs.subsequentYears[%d].frequency", i), Message: "invalid frequency"})
		}
	}

	if in.Maintenance.Amount.IsNegative() {
		details = append(details, domain.FieldDetail{Field: "inputs.maintenance.amount", Message: "must not be negative"})
	}

	if len(details) > 0 {
		return domain.NewInvalidInput("invalid payment plan inputs", details...)
	}
	return nil
}
