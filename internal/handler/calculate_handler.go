package handler

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/evaluator"
	"github.com/uptownfs/dealflow/internal/policy"
	"github.com/uptownfs/dealflow/internal/util"
)

// CalculateHandler exposes the financial plan evaluator over HTTP.
type CalculateHandler struct {
	unitRepo domain.UnitRepository
	policy   *policy.Resolver
}

// NewCalculateHandler creates a new CalculateHandler
func NewCalculateHandler(unitRepo domain.UnitRepository, policyResolver *policy.Resolver) *CalculateHandler {
	return &CalculateHandler{unitRepo: unitRepo, policy: policyResolver}
}

// StdPlanRequest carries a caller-supplied standard plan. Its PV is a
// stored financial-manager value; the evaluator recomputes the standard
// basis and falls back to this only when the recomputation degenerates.
type StdPlanRequest struct {
	TotalPrice        string `json:"totalPrice"`
	AnnualRatePercent string `json:"annualRatePercent"`
	StandardPV        string `json:"standardPV"`
}

// FirstYearPaymentRequest is one explicit first-year entry.
type FirstYearPaymentRequest struct {
	Month  int    `json:"month"`
	Type   string `json:"type"` // dp | regular
	Amount string `json:"amount"`
}

// SubsequentYearRequest distributes one year's nominal total.
type SubsequentYearRequest struct {
	TotalNominal string `json:"totalNominal"`
	Frequency    string `json:"frequency"`
}

// InputsRequest is the proposed plan as it arrives on the wire.
type InputsRequest struct {
	SalesDiscountPercent      string                    `json:"salesDiscountPercent"`
	DPType                    string                    `json:"dpType"`
	DownPaymentValue          string                    `json:"downPaymentValue"`
	PlanDurationYears         int                       `json:"planDurationYears"`
	InstallmentFrequency      string                    `json:"installmentFrequency"`
	HandoverYear              int                       `json:"handoverYear"`
	AdditionalHandoverPayment string                    `json:"additionalHandoverPayment"`
	SplitFirstYearPayments    bool                      `json:"splitFirstYearPayments"`
	FirstYearPayments         []FirstYearPaymentRequest `json:"firstYearPayments,omitempty"`
	SubsequentYears           []SubsequentYearRequest   `json:"subsequentYears,omitempty"`
	MaintenanceAmount         string                    `json:"maintenanceAmount,omitempty"`
	MaintenanceMonth          *int                      `json:"maintenanceMonth,omitempty"`
}

// CalculateRequest is the evaluator request body.
type CalculateRequest struct {
	Mode      string          `json:"mode,omitempty"`
	StdPlan   *StdPlanRequest `json:"stdPlan,omitempty"`
	UnitID    *int64          `json:"unitId,omitempty"`
	Inputs    InputsRequest   `json:"inputs"`
	StartDate string          `json:"startDate,omitempty"` // YYYY-MM-DD, generate-plan only
}

// ScheduleEntryResponse is one schedule line in API responses.
type ScheduleEntryResponse struct {
	Label       string `json:"label"`
	MonthOffset int    `json:"monthOffset"`
	Amount      string `json:"amount"`
	DueDate     string `json:"dueDate,omitempty"`
	AmountWords string `json:"amountInWords,omitempty"`
}

// TotalsResponse aggregates the schedule in API responses.
type TotalsResponse struct {
	NominalTotal     string `json:"nominalTotal"`
	MaintenanceTotal string `json:"maintenanceTotal"`
	GrandTotal       string `json:"grandTotal"`
	ProposedPV       string `json:"proposedPV"`
	GrandTotalWords  string `json:"grandTotalInWords,omitempty"`
}

// ConditionResponse is one acceptance check's detail.
type ConditionResponse struct {
	Name   string  `json:"name"`
	Pass   bool    `json:"pass"`
	Actual Percent `json:"actual"`
	Min    *string `json:"min,omitempty"`
	Max    *string `json:"max,omitempty"`
}

// Percent renders a percentage figure as {"percent": "..."}.
type Percent struct {
	Percent string `json:"percent"`
}

// EvaluationResponse is the verdict in API responses.
type EvaluationResponse struct {
	Decision       string                       `json:"decision"`
	StandardPV     string                       `json:"standardPV"`
	ProposedPV     string                       `json:"proposedPV"`
	UsedStoredFMPV bool                         `json:"usedStoredFMpv"`
	Conditions     map[string]ConditionResponse `json:"conditions"`
	Reasons        []string                     `json:"reasons,omitempty"`
}

// CalculateResponse is the full evaluator output.
type CalculateResponse struct {
	Schedule   []ScheduleEntryResponse `json:"schedule"`
	Totals     TotalsResponse          `json:"totals"`
	Evaluation EvaluationResponse      `json:"evaluation"`
}

// Calculate handles POST /api/v1/calculate
func (h *CalculateHandler) Calculate(c echo.Context) error {
	return h.evaluate(c, false)
}

// GeneratePlan handles POST /api/v1/generate-plan: the same evaluation
// with concrete due dates and written amounts on every entry.
func (h *CalculateHandler) GeneratePlan(c echo.Context) error {
	return h.evaluate(c, true)
}

func (h *CalculateHandler) evaluate(c echo.Context, withDates bool) error {
	var req CalculateRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	std, err := h.resolveStdPlan(req)
	if err != nil {
		return Fail(c, err)
	}

	inputs, details := parseInputs(req.Inputs, req.Mode)
	if len(details) > 0 {
		return FailValidation(c, "invalid payment plan inputs", details...)
	}

	policyCfg, err := h.policy.Active()
	if err != nil {
		return Fail(c, err)
	}

	result, err := evaluator.Evaluate(std, inputs, policyCfg)
	if err != nil {
		return Fail(c, err)
	}

	start := time.Now().UTC()
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return FailValidation(c, "Invalid start date",
				domain.FieldDetail{Field: "startDate", Message: "Must be in YYYY-MM-DD format"})
		}
		start = parsed
	}

	return OKWithMeta(c, toCalculateResponse(result, withDates, start), map[string]interface{}{
		"policyLimitPercent": policyCfg.PolicyLimitPercent.String(),
	})
}

// resolveStdPlan picks the pricing basis: an explicit stdPlan (stored FM
// PV, flagged) or the referenced unit's pricing breakdown.
func (h *CalculateHandler) resolveStdPlan(req CalculateRequest) (evaluator.StdPlan, error) {
	if req.StdPlan != nil {
		totalPrice, err1 := decimal.NewFromString(req.StdPlan.TotalPrice)
		annualRate, err2 := decimal.NewFromString(req.StdPlan.AnnualRatePercent)
		standardPV, err3 := decimal.NewFromString(req.StdPlan.StandardPV)
		if err1 != nil || err2 != nil || err3 != nil {
			return evaluator.StdPlan{}, domain.NewInvalidInput("invalid standard plan",
				domain.FieldDetail{Field: "stdPlan", Message: "amounts must be valid decimal numbers"})
		}
		return evaluator.StdPlan{
			TotalPrice:        totalPrice,
			AnnualRatePercent: annualRate,
			StandardPV:        standardPV,
		}, nil
	}

	if req.UnitID == nil {
		return evaluator.StdPlan{}, domain.NewInvalidInput("missing pricing basis",
			domain.FieldDetail{Field: "stdPlan", Message: "either stdPlan or unitId is required"})
	}

	unit, err := h.unitRepo.GetByID(*req.UnitID)
	if err != nil {
		return evaluator.StdPlan{}, domain.NewNotFound("unit not found")
	}
	if unit.Pricing == nil {
		return evaluator.StdPlan{}, domain.NewConfigMissing("Unit has no standard plan configured")
	}
	return evaluator.StdPlan{
		TotalPrice:        unit.Pricing.TotalPrice,
		AnnualRatePercent: unit.Pricing.AnnualRatePercent,
		StandardPV:        unit.Pricing.StandardPV,
	}, nil
}

// parseInputs converts the wire DTO into evaluator inputs, collecting
// per-field complaints instead of failing on the first.
func parseInputs(req InputsRequest, mode string) (evaluator.Inputs, []domain.FieldDetail) {
	var details []domain.FieldDetail

	parseAmount := func(raw, field string) decimal.Decimal {
		if raw == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			details = append(details, domain.FieldDetail{Field: field, Message: "Must be a valid decimal number"})
			return decimal.Zero
		}
		return d
	}

	in := evaluator.Inputs{
		SalesDiscountPercent:      parseAmount(req.SalesDiscountPercent, "inputs.salesDiscountPercent"),
		DPType:                    evaluator.DPType(req.DPType),
		DownPaymentValue:          parseAmount(req.DownPaymentValue, "inputs.downPaymentValue"),
		PlanDurationYears:         req.PlanDurationYears,
		HandoverYear:              req.HandoverYear,
		AdditionalHandoverPayment: parseAmount(req.AdditionalHandoverPayment, "inputs.additionalHandoverPayment"),
		SplitFirstYearPayments:    req.SplitFirstYearPayments,
		Maintenance: evaluator.MaintenanceDeposit{
			Amount: parseAmount(req.MaintenanceAmount, "inputs.maintenanceAmount"),
			Month:  req.MaintenanceMonth,
		},
		Mode: evaluator.ResolverExplicit,
	}
	if mode == "equal_installment" {
		in.Mode = evaluator.ResolverEqualInstallment
	}

	if freq, ok := evaluator.NormalizeFrequency(req.InstallmentFrequency); ok {
		in.InstallmentFrequency = freq
	} else {
		details = append(details, domain.FieldDetail{Field: "inputs.installmentFrequency", Message: "invalid frequency"})
	}

	for _, p := range req.FirstYearPayments {
		in.FirstYearPayments = append(in.FirstYearPayments, evaluator.FirstYearPayment{
			MonthOffset: p.Month,
			Type:        evaluator.FirstYearPaymentType(p.Type),
			Amount:      parseAmount(p.Amount, "inputs.firstYearPayments.amount"),
		})
	}
	for _, sy := range req.SubsequentYears {
		year := evaluator.SubsequentYear{
			TotalNominal: parseAmount(sy.TotalNominal, "inputs.subsequentYears.totalNominal"),
		}
		if freq, ok := evaluator.NormalizeFrequency(sy.Frequency); ok {
			year.Frequency = freq
		} else {
			details = append(details, domain.FieldDetail{Field: "inputs.subsequentYears.frequency", Message: "invalid frequency"})
		}
		in.SubsequentYears = append(in.SubsequentYears, year)
	}

	return in, details
}

func toCalculateResponse(result evaluator.Result, withDates bool, start time.Time) CalculateResponse {
	resp := CalculateResponse{
		Schedule: make([]ScheduleEntryResponse, 0, len(result.Schedule)),
		Totals: TotalsResponse{
			NominalTotal:     result.Totals.NominalTotal.StringFixed(2),
			MaintenanceTotal: result.Totals.MaintenanceTotal.StringFixed(2),
			GrandTotal:       result.Totals.GrandTotal.StringFixed(2),
			ProposedPV:       result.Totals.ProposedPV.StringFixed(2),
		},
	}

	for _, e := range result.Schedule {
		entry := ScheduleEntryResponse{
			Label:       e.Label,
			MonthOffset: e.MonthOffset,
			Amount:      e.Amount.StringFixed(2),
		}
		if withDates {
			entry.DueDate = start.AddDate(0, e.MonthOffset, 0).Format("2006-01-02")
			entry.AmountWords = util.AmountInWords(e.Amount)
		}
		resp.Schedule = append(resp.Schedule, entry)
	}
	if withDates {
		resp.Totals.GrandTotalWords = util.AmountInWords(result.Totals.GrandTotal)
	}

	conditions := make(map[string]ConditionResponse, len(result.Evaluation.Conditions))
	for _, cond := range result.Evaluation.Conditions {
		cr := ConditionResponse{
			Name:   cond.Name,
			Pass:   cond.Pass,
			Actual: Percent{Percent: cond.Actual.StringFixed(2)},
		}
		if cond.Min != nil {
			v := cond.Min.String()
			cr.Min = &v
		}
		if cond.Max != nil {
			v := cond.Max.String()
			cr.Max = &v
		}
		conditions[cond.Name] = cr
	}

	resp.Evaluation = EvaluationResponse{
		Decision:       result.Evaluation.Decision,
		StandardPV:     result.Evaluation.StandardPV.StringFixed(2),
		ProposedPV:     result.Evaluation.ProposedPV.StringFixed(2),
		UsedStoredFMPV: result.Evaluation.UsedStoredFMPV,
		Conditions:     conditions,
		Reasons:        evaluator.Explain(result),
	}
	return resp
}
