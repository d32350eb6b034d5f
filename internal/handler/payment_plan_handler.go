package handler

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/middleware"
)

// PaymentPlanHandler handles payment plan HTTP requests
type PaymentPlanHandler struct {
	plans *engine.PaymentPlanService
}

// NewPaymentPlanHandler creates a new PaymentPlanHandler
func NewPaymentPlanHandler(plans *engine.PaymentPlanService) *PaymentPlanHandler {
	return &PaymentPlanHandler{plans: plans}
}

// CreatePaymentPlanRequest is the create request body.
type CreatePaymentPlanRequest struct {
	DealID          int64           `json:"dealId"`
	DiscountPercent string          `json:"discountPercent"`
	Details         json.RawMessage `json:"details"`
}

// PaymentPlanResponse represents a payment plan in API responses
type PaymentPlanResponse struct {
	ID              int64   `json:"id"`
	DealID          int64   `json:"dealId"`
	CreatedBy       string  `json:"createdBy"`
	Status          string  `json:"status"`
	Accepted        bool    `json:"accepted"`
	Version         int     `json:"version"`
	DiscountPercent float64 `json:"discountPercent"`
}

func toPlanResponse(p *domain.PaymentPlan) PaymentPlanResponse {
	return PaymentPlanResponse{
		ID:              p.ID,
		DealID:          p.DealID,
		CreatedBy:       p.CreatedBy,
		Status:          string(p.Status),
		Accepted:        p.Accepted,
		Version:         p.Version,
		DiscountPercent: p.DiscountPercent,
	}
}

// Create handles POST /api/v1/payment-plans
func (h *PaymentPlanHandler) Create(c echo.Context) error {
	principal := middleware.GetPrincipal(c)

	var req CreatePaymentPlanRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	discount := decimal.Zero
	if req.DiscountPercent != "" {
		parsed, err := decimal.NewFromString(req.DiscountPercent)
		if err != nil {
			return FailValidation(c, "Invalid discount",
				domain.FieldDetail{Field: "discountPercent", Message: "Must be a valid decimal number"})
		}
		discount = parsed
	}

	var details domain.Snapshot
	if len(req.Details) > 0 {
		if err := json.Unmarshal(req.Details, &details); err != nil {
			return FailValidation(c, "Invalid details snapshot",
				domain.FieldDetail{Field: "details", Message: "Must be a tagged snapshot object"})
		}
	}

	plan, err := h.plans.Create(principal, engine.CreatePlanInput{
		DealID:          req.DealID,
		Details:         details,
		DiscountPercent: discount,
	})
	if err != nil {
		return Fail(c, err)
	}
	return Created(c, toPlanResponse(plan))
}

// Get handles GET /api/v1/payment-plans/:id
func (h *PaymentPlanHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	plan, err := h.plans.Get(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toPlanResponse(plan))
}

// Queue handles GET /api/v1/payment-plans/queue/:stage
func (h *PaymentPlanHandler) Queue(c echo.Context) error {
	principal := middleware.GetPrincipal(c)
	plans, err := h.plans.Queue(principal, c.Param("stage"))
	if err != nil {
		return Fail(c, err)
	}
	out := make([]PaymentPlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanResponse(p))
	}
	return OK(c, out)
}

// ApproveSM handles PATCH /api/v1/payment-plans/:id/approve-sm
func (h *PaymentPlanHandler) ApproveSM(c echo.Context) error {
	return h.simpleTransition(c, h.plans.ApproveSM)
}

// Approve handles PATCH /api/v1/payment-plans/:id/approve (FM stage).
// The response carries the escalation flag and the policy limit when the
// discount pushed the plan to top management.
func (h *PaymentPlanHandler) Approve(c echo.Context) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	result, err := h.plans.ApproveFM(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OKWithMeta(c, toPlanResponse(result.Plan), map[string]interface{}{
		"escalated":          result.Escalated,
		"policyLimitPercent": result.PolicyLimitPercent.InexactFloat64(),
	})
}

// ApproveTM handles PATCH /api/v1/payment-plans/:id/approve-tm
func (h *PaymentPlanHandler) ApproveTM(c echo.Context) error {
	return h.simpleTransition(c, h.plans.ApproveTM)
}

// Reject handles PATCH /api/v1/payment-plans/:id/reject
func (h *PaymentPlanHandler) Reject(c echo.Context) error {
	return h.simpleTransition(c, h.plans.Reject)
}

// MarkAccepted handles PATCH /api/v1/payment-plans/:id/mark-accepted
func (h *PaymentPlanHandler) MarkAccepted(c echo.Context) error {
	return h.simpleTransition(c, h.plans.MarkAccepted)
}

func (h *PaymentPlanHandler) simpleTransition(c echo.Context, fn func(domain.Principal, int64) (*domain.PaymentPlan, error)) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	plan, err := fn(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toPlanResponse(plan))
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
