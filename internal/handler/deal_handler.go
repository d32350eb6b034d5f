package handler

import (
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/middleware"
)

// DealHandler handles deal HTTP requests, including the gated document
// payload reads.
type DealHandler struct {
	deals *engine.DealService
	gates *coordinator.Gates
}

// NewDealHandler creates a new DealHandler
func NewDealHandler(deals *engine.DealService, gates *coordinator.Gates) *DealHandler {
	return &DealHandler{deals: deals, gates: gates}
}

// CreateDealRequest is the create request body.
type CreateDealRequest struct {
	Title   string          `json:"title"`
	Amount  string          `json:"amount"`
	Details json.RawMessage `json:"details"`
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID                 int64   `json:"id"`
	Title              string  `json:"title"`
	Amount             string  `json:"amount"`
	Status             string  `json:"status"`
	NeedsOverride      bool    `json:"needsOverride"`
	OverrideApprovedAt *string `json:"overrideApprovedAt,omitempty"`
	CreatedBy          string  `json:"createdBy"`
	CreatedAt          string  `json:"createdAt"`
}

func toDealResponse(d *domain.Deal) DealResponse {
	resp := DealResponse{
		ID:            d.ID,
		Title:         d.Title,
		Amount:        d.Amount.StringFixed(2),
		Status:        string(d.Status),
		NeedsOverride: d.NeedsOverride,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.OverrideApprovedAt != nil {
		v := d.OverrideApprovedAt.UTC().Format(time.RFC3339)
		resp.OverrideApprovedAt = &v
	}
	return resp
}

// Create handles POST /api/v1/deals
func (h *DealHandler) Create(c echo.Context) error {
	principal := middleware.GetPrincipal(c)

	var req CreateDealRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return FailValidation(c, "Invalid amount",
			domain.FieldDetail{Field: "amount", Message: "Must be a valid decimal number"})
	}

	var details domain.Snapshot
	if len(req.Details) > 0 {
		if err := json.Unmarshal(req.Details, &details); err != nil {
			return FailValidation(c, "Invalid details snapshot",
				domain.FieldDetail{Field: "details", Message: "Must be a tagged snapshot object"})
		}
	}

	deal, err := h.deals.Create(principal, engine.CreateDealInput{
		Title:   req.Title,
		Amount:  amount,
		Details: details,
	})
	if err != nil {
		return Fail(c, err)
	}
	return Created(c, toDealResponse(deal))
}

// Get handles GET /api/v1/deals/:id
func (h *DealHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	deal, err := h.deals.Get(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toDealResponse(deal))
}

// Submit handles PATCH /api/v1/deals/:id/submit
func (h *DealHandler) Submit(c echo.Context) error {
	return h.simpleTransition(c, h.deals.Submit)
}

// Approve handles PATCH /api/v1/deals/:id/approve
func (h *DealHandler) Approve(c echo.Context) error {
	return h.simpleTransition(c, h.deals.Approve)
}

// Reject handles PATCH /api/v1/deals/:id/reject
func (h *DealHandler) Reject(c echo.Context) error {
	return h.simpleTransition(c, h.deals.Reject)
}

// ApproveOverride handles PATCH /api/v1/deals/:id/approve-override
func (h *DealHandler) ApproveOverride(c echo.Context) error {
	return h.simpleTransition(c, h.deals.ApproveOverride)
}

// ContractDocument handles GET /api/v1/deals/:id/contract-document. The
// rendering itself happens in an external worker; this endpoint gates
// the read and hands back the frozen snapshot the renderer fills into
// the template.
func (h *DealHandler) ContractDocument(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	deal, err := h.gates.CheckContractDocument(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, map[string]interface{}{
		"deal":    toDealResponse(deal),
		"details": deal.Details,
	})
}

func (h *DealHandler) simpleTransition(c echo.Context, fn func(domain.Principal, int64) (*domain.Deal, error)) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	deal, err := fn(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toDealResponse(deal))
}
