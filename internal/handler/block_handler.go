package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/middleware"
)

// BlockHandler handles unit block HTTP requests
type BlockHandler struct {
	blocks *engine.BlockService
}

// NewBlockHandler creates a new BlockHandler
func NewBlockHandler(blocks *engine.BlockService) *BlockHandler {
	return &BlockHandler{blocks: blocks}
}

// RequestBlockRequest is the block request body.
type RequestBlockRequest struct {
	UnitID            int64  `json:"unitId"`
	DurationDays      int    `json:"durationDays"`
	Reason            string `json:"reason,omitempty"`
	FinancialDecision string `json:"financialDecision,omitempty"` // ACCEPT | REJECT
}

// ExtendBlockRequest is the extension request body.
type ExtendBlockRequest struct {
	AdditionalDays int `json:"additionalDays"`
}

// BlockResponse represents a block in API responses
type BlockResponse struct {
	ID                int64   `json:"id"`
	UnitID            int64   `json:"unitId"`
	RequestedBy       string  `json:"requestedBy"`
	DurationDays      int     `json:"durationDays"`
	Reason            string  `json:"reason,omitempty"`
	Status            string  `json:"status"`
	OverrideStatus    string  `json:"overrideStatus"`
	BlockedUntil      string  `json:"blockedUntil"`
	ExtensionCount    int     `json:"extensionCount"`
	FinancialDecision *string `json:"financialDecision,omitempty"`
}

func toBlockResponse(b *domain.Block) BlockResponse {
	resp := BlockResponse{
		ID:             b.ID,
		UnitID:         b.UnitID,
		RequestedBy:    b.RequestedBy,
		DurationDays:   b.DurationDays,
		Reason:         b.Reason,
		Status:         string(b.Status),
		OverrideStatus: string(b.OverrideStatus),
		BlockedUntil:   b.BlockedUntil.UTC().Format(time.RFC3339),
		ExtensionCount: b.ExtensionCount,
	}
	if b.FinancialDecision != nil {
		d := string(*b.FinancialDecision)
		resp.FinancialDecision = &d
	}
	return resp
}

// Request handles POST /api/v1/blocks/request
func (h *BlockHandler) Request(c echo.Context) error {
	principal := middleware.GetPrincipal(c)

	var req RequestBlockRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	input := engine.RequestBlockInput{
		UnitID:       req.UnitID,
		DurationDays: req.DurationDays,
		Reason:       req.Reason,
	}
	switch req.FinancialDecision {
	case "":
	case string(domain.FinancialDecisionAccept), string(domain.FinancialDecisionReject):
		d := domain.FinancialDecision(req.FinancialDecision)
		input.FinancialDecision = &d
	default:
		return FailValidation(c, "Invalid financial decision",
			domain.FieldDetail{Field: "financialDecision", Message: "Must be ACCEPT or REJECT"})
	}

	block, err := h.blocks.Request(principal, input)
	if err != nil {
		return Fail(c, err)
	}
	return Created(c, toBlockResponse(block))
}

// Get handles GET /api/v1/blocks/:id
func (h *BlockHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	block, err := h.blocks.Get(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toBlockResponse(block))
}

// Approve handles PATCH /api/v1/blocks/:id/approve
func (h *BlockHandler) Approve(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.Approve)
}

// Reject handles PATCH /api/v1/blocks/:id/reject
func (h *BlockHandler) Reject(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.Reject)
}

// Cancel handles PATCH /api/v1/blocks/:id/cancel
func (h *BlockHandler) Cancel(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.Cancel)
}

// Extend handles PATCH /api/v1/blocks/:id/extend
func (h *BlockHandler) Extend(c echo.Context) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}

	var req ExtendBlockRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	block, err := h.blocks.Extend(principal, id, req.AdditionalDays)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toBlockResponse(block))
}

// OverrideSM handles PATCH /api/v1/blocks/:id/override-sm
func (h *BlockHandler) OverrideSM(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.OverrideApproveSM)
}

// OverrideFM handles PATCH /api/v1/blocks/:id/override-fm
func (h *BlockHandler) OverrideFM(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.OverrideApproveFM)
}

// OverrideTM handles PATCH /api/v1/blocks/:id/override-tm
func (h *BlockHandler) OverrideTM(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.OverrideApproveTM)
}

// OverrideReject handles PATCH /api/v1/blocks/:id/override-reject
func (h *BlockHandler) OverrideReject(c echo.Context) error {
	return h.simpleTransition(c, h.blocks.OverrideReject)
}

func (h *BlockHandler) simpleTransition(c echo.Context, fn func(domain.Principal, int64) (*domain.Block, error)) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	block, err := fn(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toBlockResponse(block))
}
