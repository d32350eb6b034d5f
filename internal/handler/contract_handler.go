package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/middleware"
)

// ContractHandler handles contract HTTP requests
type ContractHandler struct {
	contracts *engine.ContractService
}

// NewContractHandler creates a new ContractHandler
func NewContractHandler(contracts *engine.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// ContractSettingsRequest carries the editable contract settings.
type ContractSettingsRequest struct {
	ContractDate        string `json:"contractDate"`
	PowerOfAttorneyText string `json:"powerOfAttorneyText,omitempty"`
}

// CreateContractRequest is the create request body.
type CreateContractRequest struct {
	ReservationFormID int64                   `json:"reservationFormId"`
	Settings          ContractSettingsRequest `json:"settings"`
}

// ContractResponse represents a contract in API responses
type ContractResponse struct {
	ID                     int64  `json:"id"`
	ReservationFormID      int64  `json:"reservationFormId"`
	Status                 string `json:"status"`
	ContractSettingsLocked bool   `json:"contractSettingsLocked"`
	ContractDate           string `json:"contractDate,omitempty"`
	PowerOfAttorneyText    string `json:"powerOfAttorneyText,omitempty"`
}

func toContractResponse(c *domain.Contract) ContractResponse {
	resp := ContractResponse{
		ID:                     c.ID,
		ReservationFormID:      c.ReservationFormID,
		Status:                 string(c.Status),
		ContractSettingsLocked: c.ContractSettingsLocked,
	}
	if c.Details.Contract != nil {
		resp.ContractDate = c.Details.Contract.ContractDate
		resp.PowerOfAttorneyText = c.Details.Contract.PowerOfAttorneyText
	}
	return resp
}

// Create handles POST /api/v1/contracts
func (h *ContractHandler) Create(c echo.Context) error {
	principal := middleware.GetPrincipal(c)

	var req CreateContractRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	contract, err := h.contracts.Create(principal, req.ReservationFormID, domain.ContractSnapshot{
		ContractDate:        req.Settings.ContractDate,
		PowerOfAttorneyText: req.Settings.PowerOfAttorneyText,
	})
	if err != nil {
		return Fail(c, err)
	}
	return Created(c, toContractResponse(contract))
}

// Get handles GET /api/v1/contracts/:id
func (h *ContractHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	contract, err := h.contracts.Get(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toContractResponse(contract))
}

// UpdateSettings handles PATCH /api/v1/contracts/:id/settings
func (h *ContractHandler) UpdateSettings(c echo.Context) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}

	var req ContractSettingsRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	contract, err := h.contracts.UpdateSettings(principal, id, domain.ContractSnapshot{
		ContractDate:        req.ContractDate,
		PowerOfAttorneyText: req.PowerOfAttorneyText,
	})
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toContractResponse(contract))
}

// LockSettings handles PATCH /api/v1/contracts/:id/lock-settings
func (h *ContractHandler) LockSettings(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.LockSettings)
}

// Submit handles PATCH /api/v1/contracts/:id/submit
func (h *ContractHandler) Submit(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.Submit)
}

// ApproveCM handles PATCH /api/v1/contracts/:id/approve-cm
func (h *ContractHandler) ApproveCM(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.ApproveCM)
}

// ApproveTM handles PATCH /api/v1/contracts/:id/approve-tm
func (h *ContractHandler) ApproveTM(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.ApproveTM)
}

// Reject handles PATCH /api/v1/contracts/:id/reject
func (h *ContractHandler) Reject(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.Reject)
}

// Execute handles PATCH /api/v1/contracts/:id/execute
func (h *ContractHandler) Execute(c echo.Context) error {
	return h.simpleTransition(c, h.contracts.Execute)
}

func (h *ContractHandler) simpleTransition(c echo.Context, fn func(domain.Principal, int64) (*domain.Contract, error)) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	contract, err := fn(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toContractResponse(contract))
}
