package handler

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/uptownfs/dealflow/internal/coordinator"
	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/engine"
	"github.com/uptownfs/dealflow/internal/middleware"
)

// reservationDateLayout is the dd/MM/YYYY wire format for reservation
// dates. Only this strict form is accepted.
const reservationDateLayout = "02/01/2006"

// ReservationFormHandler handles reservation form HTTP requests
type ReservationFormHandler struct {
	reservations *engine.ReservationService
	gates        *coordinator.Gates
}

// NewReservationFormHandler creates a new ReservationFormHandler
func NewReservationFormHandler(reservations *engine.ReservationService, gates *coordinator.Gates) *ReservationFormHandler {
	return &ReservationFormHandler{reservations: reservations, gates: gates}
}

// CreateReservationRequest is the create request body.
type CreateReservationRequest struct {
	PaymentPlanID      int64  `json:"paymentPlanId"`
	UnitID             int64  `json:"unitId"`
	ReservationDate    string `json:"reservationDate"` // dd/MM/YYYY
	PreliminaryPayment string `json:"preliminaryPayment"`
}

// AmendmentRequestBody carries a reservation amendment request.
type AmendmentRequestBody struct {
	NewReservationDate    string `json:"newReservationDate"` // dd/MM/YYYY
	NewPreliminaryPayment string `json:"newPreliminaryPayment"`
	Reason                string `json:"reason"`
}

// AmendmentResponse is one resolved or pending amendment in API
// responses.
type AmendmentResponse struct {
	PreviousDate    string `json:"previousDate,omitempty"`
	PreviousPayment string `json:"previousPayment,omitempty"`
	NewDate         string `json:"newDate"`
	NewPayment      string `json:"newPayment"`
	Reason          string `json:"reason"`
	RequestedBy     string `json:"requestedBy"`
}

// ReservationFormResponse represents a reservation form in API responses
type ReservationFormResponse struct {
	ID                 int64               `json:"id"`
	PaymentPlanID      int64               `json:"paymentPlanId"`
	UnitID             int64               `json:"unitId"`
	ReservationDate    string              `json:"reservationDate"`
	PreliminaryPayment string              `json:"preliminaryPayment"`
	Status             string              `json:"status"`
	PendingAmendment   *AmendmentResponse  `json:"pendingAmendment,omitempty"`
	AmendmentHistory   []AmendmentResponse `json:"amendmentHistory,omitempty"`
}

func toReservationResponse(rf *domain.ReservationForm) ReservationFormResponse {
	resp := ReservationFormResponse{
		ID:                 rf.ID,
		PaymentPlanID:      rf.PaymentPlanID,
		UnitID:             rf.UnitID,
		ReservationDate:    rf.ReservationDate.UTC().Format(reservationDateLayout),
		PreliminaryPayment: rf.PreliminaryPayment.StringFixed(2),
		Status:             string(rf.Status),
	}
	if req := rf.Details.AmendmentRequest; req != nil {
		resp.PendingAmendment = &AmendmentResponse{
			NewDate:     req.NewReservationDate.UTC().Format(reservationDateLayout),
			NewPayment:  req.NewPreliminaryPayment.StringFixed(2),
			Reason:      req.Reason,
			RequestedBy: req.RequestedBy,
		}
	}
	for _, a := range rf.Details.AmendmentHistory {
		resp.AmendmentHistory = append(resp.AmendmentHistory, AmendmentResponse{
			PreviousDate:    a.PreviousDate,
			PreviousPayment: a.PreviousPayment.StringFixed(2),
			NewDate:         a.NewDate,
			NewPayment:      a.NewPayment.StringFixed(2),
			Reason:          a.Reason,
			RequestedBy:     a.RequestedBy,
		})
	}
	return resp
}

// Create handles POST /api/v1/reservation-forms
func (h *ReservationFormHandler) Create(c echo.Context) error {
	principal := middleware.GetPrincipal(c)

	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	date, err := time.Parse(reservationDateLayout, req.ReservationDate)
	if err != nil {
		return FailValidation(c, "Invalid reservation date",
			domain.FieldDetail{Field: "reservationDate", Message: "Must be in dd/MM/YYYY format"})
	}
	payment, err := decimal.NewFromString(req.PreliminaryPayment)
	if err != nil {
		return FailValidation(c, "Invalid preliminary payment",
			domain.FieldDetail{Field: "preliminaryPayment", Message: "Must be a valid decimal number"})
	}

	rf, err := h.reservations.Create(principal, engine.CreateReservationInput{
		PaymentPlanID:      req.PaymentPlanID,
		UnitID:             req.UnitID,
		ReservationDate:    date,
		PreliminaryPayment: payment,
	})
	if err != nil {
		return Fail(c, err)
	}
	return Created(c, toReservationResponse(rf))
}

// Get handles GET /api/v1/reservation-forms/:id
func (h *ReservationFormHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	rf, err := h.reservations.Get(id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toReservationResponse(rf))
}

// Approve handles PATCH /api/v1/reservation-forms/:id/approve
func (h *ReservationFormHandler) Approve(c echo.Context) error {
	return h.simpleTransition(c, h.reservations.Approve)
}

// Reject handles PATCH /api/v1/reservation-forms/:id/reject
func (h *ReservationFormHandler) Reject(c echo.Context) error {
	return h.simpleTransition(c, h.reservations.Reject)
}

// Cancel handles PATCH /api/v1/reservation-forms/:id/cancel
func (h *ReservationFormHandler) Cancel(c echo.Context) error {
	return h.simpleTransition(c, h.reservations.Cancel)
}

// RequestAmendment handles PATCH /api/v1/reservation-forms/:id/request-amendment
func (h *ReservationFormHandler) RequestAmendment(c echo.Context) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}

	var req AmendmentRequestBody
	if err := c.Bind(&req); err != nil {
		return FailValidation(c, "Invalid request body")
	}

	date, err := time.Parse(reservationDateLayout, req.NewReservationDate)
	if err != nil {
		return FailValidation(c, "Invalid reservation date",
			domain.FieldDetail{Field: "newReservationDate", Message: "Must be in dd/MM/YYYY format"})
	}
	payment, err := decimal.NewFromString(req.NewPreliminaryPayment)
	if err != nil {
		return FailValidation(c, "Invalid preliminary payment",
			domain.FieldDetail{Field: "newPreliminaryPayment", Message: "Must be a valid decimal number"})
	}

	rf, err := h.reservations.RequestAmendment(principal, id, engine.AmendmentInput{
		NewReservationDate:    date,
		NewPreliminaryPayment: payment,
		Reason:                req.Reason,
	})
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toReservationResponse(rf))
}

// ApproveAmendment handles PATCH /api/v1/reservation-forms/:id/approve-amendment
func (h *ReservationFormHandler) ApproveAmendment(c echo.Context) error {
	return h.simpleTransition(c, h.reservations.ApproveAmendment)
}

// RejectAmendment handles PATCH /api/v1/reservation-forms/:id/reject-amendment
func (h *ReservationFormHandler) RejectAmendment(c echo.Context) error {
	return h.simpleTransition(c, h.reservations.RejectAmendment)
}

// Document handles GET /api/v1/reservation-forms/document/:planId: the
// gated payload an external renderer fills into the reservation
// template. The plan must carry an approved reservation form.
func (h *ReservationFormHandler) Document(c echo.Context) error {
	planID, err := strconv.ParseInt(c.Param("planId"), 10, 64)
	if err != nil {
		return FailBadRequest(c, "Invalid plan id")
	}
	rf, err := h.gates.CheckReservationDocument(planID)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toReservationResponse(rf))
}

func (h *ReservationFormHandler) simpleTransition(c echo.Context, fn func(domain.Principal, int64) (*domain.ReservationForm, error)) error {
	principal := middleware.GetPrincipal(c)
	id, err := pathID(c)
	if err != nil {
		return FailBadRequest(c, "Invalid id")
	}
	rf, err := fn(principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, toReservationResponse(rf))
}
