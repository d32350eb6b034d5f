package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Route segments the history endpoint hangs off of.
const (
	handlerEntityDeals        = "deals"
	handlerEntityPlans        = "payment-plans"
	handlerEntityBlocks       = "blocks"
	handlerEntityReservations = "reservation-forms"
	handlerEntityContracts    = "contracts"
)

// HistoryHandler serves the append-only audit trail of any lifecycle
// entity.
type HistoryHandler struct {
	historyRepo domain.HistoryRepository
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(historyRepo domain.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{historyRepo: historyRepo}
}

// HistoryEntryResponse represents one audit record in API responses
type HistoryEntryResponse struct {
	ID         string `json:"id"`
	ChangeType string `json:"changeType"`
	ChangedBy  string `json:"changedBy"`
	At         string `json:"at"`
}

// entityKindForSegment maps a route segment onto the entity kind.
func entityKindForSegment(segment string) (domain.EntityKind, bool) {
	switch segment {
	case handlerEntityDeals:
		return domain.EntityDeal, true
	case handlerEntityPlans:
		return domain.EntityPaymentPlan, true
	case handlerEntityBlocks:
		return domain.EntityBlock, true
	case handlerEntityReservations:
		return domain.EntityReservation, true
	case handlerEntityContracts:
		return domain.EntityContract, true
	default:
		return "", false
	}
}

// ForKind returns the GET …/:id/history handler for one entity group.
func (h *HistoryHandler) ForKind(segment string) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, ok := entityKindForSegment(segment)
		if !ok {
			return FailBadRequest(c, "Unknown entity")
		}
		id, err := pathID(c)
		if err != nil {
			return FailBadRequest(c, "Invalid id")
		}

		entries, err := h.historyRepo.ListByEntity(kind, id)
		if err != nil {
			return Fail(c, err)
		}

		out := make([]HistoryEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, HistoryEntryResponse{
				ID:         e.ID,
				ChangeType: e.ChangeType,
				ChangedBy:  e.ChangedBy,
				At:         e.At.UTC().Format(time.RFC3339),
			})
		}
		return OK(c, out)
	}
}
