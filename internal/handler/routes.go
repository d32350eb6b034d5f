package handler

import (
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/labstack/echo/v4"

	"github.com/uptownfs/dealflow/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	calculateHandler *CalculateHandler,
	dealHandler *DealHandler,
	planHandler *PaymentPlanHandler,
	blockHandler *BlockHandler,
	reservationHandler *ReservationFormHandler,
	contractHandler *ContractHandler,
	historyHandler *HistoryHandler,
	wsHandler *WebSocketHandler,
) {
	// Swagger UI (unauthenticated)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Notification stream (token carried as a query parameter)
	e.GET("/ws", wsHandler.HandleWS)

	// API version 1 (protected)
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	api.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Evaluator
	api.POST("/calculate", calculateHandler.Calculate)
	api.POST("/generate-plan", calculateHandler.GeneratePlan)

	// Deals
	deals := api.Group("/deals")
	deals.POST("", dealHandler.Create)
	deals.GET("/:id", dealHandler.Get)
	deals.PATCH("/:id/submit", dealHandler.Submit)
	deals.PATCH("/:id/approve", dealHandler.Approve)
	deals.PATCH("/:id/reject", dealHandler.Reject)
	deals.PATCH("/:id/approve-override", dealHandler.ApproveOverride)
	deals.GET("/:id/contract-document", dealHandler.ContractDocument)

	// Payment plans
	plans := api.Group("/payment-plans")
	plans.POST("", planHandler.Create)
	plans.GET("/:id", planHandler.Get)
	plans.GET("/queue/:stage", planHandler.Queue)
	plans.PATCH("/:id/approve-sm", planHandler.ApproveSM)
	plans.PATCH("/:id/approve", planHandler.Approve)
	plans.PATCH("/:id/approve-tm", planHandler.ApproveTM)
	plans.PATCH("/:id/reject-sm", planHandler.Reject)
	plans.PATCH("/:id/reject", planHandler.Reject)
	plans.PATCH("/:id/reject-tm", planHandler.Reject)
	plans.PATCH("/:id/mark-accepted", planHandler.MarkAccepted)

	// Unit blocks
	blocks := api.Group("/blocks")
	blocks.POST("/request", blockHandler.Request)
	blocks.GET("/:id", blockHandler.Get)
	blocks.PATCH("/:id/approve", blockHandler.Approve)
	blocks.PATCH("/:id/reject", blockHandler.Reject)
	blocks.PATCH("/:id/cancel", blockHandler.Cancel)
	blocks.PATCH("/:id/extend", blockHandler.Extend)
	blocks.PATCH("/:id/override-sm", blockHandler.OverrideSM)
	blocks.PATCH("/:id/override-fm", blockHandler.OverrideFM)
	blocks.PATCH("/:id/override-tm", blockHandler.OverrideTM)
	blocks.PATCH("/:id/override-reject", blockHandler.OverrideReject)

	// Reservation forms
	reservations := api.Group("/reservation-forms")
	reservations.POST("", reservationHandler.Create)
	reservations.GET("/:id", reservationHandler.Get)
	reservations.GET("/document/:planId", reservationHandler.Document)
	reservations.PATCH("/:id/approve", reservationHandler.Approve)
	reservations.PATCH("/:id/reject", reservationHandler.Reject)
	reservations.PATCH("/:id/cancel", reservationHandler.Cancel)
	reservations.PATCH("/:id/request-amendment", reservationHandler.RequestAmendment)
	reservations.PATCH("/:id/approve-amendment", reservationHandler.ApproveAmendment)
	reservations.PATCH("/:id/reject-amendment", reservationHandler.RejectAmendment)

	// Contracts
	contracts := api.Group("/contracts")
	contracts.POST("", contractHandler.Create)
	contracts.GET("/:id", contractHandler.Get)
	contracts.PATCH("/:id/settings", contractHandler.UpdateSettings)
	contracts.PATCH("/:id/lock-settings", contractHandler.LockSettings)
	contracts.PATCH("/:id/submit", contractHandler.Submit)
	contracts.PATCH("/:id/approve-cm", contractHandler.ApproveCM)
	contracts.PATCH("/:id/approve-tm", contractHandler.ApproveTM)
	contracts.PATCH("/:id/reject", contractHandler.Reject)
	contracts.PATCH("/:id/execute", contractHandler.Execute)

	// Audit trails
	deals.GET("/:id/history", historyHandler.ForKind(handlerEntityDeals))
	plans.GET("/:id/history", historyHandler.ForKind(handlerEntityPlans))
	blocks.GET("/:id/history", historyHandler.ForKind(handlerEntityBlocks))
	reservations.GET("/:id/history", historyHandler.ForKind(handlerEntityReservations))
	contracts.GET("/:id/history", historyHandler.ForKind(handlerEntityContracts))
}
