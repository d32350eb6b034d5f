package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Envelope is the success wrapper: { ok: true, data, meta? }.
type Envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
	Meta interface{} `json:"meta,omitempty"`
}

// ErrorEnvelope is the failure wrapper: { error: { message, details? }, timestamp }.
type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

// ErrorBody carries the message and optional field-level detail.
type ErrorBody struct {
	Message string               `json:"message"`
	Details []domain.FieldDetail `json:"details,omitempty"`
}

// OK responds 200 with the success envelope.
func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{OK: true, Data: data})
}

// OKWithMeta responds 200 with data and meta.
func OKWithMeta(c echo.Context, data, meta interface{}) error {
	return c.JSON(http.StatusOK, Envelope{OK: true, Data: data, Meta: meta})
}

// Created responds 201 with the success envelope.
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{OK: true, Data: data})
}

// statusForKind maps engine error kinds onto HTTP statuses.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput, domain.KindConfigMissing:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateMismatch, domain.KindInvariantViolated:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Fail translates an engine error into the failure envelope.
func Fail(c echo.Context, err error) error {
	if de, ok := domain.AsDomainError(err); ok {
		return failWith(c, statusForKind(de.Kind), de.Message, de.Details)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return failWith(c, http.StatusNotFound, "resource not found", nil)
	}
	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unexpected error")
	return failWith(c, http.StatusInternalServerError, "internal error", nil)
}

// FailValidation responds 422 with field-level detail.
func FailValidation(c echo.Context, message string, details ...domain.FieldDetail) error {
	return failWith(c, http.StatusUnprocessableEntity, message, details)
}

// FailBadRequest responds 400.
func FailBadRequest(c echo.Context, message string) error {
	return failWith(c, http.StatusBadRequest, message, nil)
}

func failWith(c echo.Context, status int, message string, details []domain.FieldDetail) error {
	return c.JSON(status, ErrorEnvelope{
		Error:     ErrorBody{Message: message, Details: details},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
