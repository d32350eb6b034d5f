package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// errorBody is the failure envelope shared with the handler layer:
// { error: { message }, timestamp }.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Timestamp string `json:"timestamp"`
}

func respondError(c echo.Context, status int, message string) error {
	var body errorBody
	body.Error.Message = message
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(status, body)
}

// unauthorizedError creates an unauthorized error response
func unauthorizedError(c echo.Context, message string) error {
	return respondError(c, http.StatusUnauthorized, message)
}

// forbiddenError creates a forbidden error response
func forbiddenError(c echo.Context, message string) error {
	return respondError(c, http.StatusForbidden, message)
}

// tooManyRequestsError creates a rate-limit error response
func tooManyRequestsError(c echo.Context, message string) error {
	return respondError(c, http.StatusTooManyRequests, message)
}
