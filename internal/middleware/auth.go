package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/uptownfs/dealflow/internal/domain"
)

// Claims is the token payload: the subject is the user id, role carries
// the actor's role. Token issuance happens outside this system; this
// middleware only verifies and extracts.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// AuthMiddleware validates HMAC-signed bearer tokens and injects the
// authenticated principal into the request context.
type AuthMiddleware struct {
	secret    []byte
	clockSkew time.Duration
}

// NewAuthMiddleware creates a new AuthMiddleware with the shared secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret:    []byte(strings.TrimSpace(secret)),
		clockSkew: time.Minute,
	}
}

// Authenticate returns an Echo middleware that validates bearer tokens
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return unauthorizedError(c, "invalid authorization header format")
			}

			principal, err := m.ValidateToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "invalid token")
			}

			ctx := context.WithValue(c.Request().Context(), PrincipalKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// ValidateToken verifies a raw token string and returns its principal.
// It is also used by the WebSocket handler, which carries the token in a
// query parameter instead of a header.
func (m *AuthMiddleware) ValidateToken(token string) (domain.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithLeeway(m.clockSkew))
	if err != nil {
		return domain.Principal{}, err
	}
	if !parsed.Valid || claims.Subject == "" || claims.Role == "" {
		return domain.Principal{}, jwt.ErrTokenInvalidClaims
	}

	return domain.Principal{
		UserID: claims.Subject,
		Role:   domain.Role(claims.Role),
	}, nil
}

// RequireRoles returns a middleware rejecting principals outside the
// given role set. It must run after Authenticate.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	allowed := domain.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c)
			if !ok {
				return unauthorizedError(c, "authentication required")
			}
			if !allowed.Has(principal.Role) {
				return forbiddenError(c, "role "+string(principal.Role)+" is not permitted")
			}
			return next(c)
		}
	}
}

// PrincipalFrom extracts the authenticated principal from the context.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	principal, ok := c.Request().Context().Value(PrincipalKey).(domain.Principal)
	return principal, ok
}

// GetPrincipal extracts the principal, returning the zero value when the
// request is unauthenticated.
func GetPrincipal(c echo.Context) domain.Principal {
	principal, _ := PrincipalFrom(c)
	return principal
}
