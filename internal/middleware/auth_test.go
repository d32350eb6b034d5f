package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runAuthenticated(t *testing.T, authHeader string) (*httptest.ResponseRecorder, domain.Principal) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var captured domain.Principal
	m := NewAuthMiddleware(testSecret)
	handler := m.Authenticate()(func(c echo.Context) error {
		captured = GetPrincipal(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, captured
}

func TestAuthenticate_ValidToken(t *testing.T) {
	token := signToken(t, testSecret, "user-1", "financial_manager", time.Hour)
	rec, principal := runAuthenticated(t, "Bearer "+token)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", principal.UserID)
	require.Equal(t, domain.RoleFinancialManager, principal.Role)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	rec, _ := runAuthenticated(t, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	rec, _ := runAuthenticated(t, "Token abc")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", "user-1", "financial_manager", time.Hour)
	rec, _ := runAuthenticated(t, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, "user-1", "financial_manager", -2*time.Hour)
	rec, _ := runAuthenticated(t, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_MissingRoleClaim(t *testing.T) {
	token := signToken(t, testSecret, "user-1", "", time.Hour)
	rec, _ := runAuthenticated(t, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateToken_Direct(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	token := signToken(t, testSecret, "user-9", "top_management", time.Hour)

	principal, err := m.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-9", principal.UserID)
	require.Equal(t, domain.RoleTopManagement, principal.Role)
}

func TestRequireRoles(t *testing.T) {
	e := echo.New()
	token := signToken(t, testSecret, "user-1", "property_consultant", time.Hour)

	run := func(roles ...domain.Role) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		m := NewAuthMiddleware(testSecret)
		handler := m.Authenticate()(RequireRoles(roles...)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}))
		require.NoError(t, handler(c))
		return rec
	}

	require.Equal(t, http.StatusOK, run(domain.RolePropertyConsultant).Code)
	require.Equal(t, http.StatusForbidden, run(domain.RoleFinancialManager).Code)
}
