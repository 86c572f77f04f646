package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/handler"
	"github.com/shinyyama/rental-backend/internal/session"
)

// TokenVerifier is the subset of *auth.Client the middleware needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth verifies the Firebase ID token and stores the caller's
// session. Websocket upgrades may pass the token as ?token= since browsers
// cannot set headers on them.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return handler.RespondError(c, session.ErrNoSession)
		}
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil || token == nil || token.UID == "" {
			return c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid_token", "invalid or expired token"))
		}
		email, _ := token.Claims["email"].(string)
		session.Set(c, session.Session{UserID: token.UID, Email: email})
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	authz := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if authz == "" && c.IsWebSocket() {
		return c.QueryParam("token")
	}
	return ""
}
