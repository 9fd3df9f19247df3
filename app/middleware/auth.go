package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserRole = "user_role"
)

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*service.Claims, error)
}

type AuthMiddleware struct {
	sessions sessionAuthenticator
}

func NewAuthMiddleware(sessions sessionAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid authorization header format"})
		}

		claims, err := m.sessions.Authenticate(c.Request().Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, service.ErrSessionExpired):
				logrus.Debug("Expired session token")
			case errors.Is(err, service.ErrSessionRevoked):
				logrus.Debug("Revoked session token")
			case errors.Is(err, service.ErrSessionInvalid):
				logrus.Debug("Invalid session token")
			default:
				logrus.WithError(err).Error("Session authentication failed")
			}
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid or expired token"})
		}

		c.Set(ContextKeyUserID, claims.ID)
		c.Set(ContextKeyUserRole, claims.Role)

		return next(c)
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, actual, ok := Principal(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
			}
			if actual != role {
				logrus.WithFields(logrus.Fields{
					"required_role": role,
					"actual_role":   actual,
				}).Debug("Role check failed")
				return c.JSON(http.StatusForbidden, types.ErrorResponse{
					Error: fmt.Sprintf("Only %ss can access this route", role),
				})
			}

			return next(c)
		}
	}
}

// Principal returns the identity RequireAuth attached to the request.
func Principal(c echo.Context) (uint64, entity.Role, bool) {
	userID, ok := c.Get(ContextKeyUserID).(uint64)
	if !ok || userID == 0 {
		return 0, "", false
	}
	role, ok := c.Get(ContextKeyUserRole).(entity.Role)
	if !ok || role == "" {
		return 0, "", false
	}
	return userID, role, true
}
