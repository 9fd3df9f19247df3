package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/campusjobs/jobboard-auth/app/middleware"
	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*service.Claims, error)
}

// InternalAuthController lets other job-board services resolve a bearer
// token to a principal.
type InternalAuthController struct {
	sessions sessionAuthenticator
}

func NewInternalAuthController(sessions sessionAuthenticator) *InternalAuthController {
	return &InternalAuthController{sessions: sessions}
}

func (c *InternalAuthController) Authenticate(ctx echo.Context) error {
	req, err := types.NewAuthenticateRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind authenticate request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	caller, _ := ctx.Get(middleware.ContextKeyCallerService).(string)
	claims, err := c.sessions.Authenticate(ctx.Request().Context(), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrSessionInvalid) ||
			errors.Is(err, service.ErrSessionExpired) ||
			errors.Is(err, service.ErrSessionRevoked) {
			logrus.WithError(err).WithField("caller", caller).Debug("Token introspection rejected token")
			return ctx.JSON(http.StatusOK, types.AuthenticateResponse{Valid: false})
		}
		logrus.WithError(err).WithField("caller", caller).Error("Token introspection failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, types.AuthenticateResponse{
		Valid: true,
		ID:    claims.ID,
		Role:  string(claims.Role),
	})
}
