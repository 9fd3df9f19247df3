package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const ContextKeyCallerService = "caller_service"

type ServiceKeyMiddleware struct {
	keys service.ServiceKeyService
}

func NewServiceKeyMiddleware(keys service.ServiceKeyService) *ServiceKeyMiddleware {
	return &ServiceKeyMiddleware{keys: keys}
}

func (m *ServiceKeyMiddleware) RequireServiceKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Let CORS preflight pass.
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		rawKey := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
		if rawKey == "" {
			logrus.Debug("Missing x-api-key header")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
		}

		key, err := m.keys.Validate(c.Request().Context(), rawKey)
		if err != nil {
			if errors.Is(err, service.ErrInvalidServiceKey) {
				logrus.Debug("Invalid x-api-key header")
				return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
			}
			logrus.WithError(err).Error("Service key validation failed")
			return c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
		}

		c.Set(ContextKeyCallerService, key.ServiceName)
		return next(c)
	}
}
