package middleware

import (
	"net/http"
	"time"

	"github.com/campusjobs/jobboard-auth/app/types"
	"github.com/campusjobs/jobboard-auth/config"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ForgotRateLimiter allows cfg.ForgotRequests requests per source IP in a
// burst, refilled evenly across cfg.ForgotWindow.
func ForgotRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	requests := cfg.ForgotRequests
	if requests <= 0 {
		requests = 5
	}
	window := cfg.ForgotWindow
	if window <= 0 {
		window = 15 * time.Minute
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(requests) / window.Seconds()),
		Burst:     requests,
		ExpiresIn: window,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, types.ErrorResponse{Error: "unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logrus.WithField("client_ip", identifier).Warn("forgot password rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, types.ErrorResponse{
				Error: "too many password reset requests, please try again later",
			})
		},
	})
}
