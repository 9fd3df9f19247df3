package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/middleware"
	"github.com/campusjobs/jobboard-auth/app/oauth"
	"github.com/campusjobs/jobboard-auth/app/service"
	"github.com/campusjobs/jobboard-auth/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type UserAuthController struct {
	userAuthService service.UserAuthService
}

func NewUserAuthController(userAuthService service.UserAuthService) *UserAuthController {
	return &UserAuthController{userAuthService: userAuthService}
}

func (c *UserAuthController) Signup(ctx echo.Context) error {
	role := entity.Role(ctx.Param("role"))
	if !role.SelfService() {
		return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown role"})
	}

	req, err := types.NewSignupRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind signup request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Signup validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithFields(logrus.Fields{"email": req.Email, "role": role}).Info("Signup request received")
	result, err := c.userAuthService.Signup(ctx.Request().Context(), role, req)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Signup failed: email already registered")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "email already registered"})
		}
		if errors.Is(err, service.ErrWeakPassword) || errors.Is(err, service.ErrInvalidInput) {
			logrus.WithField("email", req.Email).Warn("Signup failed: weak password")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Signup failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": result.ID, "role": role}).Info("User registered")
	return ctx.JSON(http.StatusOK, result)
}

func (c *UserAuthController) Login(ctx echo.Context) error {
	role := entity.Role(ctx.Param("role"))
	if !role.Valid() {
		return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown role"})
	}

	req, err := types.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	logrus.WithFields(logrus.Fields{"email": req.Email, "role": role}).Info("Login request received")
	result, err := c.userAuthService.Login(ctx.Request().Context(), role, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid email or password"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": result.ID, "role": role}).Info("Login successful")
	return ctx.JSON(http.StatusOK, result)
}

func (c *UserAuthController) GoogleLogin(ctx echo.Context) error {
	req, err := types.NewGoogleLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind google login request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	result, err := c.userAuthService.GoogleLogin(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidIdentityToken) || errors.Is(err, oauth.ErrEmailNotVerified) {
			logrus.WithError(err).Warn("Google login failed: identity rejected")
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid google token"})
		}
		if errors.Is(err, service.ErrOAuthUnavailable) {
			logrus.Warn("Google login attempted without GOOGLE_CLIENT_ID")
			return ctx.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "google login is not available"})
		}
		logrus.WithError(err).Error("Google login failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": result.User.ID, "role": result.User.Role}).Info("Google login successful")
	return ctx.JSON(http.StatusOK, result)
}

// ForgotPassword serves /forgot and /forgot/:role. Unknown addresses get the
// same response as known ones.
func (c *UserAuthController) ForgotPassword(ctx echo.Context) error {
	roleParam := ctx.Param("role")
	if roleParam != "" && !entity.Role(roleParam).SelfService() {
		return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown role"})
	}

	req, err := types.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}
	req.Role = roleParam

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	result, err := c.userAuthService.RequestPasswordReset(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrDeliveryFailed) {
			return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "failed to send password reset email, please try again"})
		}
		logrus.WithError(err).Error("Password reset request failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *UserAuthController) ResetPassword(ctx echo.Context) error {
	req, err := types.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	if err = c.userAuthService.ResetPassword(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			logrus.Info("Password reset failed: token expired")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid or expired token"})
		case errors.Is(err, service.ErrInvalidToken):
			logrus.Info("Password reset failed: token invalid or used")
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid or expired token"})
		case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrInvalidInput):
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).Error("Password reset failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "password has been reset successfully"})
}

func (c *UserAuthController) ChangePassword(ctx echo.Context) error {
	userID, role, ok := middleware.Principal(ctx)
	if !ok {
		logrus.Warn("Change password failed: missing principal in context")
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	req, err := types.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
	}

	result, err := c.userAuthService.ChangePassword(ctx.Request().Context(), role, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordConfirmation):
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "new password and confirmation do not match"})
		case errors.Is(err, service.ErrPasswordMismatch):
			logrus.WithField("user_id", userID).Warn("Change password failed: wrong old password")
			return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "old password is incorrect"})
		case errors.Is(err, service.ErrWeakPassword), errors.Is(err, service.ErrInvalidInput):
			return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrUserNotFound):
			return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Change password failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("Password changed")
	return ctx.JSON(http.StatusOK, result)
}

func (c *UserAuthController) DeleteAccount(ctx echo.Context) error {
	userID, role, ok := middleware.Principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	return c.deleteUser(ctx, role, userID)
}

func (c *UserAuthController) AdminDeleteUser(ctx echo.Context) error {
	role := entity.Role(ctx.Param("role"))
	if !role.SelfService() {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "role must be student or employer"})
	}

	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		return ctx.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid user id"})
	}

	adminID, _, _ := middleware.Principal(ctx)
	logrus.WithFields(logrus.Fields{"admin_id": adminID, "user_id": userID, "role": role}).Info("Admin delete requested")
	return c.deleteUser(ctx, role, userID)
}

func (c *UserAuthController) deleteUser(ctx echo.Context, role entity.Role, userID uint64) error {
	if err := c.userAuthService.DeleteAccount(ctx.Request().Context(), role, userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, types.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Delete account failed")
		return ctx.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("Account deleted")
	return ctx.JSON(http.StatusOK, types.MessageResponse{Message: "account deleted successfully"})
}

func (c *UserAuthController) Me(ctx echo.Context) error {
	userID, role, ok := middleware.Principal(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "unauthorized"})
	}

	return ctx.JSON(http.StatusOK, types.MeResponse{ID: userID, Role: string(role)})
}
