package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"required,max=32"`
}

func NewSignupRequestFromContext(ctx echo.Context) (*SignupRequest, error) {
	var body SignupRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.TrimSpace(body.Email)
	body.Phone = strings.TrimSpace(body.Phone)
	return &body, nil
}

func (r *SignupRequest) Validate() error {
	return validateStruct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Email = strings.TrimSpace(body.Email)
	return &body, nil
}

func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

// GoogleLoginRequest accepts the ID token under either "credential" (Google
// Identity Services) or "token". Role is optional; without it the role is
// inferred from the email address.
type GoogleLoginRequest struct {
	Credential string `json:"credential"`
	Token      string `json:"token"`
	Role       string `json:"role" validate:"omitempty,oneof=student employer"`
}

func NewGoogleLoginRequestFromContext(ctx echo.Context) (*GoogleLoginRequest, error) {
	var body GoogleLoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *GoogleLoginRequest) GetIDToken() string {
	if token := strings.TrimSpace(r.Credential); token != "" {
		return token
	}
	return strings.TrimSpace(r.Token)
}

func (r *GoogleLoginRequest) Validate() error {
	if r.GetIDToken() == "" {
		return errors.New("credential is required")
	}

	return validateStruct(r)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
	// Role is taken from the route, not the body. Empty means any namespace.
	Role string `json:"-"`
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	var body ForgotPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Email = strings.TrimSpace(body.Email)
	return &body, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	return validateStruct(r)
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Token = strings.TrimSpace(body.Token)
	return &body, nil
}

func (r *ResetPasswordRequest) GetNewPassword() string {
	if r.NewPassword != "" {
		return r.NewPassword
	}
	return r.Password
}

func (r *ResetPasswordRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if strings.TrimSpace(r.GetNewPassword()) == "" {
		return errors.New("password is required")
	}

	return nil
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	return validateStruct(r)
}

type AuthenticateRequest struct {
	Token string `json:"token" validate:"required"`
}

func NewAuthenticateRequestFromContext(ctx echo.Context) (*AuthenticateRequest, error) {
	var body AuthenticateRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Token = strings.TrimSpace(body.Token)
	return &body, nil
}

func (r *AuthenticateRequest) Validate() error {
	return validateStruct(r)
}
