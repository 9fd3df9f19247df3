package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/mail"
	"github.com/campusjobs/jobboard-auth/app/oauth"
	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/types"
	"github.com/campusjobs/jobboard-auth/config"

	"github.com/sirupsen/logrus"
)

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrPasswordMismatch     = errors.New("old password is incorrect")
	ErrPasswordConfirmation = errors.New("new password and confirmation do not match")
	ErrWeakPassword         = errors.New("password does not meet policy requirements")
	ErrDeliveryFailed       = errors.New("failed to deliver password reset email")
	ErrOAuthUnavailable     = errors.New("google login is not configured")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, role entity.Role, email string) (*entity.User, error)
	FindByID(ctx context.Context, role entity.Role, id uint64) (*entity.User, error)
}

type resetPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionIssuer interface {
	Issue(user *entity.User) (string, time.Time, error)
}

type UserAuthService interface {
	Signup(ctx context.Context, role entity.Role, req *types.SignupRequest) (*types.SignupResponse, error)
	Login(ctx context.Context, role entity.Role, req *types.LoginRequest) (*types.LoginResponse, error)
	GoogleLogin(ctx context.Context, req *types.GoogleLoginRequest) (*types.GoogleLoginResponse, error)
	ChangePassword(ctx context.Context, role entity.Role, userID uint64, req *types.ChangePasswordRequest) (*types.ChangePasswordResponse, error)
	DeleteAccount(ctx context.Context, role entity.Role, userID uint64) error
	RequestPasswordReset(ctx context.Context, req *types.ForgotPasswordRequest) (*types.MessageResponse, error)
	ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error
	SeedAdmin(ctx context.Context, username, email, password string) (*entity.User, error)
}

type UserAuthServiceOption func(*userAuthService)

type userAuthService struct {
	db        *sql.DB
	userRepo  userRepository
	resetRepo resetPurger
	hasher    PasswordHasher
	sessions  sessionIssuer
	mailer    mail.Sender
	verifier  oauth.Verifier
	cfg       *config.Config
	now       func() time.Time
	newToken  func() (string, error)
}

func NewUserAuthService(
	db *sql.DB,
	userRepo userRepository,
	resetRepo resetPurger,
	hasher PasswordHasher,
	sessions sessionIssuer,
	cfg *config.Config,
	opts ...UserAuthServiceOption,
) UserAuthService {
	svc := &userAuthService{
		db:        db,
		userRepo:  userRepo,
		resetRepo: resetRepo,
		hasher:    hasher,
		sessions:  sessions,
		mailer:    mail.UnconfiguredSender{},
		cfg:       cfg,
		now:       time.Now,
		newToken:  generateResetToken,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithMailer(sender mail.Sender) UserAuthServiceOption {
	return func(s *userAuthService) {
		if sender != nil {
			s.mailer = sender
		}
	}
}

func WithIdentityVerifier(verifier oauth.Verifier) UserAuthServiceOption {
	return func(s *userAuthService) {
		s.verifier = verifier
	}
}

func WithClock(now func() time.Time) UserAuthServiceOption {
	return func(s *userAuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithResetTokenGenerator replaces the random reset token source.
func WithResetTokenGenerator(gen func() (string, error)) UserAuthServiceOption {
	return func(s *userAuthService) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

func (s *userAuthService) Signup(ctx context.Context, role entity.Role, req *types.SignupRequest) (*types.SignupResponse, error) {
	if !role.SelfService() {
		return nil, ErrInvalidRole
	}

	if err := s.cfg.Password.Policy.Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Role:         role,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Phone:        sql.NullString{String: req.Phone, Valid: req.Phone != ""},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return &types.SignupResponse{
		Message: fmt.Sprintf("%s registered successfully", role),
		ID:      user.ID,
	}, nil
}

func (s *userAuthService) Login(ctx context.Context, role entity.Role, req *types.LoginRequest) (*types.LoginResponse, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := s.userRepo.FindByEmail(ctx, role, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	return &types.LoginResponse{
		Token:     token,
		Role:      string(user.Role),
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *userAuthService) GoogleLogin(ctx context.Context, req *types.GoogleLoginRequest) (*types.GoogleLoginResponse, error) {
	if s.verifier == nil {
		return nil, ErrOAuthUnavailable
	}

	identity, err := s.verifier.Verify(ctx, req.GetIDToken())
	if err != nil {
		return nil, err
	}

	role := entity.Role(req.Role)
	if req.Role == "" {
		role = InferRoleFromEmail(identity.Email)
	}
	if !role.SelfService() {
		return nil, ErrInvalidRole
	}

	user, err := s.userRepo.FindByEmail(ctx, role, identity.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.provisionOAuthUser(ctx, role, identity)
		if err != nil {
			return nil, err
		}
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	return &types.GoogleLoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User: types.UserProfile{
			ID:       user.ID,
			Role:     string(user.Role),
			Username: user.Username,
			Email:    user.Email,
		},
	}, nil
}

func (s *userAuthService) provisionOAuthUser(ctx context.Context, role entity.Role, identity *oauth.Identity) (*entity.User, error) {
	username := identity.Name
	if username == "" {
		username = usernameFromEmail(identity.Email)
	}

	now := s.now()
	user := &entity.User{
		Role:         role,
		Username:     username,
		Email:        identity.Email,
		PasswordHash: OAuthSentinelPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.userRepo.Create(ctx, user)
	if err == nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("provisioned account from google login")
		return user, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, err
	}

	// A concurrent login created the account first.
	existing, err := s.userRepo.FindByEmail(ctx, role, identity.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}
	return existing, nil
}

func (s *userAuthService) ChangePassword(ctx context.Context, role entity.Role, userID uint64, req *types.ChangePasswordRequest) (*types.ChangePasswordResponse, error) {
	if req.NewPassword != req.ConfirmPassword {
		return nil, ErrPasswordConfirmation
	}

	user, err := s.userRepo.FindByID(ctx, role, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !s.hasher.Verify(req.OldPassword, user.PasswordHash) {
		return nil, ErrPasswordMismatch
	}

	if err = s.cfg.Password.Policy.Validate(req.NewPassword); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txUserRepo := repository.NewUserRepository(tx)
	if err = txUserRepo.UpdatePassword(ctx, role, userID, hashedPassword, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	updated, err := txUserRepo.FindByID(ctx, role, userID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.sessions.Issue(updated)
	if err != nil {
		return nil, err
	}

	return &types.ChangePasswordResponse{
		Message:   "password changed successfully",
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *userAuthService) DeleteAccount(ctx context.Context, role entity.Role, userID uint64) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txUserRepo := repository.NewUserRepository(tx)
	user, err := txUserRepo.FindByID(ctx, role, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err = txUserRepo.Delete(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return tx.Commit()
}

// SeedAdmin provisions an admin principal. Admins cannot sign up over HTTP.
func (s *userAuthService) SeedAdmin(ctx context.Context, username, email, password string) (*entity.User, error) {
	if err := s.cfg.Password.Policy.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Role:         entity.RoleAdmin,
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}
