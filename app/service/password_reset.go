package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/mail"
	"github.com/campusjobs/jobboard-auth/app/repository"
	"github.com/campusjobs/jobboard-auth/app/types"

	"github.com/sirupsen/logrus"
)

const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// lookupOrder is the namespace order for /forgot requests that carry no role.
var lookupOrder = []entity.Role{entity.RoleStudent, entity.RoleEmployer}

func (s *userAuthService) RequestPasswordReset(ctx context.Context, req *types.ForgotPasswordRequest) (*types.MessageResponse, error) {
	roles := lookupOrder
	if req.Role != "" {
		role := entity.Role(req.Role)
		if !role.SelfService() {
			return nil, ErrInvalidRole
		}
		roles = []entity.Role{role}
	}

	user, err := s.findResetOwner(ctx, roles, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		logrus.WithField("roles", roles).Info("password reset requested for unknown email")
		return &types.MessageResponse{Message: ForgotPasswordMessage}, nil
	}

	rawToken, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	reset := &entity.PasswordReset{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenHash: hashResetToken(rawToken),
		ExpiresAt: now.Add(s.cfg.Tokens.ResetTTL),
		CreatedAt: now,
	}

	err = s.replaceResetToken(ctx, reset)
	if repository.IsDeadlock(err) {
		// Concurrent requests for one email can deadlock on the gap locks
		// taken by the delete. The loser retries once.
		logrus.WithField("user_id", user.ID).Warn("password reset issue deadlocked, retrying")
		err = s.replaceResetToken(ctx, reset)
	}
	if err != nil {
		return nil, err
	}

	link := mail.ResetLink(s.cfg.Frontend.BaseURL, rawToken, user.Email, user.Role)
	msg, err := mail.ResetMessage(user.Email, link, humanDuration(s.cfg.Tokens.ResetTTL))
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Mail.Timeout)
	defer cancel()

	if err = s.mailer.Send(sendCtx, msg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":  user.ID,
			"role":     user.Role,
			"reset_id": reset.ID,
		}).Error("failed to send password reset email")
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return &types.MessageResponse{Message: ForgotPasswordMessage}, nil
}

// replaceResetToken supersedes every outstanding token for the email and
// stores reset in one transaction.
func (s *userAuthService) replaceResetToken(ctx context.Context, reset *entity.PasswordReset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txResetRepo := repository.NewPasswordResetRepository(tx)
	if _, err = txResetRepo.DeleteByEmail(ctx, reset.Email); err != nil {
		return err
	}
	if err = txResetRepo.Create(ctx, reset); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *userAuthService) findResetOwner(ctx context.Context, roles []entity.Role, email string) (*entity.User, error) {
	for _, role := range roles {
		user, err := s.userRepo.FindByEmail(ctx, role, email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}

func (s *userAuthService) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error {
	now := s.now()
	if purged, err := s.resetRepo.DeleteExpired(ctx, now); err != nil {
		logrus.WithError(err).Warn("failed to purge expired password resets")
	} else if purged > 0 {
		logrus.WithField("purged", purged).Debug("purged expired password resets")
	}

	newPassword := req.GetNewPassword()
	if err := s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txResetRepo := repository.NewPasswordResetRepository(tx)
	reset, err := txResetRepo.FindByTokenHashForUpdate(ctx, hashResetToken(req.Token))
	if err != nil {
		return err
	}
	if reset == nil {
		return ErrInvalidToken
	}

	if reset.Expired(now) {
		if !reset.UsedAt.Valid {
			if _, err = txResetRepo.MarkUsed(ctx, reset.ID, now); err != nil {
				return err
			}
			if err = tx.Commit(); err != nil {
				return err
			}
		}
		return ErrTokenExpired
	}

	if reset.UsedAt.Valid {
		return ErrInvalidToken
	}

	claimed, err := txResetRepo.MarkUsed(ctx, reset.ID, now)
	if err != nil {
		return err
	}
	if claimed == 0 {
		return ErrInvalidToken
	}

	txUserRepo := repository.NewUserRepository(tx)
	if err = txUserRepo.UpdatePassword(ctx, reset.Role, reset.UserID, hashedPassword, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	return tx.Commit()
}

func generateResetToken() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return hex.EncodeToString(secret), nil
}

func hashResetToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		if hours := int(d / time.Hour); hours > 1 {
			return fmt.Sprintf("%d hours", hours)
		}
		return "1 hour"
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
