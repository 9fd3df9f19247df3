package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/app/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionInvalid = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session token has expired")
	ErrSessionRevoked = errors.New("session token has been revoked")
)

type Claims struct {
	ID                uint64      `json:"id"`
	Role              entity.Role `json:"role"`
	CredentialVersion uint64      `json:"cv"`
	jwt.RegisteredClaims
}

type credentialVersionSource interface {
	CredentialVersion(ctx context.Context, role entity.Role, id uint64) (uint64, error)
}

type SessionOption func(*SessionManager)

// WithSessionClock overrides time.Now for issuance and expiry checks.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

type SessionManager struct {
	secret   []byte
	ttl      time.Duration
	versions credentialVersionSource
	now      func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration, versions credentialVersionSource, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		secret:   []byte(secret),
		ttl:      ttl,
		versions: versions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func (m *SessionManager) Issue(user *entity.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		ID:                user.ID,
		Role:              user.Role,
		CredentialVersion: user.CredentialVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry only.
func (m *SessionManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrSessionInvalid
	}
	if claims.ID == 0 || !claims.Role.Valid() {
		return nil, ErrSessionInvalid
	}

	return claims, nil
}

// Authenticate verifies the token and rejects it once the principal's
// credential version has moved past the one it was issued with.
func (m *SessionManager) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	current, err := m.versions.CredentialVersion(ctx, claims.Role, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if current != claims.CredentialVersion {
		logrus.WithFields(logrus.Fields{
			"user_id":    claims.ID,
			"role":       claims.Role,
			"token_cv":   claims.CredentialVersion,
			"current_cv": current,
		}).Debug("session credential version is stale")
		return nil, ErrSessionRevoked
	}

	return claims, nil
}
