package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
)

const serviceKeyPrefix = "jbsk_"

var (
	ErrInvalidServiceKey     = errors.New("invalid or expired service key")
	ErrServiceHasActiveKey   = errors.New("service already has an active key")
	ErrServiceHasNoActiveKey = errors.New("service has no active key")
	ErrServiceNameRequired   = errors.New("service name is required")
)

type ServiceKeyRepository interface {
	Create(ctx context.Context, key *entity.ServiceKey) error
	FindActiveByHash(ctx context.Context, keyHash string) (*entity.ServiceKey, error)
	FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.ServiceKey, error)
	Deactivate(ctx context.Context, serviceName string, now time.Time) (int64, error)
}

// ServiceKeyService manages the keys job-board services present when they
// ask this service to authenticate a session token on their behalf.
type ServiceKeyService interface {
	Issue(ctx context.Context, serviceName string) (string, error)
	Validate(ctx context.Context, rawKey string) (*entity.ServiceKey, error)
	Revoke(ctx context.Context, serviceName string) (int64, error)
}

type serviceKeyService struct {
	repo ServiceKeyRepository
}

func NewServiceKeyService(repo ServiceKeyRepository) ServiceKeyService {
	return &serviceKeyService{repo: repo}
}

func (s *serviceKeyService) Issue(ctx context.Context, serviceName string) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return "", ErrServiceNameRequired
	}

	activeKeys, err := s.repo.FindActiveByServiceName(ctx, serviceName, time.Now())
	if err != nil {
		return "", err
	}
	if len(activeKeys) > 0 {
		return "", ErrServiceHasActiveKey
	}

	rawKey, keyHash, err := generateServiceKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	key := &entity.ServiceKey{
		ServiceName: serviceName,
		KeyHash:     keyHash,
		IsActive:    true,
		ExpiresAt:   now.AddDate(100, 0, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.repo.Create(ctx, key); err != nil {
		return "", err
	}

	return rawKey, nil
}

func (s *serviceKeyService) Validate(ctx context.Context, rawKey string) (*entity.ServiceKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" || !strings.HasPrefix(rawKey, serviceKeyPrefix) {
		return nil, ErrInvalidServiceKey
	}

	key, err := s.repo.FindActiveByHash(ctx, hashServiceKey(rawKey))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidServiceKey
	}

	return key, nil
}

func (s *serviceKeyService) Revoke(ctx context.Context, serviceName string) (int64, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return 0, ErrServiceNameRequired
	}

	revoked, err := s.repo.Deactivate(ctx, serviceName, time.Now())
	if err != nil {
		return 0, err
	}
	if revoked == 0 {
		return 0, ErrServiceHasNoActiveKey
	}

	return revoked, nil
}

func generateServiceKey() (string, string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	rawKey := serviceKeyPrefix + hex.EncodeToString(secret)
	return rawKey, hashServiceKey(rawKey), nil
}

func hashServiceKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
