package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// OAuthSentinelPassword is stored for accounts provisioned through Google
// login. It is not a bcrypt hash, so Verify never accepts any password for it.
const OAuthSentinelPassword = "!oauth-google"

var ErrInvalidInput = errors.New("invalid input")

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is longer than 72 bytes", ErrInvalidInput)
		}
		return "", err
	}
	return string(hashed), nil
}

func (h *bcryptHasher) Verify(plain, hash string) bool {
	if hash == "" || hash == OAuthSentinelPassword {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
