package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidIdentityToken = errors.New("invalid identity token")
	ErrEmailNotVerified     = errors.New("identity email is not verified")
)

type Identity struct {
	Email string
	Name  string
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

type payloadValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier checks Google ID tokens against Google's published keys
// with the configured OAuth client id as audience.
type GoogleVerifier struct {
	validator payloadValidator
	clientID  string
}

func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("google client id is required")
	}

	validator, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}

	return &GoogleVerifier{validator: validator, clientID: clientID}, nil
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidIdentityToken
	}

	payload, err := v.validator.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidIdentityToken)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); !ok || !verified {
		return nil, ErrEmailNotVerified
	}

	name, _ := payload.Claims["name"].(string)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	return &Identity{Email: email, Name: name}, nil
}
