package mail

import (
	"context"
	"errors"
)

var (
	ErrDeliveryTimeout = errors.New("mail delivery timed out")
	ErrNotConfigured   = errors.New("mail transport is not configured")
)

type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a single message. Implementations must return once ctx is
// done, even if the transport is still busy.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// UnconfiguredSender fails every send. It stands in for SMTP when no host is
// configured and mocking is off.
type UnconfiguredSender struct{}

func (UnconfiguredSender) Send(context.Context, Message) error {
	return ErrNotConfigured
}
