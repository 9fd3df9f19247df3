package mail

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/campusjobs/jobboard-auth/app/entity"
	"github.com/campusjobs/jobboard-auth/config"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	err   error
	block chan struct{}
	sent  []*gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return d.err
}

func newTestSMTPSender(d dialer) *SMTPSender {
	s := NewSMTPSender(config.MailConfig{Host: "localhost", Port: 2525, From: "no-reply@jobs.test", FromName: "Job Board"})
	s.dialer = d
	return s
}

func TestResetLink(t *testing.T) {
	link := ResetLink("https://jobs.example.com", "abc123", "alice+test@x.com", entity.RoleStudent)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", u.Path)
	assert.Equal(t, "abc123", u.Query().Get("token"))
	assert.Equal(t, "alice+test@x.com", u.Query().Get("email"))
	assert.Equal(t, "student", u.Query().Get("role"))
}

func TestResetMessage(t *testing.T) {
	msg, err := ResetMessage("alice@x.com", "https://jobs.example.com/reset-password?token=a&b=<c>", "1 hour")
	require.NoError(t, err)

	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, resetSubject, msg.Subject)
	assert.Contains(t, msg.TextBody, "token=a&b=<c>")
	assert.Contains(t, msg.TextBody, "1 hour")
	assert.NotContains(t, msg.HTMLBody, "<c>")
	assert.True(t, strings.Contains(msg.HTMLBody, "alice@x.com"))
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	sender := newTestSMTPSender(d)

	err := sender.Send(context.Background(), Message{To: "alice@x.com", Subject: "hi", TextBody: "body", HTMLBody: "<p>body</p>"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"alice@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"hi"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPSender_SendError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	sender := newTestSMTPSender(d)

	err := sender.Send(context.Background(), Message{To: "alice@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSMTPSender_Timeout(t *testing.T) {
	d := &fakeDialer{block: make(chan struct{})}
	defer close(d.block)
	sender := newTestSMTPSender(d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, Message{To: "alice@x.com"})
	assert.ErrorIs(t, err, ErrDeliveryTimeout)
}

func TestLogSender_Send(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	sender := NewLogSender(logger)

	err := sender.Send(context.Background(), Message{To: "alice@x.com", Subject: "reset", TextBody: "link"})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "alice@x.com", entry.Data["to"])
	assert.Equal(t, "link", entry.Message)
}

func TestLogSender_CancelledContext(t *testing.T) {
	sender := NewLogSender(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, sender.Send(ctx, Message{To: "alice@x.com"}))
}

func TestUnconfiguredSender_AlwaysFails(t *testing.T) {
	err := UnconfiguredSender{}.Send(context.Background(), Message{To: "alice@x.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
