package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedSend struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newCapturingMailer(cfg Config) (*Mailer, *capturedSend) {
	m := NewMailer(cfg, nil)
	cap := &capturedSend{}
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		cap.addr = addr
		cap.auth = a
		cap.from = from
		cap.to = to
		cap.msg = string(msg)
		return nil
	}
	return m, cap
}

func TestMailerSend(t *testing.T) {
	m, cap := newCapturingMailer(Config{
		Host: "smtp.example.com", Port: 587,
		Username: "bot", Password: "secret",
		From: "noreply@example.com",
	})

	err := m.Send(context.Background(), "ops@example.com", "Flow failed", "node intake failed")
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", cap.addr)
	assert.NotNil(t, cap.auth)
	assert.Equal(t, "noreply@example.com", cap.from)
	assert.Equal(t, []string{"ops@example.com"}, cap.to)
	assert.Contains(t, cap.msg, "Subject: Flow failed\r\n")
	assert.Contains(t, cap.msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, cap.msg, "\r\n\r\nnode intake failed")
}

func TestMailerAnonymousWithoutUsername(t *testing.T) {
	m, cap := newCapturingMailer(Config{Host: "localhost", Port: 25, From: "a@b"})
	require.NoError(t, m.Send(context.Background(), "x@y", "s", "b"))
	assert.Nil(t, cap.auth)
}

func TestMailerSanitizesSubjectHeader(t *testing.T) {
	m, cap := newCapturingMailer(Config{Host: "h", Port: 25, From: "a@b"})
	require.NoError(t, m.Send(context.Background(), "x@y", "evil\r\nBcc: spy@x", "body"))
	assert.Contains(t, cap.msg, "Subject: evil Bcc: spy@x\r\n")
	assert.NotContains(t, cap.msg, "\r\nBcc:")
}

func TestMailerValidation(t *testing.T) {
	m, _ := newCapturingMailer(Config{Host: "h", Port: 25, From: "a@b"})

	assert.Error(t, m.Send(context.Background(), "", "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "x@y", "s", "b"), context.Canceled)
}

func TestMailerPropagatesSendFailure(t *testing.T) {
	m := NewMailer(Config{Host: "h", Port: 25, From: "a@b"}, nil)
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return fmt.Errorf("connection refused")
	}
	err := m.Send(context.Background(), "x@y", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
