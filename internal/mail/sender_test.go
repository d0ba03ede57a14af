package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/leadproton/server/pkg/logger"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSMTPSender_Send(t *testing.T) {
	d := &recordingDialer{}
	s := NewSMTPSender("smtp.example.com", 587, "u", "p", "outreach@acme.io", logger.NewNop())
	s.dialer = d

	err := s.Send(context.Background(), Message{To: "ann@acme.io", Subject: "Hello", HTML: "<p>Hi</p>"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"outreach@acme.io"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ann@acme.io"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<p>Hi</p>")
}

func TestSMTPSender_Errors(t *testing.T) {
	d := &recordingDialer{err: errors.New("connection refused")}
	s := NewSMTPSender("smtp.example.com", 587, "", "", "x@acme.io", logger.NewNop())
	s.dialer = d

	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
	assert.ErrorContains(t, s.Send(context.Background(), Message{To: "a@b.c"}), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(logger.NewNop())
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.c"}))
	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
}
