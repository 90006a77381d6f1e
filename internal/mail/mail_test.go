package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educbt.org/internal/config"
)

type sent struct {
	addr string
	from string
	to   []string
	msg  string
}

func captureMail(t *testing.T) *[]sent {
	t.Helper()
	orig := sendMail
	t.Cleanup(func() { sendMail = orig })
	var out []sent
	sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		out = append(out, sent{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return &out
}

func TestSendResetPassword(t *testing.T) {
	out := captureMail(t)
	cfg := config.Default().SMTP
	cfg.Host = "smtp.example.com"
	m, err := New(cfg)
	require.NoError(t, err)

	link := "https://cbt.example.com/change-password?token=abc&x=1"
	require.NoError(t, m.SendResetPassword(context.Background(), "ani@example.com", "Ani <script>", link))

	require.Len(t, *out, 1)
	got := (*out)[0]
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.Equal(t, "noreply@sidrstudio.com", got.from)
	assert.Equal(t, []string{"ani@example.com"}, got.to)
	assert.Contains(t, got.msg, "Subject: EduCBT: Reset password request")
	assert.Contains(t, got.msg, "Hi Ani &lt;script&gt;,")
	assert.Contains(t, got.msg, `href="https://cbt.example.com/change-password?token=abc&amp;x=1"`)
	assert.NotContains(t, got.msg, "[Reset Link]")
	assert.True(t, strings.Contains(got.msg, "\r\n\r\n<!doctype html>"))
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(config.Default().SMTP)
	assert.Error(t, err)
}

func TestSendRejectsBadRecipient(t *testing.T) {
	captureMail(t)
	cfg := config.Default().SMTP
	cfg.Host = "smtp.example.com"
	m, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, m.SendResetPassword(context.Background(), "not an address", "x", "y"))
}
