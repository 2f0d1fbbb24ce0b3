package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTP_LENGTH", "")
	t.Setenv("OTP_EXPIRY_MINUTES", "")
	t.Setenv("SMTP_HOST", "")

	cfg := Load()

	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 10*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, time.Minute, cfg.OTP.ResendCooldown)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.False(t, cfg.MailConfigured())
}

func TestLoad_OTPOverrides(t *testing.T) {
	t.Setenv("OTP_LENGTH", "8")
	t.Setenv("OTP_EXPIRY_MINUTES", "3")
	t.Setenv("OTP_RESEND_COOLDOWN_MINUTES", "2")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("STORE_BACKEND", "Redis")

	cfg := Load()

	assert.Equal(t, 8, cfg.OTP.Length)
	assert.Equal(t, 3*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, 2*time.Minute, cfg.OTP.ResendCooldown)
	assert.Equal(t, 3, cfg.OTP.MaxAttempts)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("OTP_MAX_ATTEMPTS", "lots")
	t.Setenv("OTP_LENGTH", "-1")

	cfg := Load()

	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 6, cfg.OTP.Length)
}

func TestMailConfigured(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "noreply@example.com")

	assert.True(t, Load().MailConfigured())
}

func TestGetEnvList_TrimsAndDropsEmpty(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.com, https://b.com,,")
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, Load().AllowedOrigins)
}
