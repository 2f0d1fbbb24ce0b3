package domain

import (
	"strings"
	"time"
)

// OTPRecord is the pending verification state for one email address.
// At most one record exists per email; the code never leaves the service.
type OTPRecord struct {
	ID         string    `json:"id" dynamodbav:"id"`
	Email      string    `json:"email" dynamodbav:"email"`
	Code       string    `json:"-" dynamodbav:"code"`
	ExpiresAt  time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Attempts   int       `json:"attempts" dynamodbav:"attempts"`
	LastSentAt time.Time `json:"last_sent_at" dynamodbav:"last_sent_at"`
}

// Expired reports whether the code is no longer valid at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// CooldownRemaining returns how long a resend is still blocked, or zero.
func (r *OTPRecord) CooldownRemaining(now time.Time, cooldown time.Duration) time.Duration {
	if d := r.LastSentAt.Add(cooldown).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Stale reports whether the record neither validates a code nor blocks a resend.
func (r *OTPRecord) Stale(now time.Time, cooldown time.Duration) bool {
	return r.Expired(now) && r.CooldownRemaining(now, cooldown) == 0
}

// RetainUntil is the last instant at which the record still affects any decision.
func (r *OTPRecord) RetainUntil(cooldown time.Duration) time.Time {
	if c := r.LastSentAt.Add(cooldown); c.After(r.ExpiresAt) {
		return c
	}
	return r.ExpiresAt
}

// NormalizeEmail returns the canonical store key for an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
