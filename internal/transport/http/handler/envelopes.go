package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/travel-otp-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OTPEnvelope is the success body of the OTP endpoints.
type OTPEnvelope struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message,omitempty"`
	VerificationToken string     `json:"verification_token,omitempty"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
}

// ErrorEnvelope is the failure body of the OTP endpoints.
type ErrorEnvelope struct {
	Success           bool             `json:"success"`
	ErrorCode         domain.ErrorCode `json:"error_code"`
	Error             string           `json:"error"`
	RetryAfter        int              `json:"retry_after,omitempty"`
	RemainingAttempts int              `json:"remaining_attempts,omitempty"`
}

// VerifiedEmailEnvelope echoes the address proven by a verification token.
type VerifiedEmailEnvelope struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeOTPError renders err with the status its code maps to. Errors that carry
// no code are reported as INTERNAL_ERROR without leaking their text.
func writeOTPError(w http.ResponseWriter, err error) {
	oe, ok := domain.AsOTPError(err)
	if !ok {
		oe = &domain.OTPError{Code: domain.CodeInternal, Message: "Something went wrong. Please try again later."}
	}
	if oe.Code == domain.CodeTooManyRequests && oe.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(oe.RetryAfter))
	}
	writeJSON(w, statusFor(oe.Code), ErrorEnvelope{
		ErrorCode:         oe.Code,
		Error:             oe.Message,
		RetryAfter:        oe.RetryAfter,
		RemainingAttempts: oe.RemainingAttempts,
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidRequest, domain.CodeInvalidEmail, domain.CodeInvalidOTP:
		return http.StatusBadRequest
	case domain.CodeOTPNotFound:
		return http.StatusNotFound
	case domain.CodeOTPAlreadySent:
		return http.StatusConflict
	case domain.CodeOTPExpired:
		return http.StatusGone
	case domain.CodeTooManyRequests, domain.CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case domain.CodeEmailSendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
