package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/travel-otp-api/internal/application/otp"
	"github.com/travel-otp-api/internal/domain"
	"github.com/travel-otp-api/internal/pkg/validate"
	"github.com/travel-otp-api/internal/transport/http/middleware"
)

// TokenIssuer mints a verification token for an email that just passed an OTP check.
type TokenIssuer interface {
	Sign(email string) (string, time.Time, error)
}

// OTPHandler exposes the send and verify flows.
type OTPHandler struct {
	svc        otp.Service
	tokens     TokenIssuer
	mailReady  func() bool
	maxBodyLen int64
}

// NewOTPHandler builds the handler. tokens may be nil, in which case verify returns no token.
func NewOTPHandler(svc otp.Service, tokens TokenIssuer, mailReady func() bool) *OTPHandler {
	if mailReady == nil {
		mailReady = func() bool { return true }
	}
	return &OTPHandler{svc: svc, tokens: tokens, mailReady: mailReady, maxBodyLen: 4 << 10}
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	if !h.mailReady() {
		slog.Error("otp send rejected: mail transport not configured")
		writeOTPError(w, &domain.OTPError{
			Code:    domain.CodeConfiguration,
			Message: "Email verification is temporarily unavailable.",
		})
		return
	}
	var body sendOTPRequest
	if !h.decode(w, r, &body) {
		return
	}
	email := domain.NormalizeEmail(body.Email)
	if !validate.Email(email) {
		writeOTPError(w, invalidEmail())
		return
	}
	if err := h.svc.SendOTP(r.Context(), email); err != nil {
		writeOTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPEnvelope{Success: true, Message: "Verification code sent."})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPRequest
	if !h.decode(w, r, &body) {
		return
	}
	email := domain.NormalizeEmail(body.Email)
	if !validate.Email(email) {
		writeOTPError(w, invalidEmail())
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), email, body.Code); err != nil {
		writeOTPError(w, err)
		return
	}

	resp := OTPEnvelope{Success: true, Message: "Email verified."}
	if h.tokens != nil {
		tok, exp, err := h.tokens.Sign(email)
		if err != nil {
			// The code is already consumed; the caller still gets a success without a token.
			slog.Error("sign verification token", "email", email, "err", err)
		} else {
			resp.VerificationToken = tok
			resp.TokenExpiresAt = &exp
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// VerifiedEmail returns the address carried by the Bearer verification token.
func (h *OTPHandler) VerifiedEmail(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	resp := VerifiedEmailEnvelope{Email: claims.Email}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyLen)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeOTPError(w, &domain.OTPError{Code: domain.CodeInvalidRequest, Message: "Request body must be valid JSON."})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeOTPError(w, &domain.OTPError{Code: domain.CodeInvalidRequest, Message: "Missing required fields.", Err: err})
		return false
	}
	return true
}

func invalidEmail() error {
	return &domain.OTPError{Code: domain.CodeInvalidEmail, Message: "Please enter a valid email address."}
}
