package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/travel-otp-api/internal/domain"
	"github.com/travel-otp-api/internal/pkg/id"
)

// Store is the keyed record table the policies read and write through.
// Get must return an error wrapping domain.ErrNotFound when no record exists.
type Store interface {
	Get(ctx context.Context, email string) (*domain.OTPRecord, error)
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Delete(ctx context.Context, email string) error
}

// Mailer delivers a rendered message. A nil return means the provider accepted it.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

// Policy holds the tunable OTP rules.
type Policy struct {
	CodeLength     int
	Expiry         time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	SendTimeout    time.Duration
	ProductName    string
}

// DefaultPolicy returns the stock OTP rules.
func DefaultPolicy() Policy {
	return Policy{
		CodeLength:     6,
		Expiry:         10 * time.Minute,
		ResendCooldown: time.Minute,
		MaxAttempts:    5,
		SendTimeout:    10 * time.Second,
		ProductName:    "Travel Booking",
	}
}

type Service interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
}

// ServiceDeps groups the collaborators of the OTP service. Zero values get defaults,
// except Store and Mailer which are required.
type ServiceDeps struct {
	Store    Store
	Mailer   Mailer
	Generate CodeGenerator
	Now      func() time.Time
	Policy   Policy
	Logger   *slog.Logger
}

type service struct {
	store    Store
	mailer   Mailer
	generate CodeGenerator
	now      func() time.Time
	policy   Policy
	log      *slog.Logger
	locks    *keyLocker
}

func NewService(d ServiceDeps) Service {
	def := DefaultPolicy()
	p := d.Policy
	if p.CodeLength <= 0 {
		p.CodeLength = def.CodeLength
	}
	if p.Expiry <= 0 {
		p.Expiry = def.Expiry
	}
	if p.ResendCooldown <= 0 {
		p.ResendCooldown = def.ResendCooldown
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.SendTimeout <= 0 {
		p.SendTimeout = def.SendTimeout
	}
	if p.ProductName == "" {
		p.ProductName = def.ProductName
	}

	s := &service{
		store:    d.Store,
		mailer:   d.Mailer,
		generate: d.Generate,
		now:      d.Now,
		policy:   p,
		log:      d.Logger,
		locks:    newKeyLocker(),
	}
	if s.generate == nil {
		s.generate = NumericCode
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *service) SendOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)

	rec, err := s.reserve(ctx, email)
	if err != nil {
		return err
	}

	msg, err := renderEmail(s.policy.ProductName, rec.Code, s.policy.Expiry)
	if err != nil {
		s.rollback(ctx, rec)
		return s.internal("render otp email", err, email)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.policy.SendTimeout)
	defer cancel()
	if err := s.mailer.SendEmail(sendCtx, email, msg.Subject, msg.HTML, msg.Text); err != nil {
		s.rollback(ctx, rec)
		s.log.Warn("otp email dispatch failed", "email", email, "otp_id", rec.ID, "err", err)
		return &domain.OTPError{
			Code:    domain.CodeEmailSendFailed,
			Message: "We could not send the verification email. Please try again.",
			Err:     err,
		}
	}

	s.log.Info("otp sent", "email", email, "otp_id", rec.ID, "expires_at", rec.ExpiresAt)
	return nil
}

// reserve applies the throttle rules and, when permitted, writes a fresh record.
// The check and the write happen under the per-email lock.
func (s *service) reserve(ctx context.Context, email string) (*domain.OTPRecord, error) {
	unlock := s.locks.lock(email)
	defer unlock()

	now := s.now()
	existing, err := s.store.Get(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, s.internal("load otp record", err, email)
	default:
		if wait := existing.CooldownRemaining(now, s.policy.ResendCooldown); wait > 0 {
			secs := int(math.Ceil(wait.Seconds()))
			s.log.Debug("otp send throttled", "email", email, "retry_after", secs)
			return nil, &domain.OTPError{
				Code:       domain.CodeTooManyRequests,
				Message:    fmt.Sprintf("Please wait %d seconds before requesting a new code.", secs),
				RetryAfter: secs,
			}
		}
		if !existing.Expired(now) {
			mins := int(math.Ceil(existing.ExpiresAt.Sub(now).Minutes()))
			s.log.Debug("otp already sent", "email", email, "otp_id", existing.ID)
			return nil, &domain.OTPError{
				Code:    domain.CodeOTPAlreadySent,
				Message: fmt.Sprintf("A verification code has already been sent. It remains valid for %d more minute(s).", mins),
			}
		}
	}

	code, err := s.generate(s.policy.CodeLength)
	if err != nil {
		return nil, s.internal("generate otp", err, email)
	}
	rec := &domain.OTPRecord{
		ID:         id.New(),
		Email:      email,
		Code:       code,
		ExpiresAt:  now.Add(s.policy.Expiry),
		LastSentAt: now,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, s.internal("store otp record", err, email)
	}
	return rec, nil
}

// rollback removes rec unless a newer record has replaced it meanwhile.
func (s *service) rollback(ctx context.Context, rec *domain.OTPRecord) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.lock(rec.Email)
	defer unlock()

	cur, err := s.store.Get(ctx, rec.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("otp rollback lookup failed", "email", rec.Email, "otp_id", rec.ID, "err", err)
		}
		return
	}
	if cur.ID != rec.ID {
		return
	}
	if err := s.store.Delete(ctx, rec.Email); err != nil {
		s.log.Error("otp rollback delete failed", "email", rec.Email, "otp_id", rec.ID, "err", err)
	}
}

func (s *service) VerifyOTP(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)

	unlock := s.locks.lock(email)
	defer unlock()

	now := s.now()
	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.OTPError{
			Code:    domain.CodeOTPNotFound,
			Message: "No verification code found for this email. Please request a new one.",
		}
	}
	if err != nil {
		return s.internal("load otp record", err, email)
	}

	if rec.Expired(now) {
		s.discard(ctx, email)
		return &domain.OTPError{
			Code:    domain.CodeOTPExpired,
			Message: "The verification code has expired. Please request a new one.",
		}
	}
	if rec.Attempts >= s.policy.MaxAttempts {
		s.discard(ctx, email)
		return tooManyAttempts()
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(rec.Code)) != 1 {
		rec.Attempts++
		if rec.Attempts >= s.policy.MaxAttempts {
			s.discard(ctx, email)
			s.log.Info("otp locked out", "email", email, "otp_id", rec.ID)
			return tooManyAttempts()
		}
		if err := s.store.Put(ctx, rec); err != nil {
			return s.internal("store otp attempts", err, email)
		}
		remaining := s.policy.MaxAttempts - rec.Attempts
		s.log.Debug("otp mismatch", "email", email, "otp_id", rec.ID, "remaining", remaining)
		return &domain.OTPError{
			Code:              domain.CodeInvalidOTP,
			Message:           fmt.Sprintf("Invalid verification code. %d attempt(s) remaining.", remaining),
			RemainingAttempts: remaining,
		}
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return s.internal("consume otp record", err, email)
	}
	s.log.Info("otp verified", "email", email, "otp_id", rec.ID)
	return nil
}

func (s *service) discard(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, email); err != nil {
		s.log.Error("otp delete failed", "email", email, "err", err)
	}
}

func (s *service) internal(op string, err error, email string) error {
	s.log.Error(op+" failed", "email", email, "err", err)
	return &domain.OTPError{
		Code:    domain.CodeInternal,
		Message: "Something went wrong. Please try again later.",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

func tooManyAttempts() error {
	return &domain.OTPError{
		Code:    domain.CodeTooManyAttempts,
		Message: "Too many failed attempts. Please request a new code.",
	}
}
