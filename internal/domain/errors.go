package domain

import "errors"

// ErrNotFound is wrapped by every store when no record exists for a key.
var ErrNotFound = errors.New("not found")

// ErrorCode is the stable, machine-readable failure kind returned to callers.
type ErrorCode string

const (
	CodeConfiguration   ErrorCode = "CONFIGURATION_ERROR"
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeInvalidEmail    ErrorCode = "INVALID_EMAIL"
	CodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	CodeOTPAlreadySent  ErrorCode = "OTP_ALREADY_SENT"
	CodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeOTPNotFound     ErrorCode = "OTP_NOT_FOUND"
	CodeOTPExpired      ErrorCode = "OTP_EXPIRED"
	CodeTooManyAttempts ErrorCode = "TOO_MANY_ATTEMPTS"
	CodeInvalidOTP      ErrorCode = "INVALID_OTP"
)

// OTPError is the typed failure crossing the OTP service boundary.
// Message is safe to show to an end user.
type OTPError struct {
	Code              ErrorCode
	Message           string
	RetryAfter        int // seconds, TOO_MANY_REQUESTS only
	RemainingAttempts int // INVALID_OTP only
	Err               error
}

func (e *OTPError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *OTPError) Unwrap() error { return e.Err }

// Is matches any *OTPError carrying the same Code.
func (e *OTPError) Is(target error) bool {
	t, ok := target.(*OTPError)
	return ok && t.Code == e.Code
}

// Comparison targets for errors.Is.
var (
	ErrTooManyRequests = &OTPError{Code: CodeTooManyRequests}
	ErrOTPAlreadySent  = &OTPError{Code: CodeOTPAlreadySent}
	ErrEmailSendFailed = &OTPError{Code: CodeEmailSendFailed}
	ErrInternal        = &OTPError{Code: CodeInternal}
	ErrOTPNotFound     = &OTPError{Code: CodeOTPNotFound}
	ErrOTPExpired      = &OTPError{Code: CodeOTPExpired}
	ErrTooManyAttempts = &OTPError{Code: CodeTooManyAttempts}
	ErrInvalidOTP      = &OTPError{Code: CodeInvalidOTP}
)

// AsOTPError extracts the *OTPError from err's chain.
func AsOTPError(err error) (*OTPError, bool) {
	var oe *OTPError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
