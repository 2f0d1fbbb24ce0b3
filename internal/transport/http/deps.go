package http

import (
	"github.com/travel-otp-api/internal/application/otp"
	jwtinfra "github.com/travel-otp-api/internal/infrastructure/jwt"
	"github.com/travel-otp-api/internal/transport/http/handler"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	OTPService otp.Service
	// JWTProvider is optional; without it verify returns no token and
	// /v1/otp/verified-email is not mounted.
	JWTProvider *jwtinfra.Provider
	// MailReady reports whether the mail transport has the settings it needs.
	MailReady func() bool
	// StorePinger backs /v1/health-check/ready; nil for the in-process store.
	StorePinger handler.Pinger
}
