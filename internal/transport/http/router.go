package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/travel-otp-api/internal/config"
	"github.com/travel-otp-api/internal/transport/http/handler"
	appmiddleware "github.com/travel-otp-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the rate limiter's
// background cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	var tokens handler.TokenIssuer
	if deps.JWTProvider != nil {
		tokens = deps.JWTProvider
	}

	healthH := handler.NewHealthHandler(deps.StorePinger)
	otpH := handler.NewOTPHandler(deps.OTPService, tokens, deps.MailReady)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Post("/otp/send", otpH.Send)
			r.Post("/otp/verify", otpH.Verify)
		})

		if deps.JWTProvider != nil {
			r.With(appmiddleware.Auth(deps.JWTProvider)).Get("/otp/verified-email", otpH.VerifiedEmail)
		}
	})

	return r
}
