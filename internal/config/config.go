package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	StoreBackend string // "memory" | "redis" | "dynamo"

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTableOTP string

	SMTPHost        string
	SMTPPort        string
	SMTPFrom        string
	SMTPUsername    string
	SMTPPassword    string
	SMTPStartTLS    bool
	MailSendTimeout time.Duration
	ProductName     string

	OTP OTPConfig

	JWTPrivateKeyPath       string
	JWTPublicKeyPath        string
	VerificationTokenExpiry time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string // CORS allowed origins
}

// OTPConfig holds the one-time-password policy knobs.
type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreDynamo = "dynamo"
)

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTableOTP: getEnv("DYNAMO_TABLE_OTP", "otp_records"),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPStartTLS:    getEnvBool("SMTP_STARTTLS", true),
		MailSendTimeout: time.Duration(getEnvInt("MAIL_SEND_TIMEOUT_SECONDS", 10)) * time.Second,
		ProductName:     getEnv("PRODUCT_NAME", "Travel Booking"),

		OTP: OTPConfig{
			Length:         getEnvInt("OTP_LENGTH", 6),
			Expiry:         time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
			ResendCooldown: time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_MINUTES", 1)) * time.Minute,
			MaxAttempts:    getEnvInt("OTP_MAX_ATTEMPTS", 5),
		},

		JWTPrivateKeyPath:       getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:        getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		VerificationTokenExpiry: time.Duration(getEnvInt("VERIFICATION_TOKEN_EXPIRY_MINUTES", 15)) * time.Minute,

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", "*"),
	}
}

// MailConfigured reports whether the settings required to reach the mail transport are present.
func (c *Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPFrom != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, fallback), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
