package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration required by the API and migrate processes.
// Values come from the environment; a local .env file is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Twilio     TwilioConfig
	RateLimit  RateLimitConfig
	Allocation AllocationConfig
}

type AppConfig struct {
	Env            string   `envconfig:"APP_ENV" required:"true"`
	Port           int      `envconfig:"APP_PORT" default:"5000"`
	Version        string   `envconfig:"APP_VERSION" default:"1.0.0"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `envconfig:"DB_SSLMODE"`

	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	Host string `envconfig:"REDIS_HOST"`
	Port int    `envconfig:"REDIS_PORT" default:"6379"`
}

type AuthConfig struct {
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	JWTIssuer       string        `envconfig:"JWT_ISSUER"`
	JWTAudience     string        `envconfig:"JWT_AUDIENCE"`
	AccessTokenTTL  time.Duration `envconfig:"JWT_ACCESS_TTL"`
	RefreshTokenTTL time.Duration `envconfig:"JWT_REFRESH_TTL"`
}

type TwilioConfig struct {
	AccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`

	// ValidateSignature enforces X-Twilio-Signature on the voice webhook.
	ValidateSignature bool `envconfig:"TWILIO_VALIDATE_SIGNATURE" default:"false"`
	// PublicBaseURL is the externally visible origin Twilio signs against,
	// e.g. https://dispatch.example.com. Empty means derive from the request.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL"`
}

// EgressConfigured reports whether outbound call forwarding has everything it needs.
func (t TwilioConfig) EgressConfigured() bool {
	return strings.TrimSpace(t.AccountSID) != "" &&
		strings.TrimSpace(t.AuthToken) != "" &&
		strings.TrimSpace(t.PhoneNumber) != ""
}

type RateLimitConfig struct {
	LoginLimit  int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
	LoginWindow time.Duration `envconfig:"LOGIN_RATE_WINDOW" default:"1m"`
}

type AllocationConfig struct {
	MaxAttempts int `envconfig:"ALLOCATION_MAX_ATTEMPTS" default:"16"`
}

// Load reads an optional .env file, parses the environment and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without touching .env files.
func FromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills env-dependent defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.ValidateSignature && strings.TrimSpace(c.Twilio.AuthToken) == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_SIGNATURE is set"))
	}
	if c.IsProduction() && !c.Twilio.ValidateSignature {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE must be enabled in production"))
	}

	if c.RateLimit.LoginLimit <= 0 {
		c.RateLimit.LoginLimit = 10
	}
	if c.RateLimit.LoginWindow <= 0 {
		c.RateLimit.LoginWindow = time.Minute
	}
	if c.Allocation.MaxAttempts <= 0 {
		c.Allocation.MaxAttempts = 16
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
