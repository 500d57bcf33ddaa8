package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "Karobar"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultOTPTTL         = 5 * time.Minute
	defaultOTPAttempts    = 3
	defaultTrialDays      = 15
	defaultUnlockPricePKR = 500
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour

	// CardProcessorSimulated selects the fake processor for local development.
	CardProcessorSimulated = "simulated"
	// CardProcessorLive selects the real card processor client.
	CardProcessorLive = "live"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Step-up verification.
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// Seller trial window.
	TrialDays int

	// Contact unlock pricing (whole rupees).
	UnlockPrice    int64
	UnlockCurrency string

	// Card processor selection and credentials.
	CardProcessor  string
	CardAPIKey     string
	CardAPIBaseURL string

	// Redirect wallet (Easypay) credentials.
	EasypayStoreID     string
	EasypayHashKey     string
	EasypayPostbackURL string
	EasypayBaseURL     string

	// Session tokens for the HTTP layer.
	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		OTPTTL:             defaultOTPTTL,
		OTPMaxAttempts:     defaultOTPAttempts,
		TrialDays:          defaultTrialDays,
		UnlockPrice:        defaultUnlockPricePKR,
		UnlockCurrency:     getEnv("UNLOCK_CURRENCY", "PKR"),
		CardProcessor:      strings.ToLower(getEnv("CARD_PROCESSOR", CardProcessorSimulated)),
		CardAPIKey:         os.Getenv("CARD_API_KEY"),
		CardAPIBaseURL:     os.Getenv("CARD_API_BASE_URL"),
		EasypayStoreID:     os.Getenv("EASYPAY_STORE_ID"),
		EasypayHashKey:     os.Getenv("EASYPAY_HASH_KEY"),
		EasypayPostbackURL: os.Getenv("EASYPAY_POSTBACK_URL"),
		EasypayBaseURL:     getEnv("EASYPAY_BASE_URL", "https://easypay.easypaisa.com.pk/easypay/Index.jsf"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		RefreshSecret:      getEnv("REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:     defaultAccessTTL,
		RefreshTokenTTL:    defaultRefreshTTL,
	}

	if d, err := durationEnv("SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.ShutdownPeriod = d
	}

	if d, err := durationEnv("IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.IdempotencyTTL = d
	}

	if d, err := durationEnv("OTP_TTL_SECONDS", "OTP_TTL"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.OTPTTL = d
	}

	if v := os.Getenv("OTP_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %q", v)
		}
		cfg.OTPMaxAttempts = n
	}

	if v := os.Getenv("TRIAL_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TRIAL_DAYS: %q", v)
		}
		cfg.TrialDays = n
	}

	if v := os.Getenv("UNLOCK_PRICE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid UNLOCK_PRICE: %q", v)
		}
		cfg.UnlockPrice = n
	}

	switch cfg.CardProcessor {
	case CardProcessorSimulated, CardProcessorLive:
	default:
		return Config{}, fmt.Errorf("invalid CARD_PROCESSOR: %q", cfg.CardProcessor)
	}
	if cfg.CardProcessor == CardProcessorLive && cfg.CardAPIKey == "" {
		return Config{}, fmt.Errorf("CARD_API_KEY must be set when CARD_PROCESSOR=live")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationEnv reads a duration either as whole seconds or as a Go duration string.
func durationEnv(secondsKey, durationKey string) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return 0, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
