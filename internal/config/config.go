package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port string

	// Access token signing
	JWTSecret      string
	AccessTokenTTL time.Duration

	// Refresh token lifetime window (jittered per token)
	RefreshTokenMinDays int
	RefreshTokenMaxDays int

	// OTP behavior
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                "8080",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenMinDays: 14,
		RefreshTokenMaxDays: 30,
		OTPMaxAttempts:      5,
		OTPResendCooldown:   120 * time.Second,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if v := os.Getenv("ACCESS_TOKEN_TTL_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid ACCESS_TOKEN_TTL_MINUTES: %q", v)
		}
		cfg.AccessTokenTTL = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("REFRESH_TOKEN_MIN_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid REFRESH_TOKEN_MIN_DAYS: %q", v)
		}
		cfg.RefreshTokenMinDays = days
	}

	if v := os.Getenv("REFRESH_TOKEN_MAX_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid REFRESH_TOKEN_MAX_DAYS: %q", v)
		}
		cfg.RefreshTokenMaxDays = days
	}

	if cfg.RefreshTokenMaxDays < cfg.RefreshTokenMinDays {
		return nil, fmt.Errorf("REFRESH_TOKEN_MAX_DAYS (%d) must be >= REFRESH_TOKEN_MIN_DAYS (%d)",
			cfg.RefreshTokenMaxDays, cfg.RefreshTokenMinDays)
	}

	if v := os.Getenv("OTP_MAX_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts <= 0 {
			return nil, fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %q", v)
		}
		cfg.OTPMaxAttempts = attempts
	}

	if v := os.Getenv("OTP_RESEND_COOLDOWN_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid OTP_RESEND_COOLDOWN_SECONDS: %q", v)
		}
		cfg.OTPResendCooldown = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
