package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	HTTPPort    string
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string
	// AuthRateLimit caps requests per minute per IP on /api/auth.
	AuthRateLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		HTTPPort:      getenv("HTTP_PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        24 * time.Hour,
		CORSOrigins:   []string{"*"},
		AuthRateLimit: 20,
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is empty")
	}
	if s := os.Getenv("JWT_EXPIRES_IN"); s != "" {
		d, err := ParseExpiry(s)
		if err != nil {
			return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
		}
		cfg.JWTTTL = d
	}
	if s := os.Getenv("CORS_ORIGINS"); s != "" {
		cfg.CORSOrigins = strings.Split(s, ",")
	}
	if s := os.Getenv("AUTH_RATE_LIMIT"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("AUTH_RATE_LIMIT must be a positive integer")
		}
		cfg.AuthRateLimit = n
	}
	return cfg, nil
}

// ParseExpiry reads token lifetimes in the "<n>[hdm]" form used by the
// deployment env files, e.g. "24h", "30m", "7d". time.ParseDuration has
// no days unit, hence the hand parse.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid expiry %q", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid expiry %q", s)
	}
	switch unit {
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid expiry unit %q", string(unit))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
