package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"1h", time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"30m", 30 * time.Minute},
		{" 12h ", 12 * time.Hour},
	}
	for _, c := range cases {
		got, err := ParseExpiry(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "h", "24", "0h", "-1h", "24x", "1.5h"} {
		_, err := ParseExpiry(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/em")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRES_IN", "2d")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "8080", cfg.HTTPPort)
}
