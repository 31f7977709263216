package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_PORT", "ACCESS_TTL", "RATE_LIMIT_PER_MIN", "TIMEZONE", "ALLOWED_ORIGINS", "AUTO_MIGRATE"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Timezone)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AutoMigrate)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TTL", "1h")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg := Load()

	assert.True(t, cfg.Production())
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("AUTO_MIGRATE", "maybe")
	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.False(t, cfg.AutoMigrate)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, App{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", App{Timezone: "UTC"}.Location().String())
}
