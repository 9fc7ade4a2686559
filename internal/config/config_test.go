package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T, args []string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return LoadConfig(args)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadClean(t, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 100, cfg.MaxClients)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "chat_server.db", cfg.DBPath)
	assert.Empty(t, cfg.AdminPort)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfigPositionalPort(t *testing.T) {
	cfg, err := loadClean(t, []string{"7777"})
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
}

func TestLoadConfigInvalidPortFallsBack(t *testing.T) {
	for _, arg := range []string{"notaport", "0", "-1", "70000"} {
		cfg, err := loadClean(t, []string{arg})
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, cfg.Port, "arg %q", arg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PORT", "6001")
	t.Setenv("MAX_CLIENTS", "7")

	cfg, err := loadClean(t, nil)
	require.NoError(t, err)
	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, 7, cfg.MaxClients)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Port: 9000, MaxClients: 0, DBDriver: "sqlite", DBPath: "x.db"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: 9000, MaxClients: 1, DBDriver: "oracle"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: 9000, MaxClients: 1, DBDriver: "sqlite", DBPath: ""}
	assert.Error(t, cfg.Validate())
}

func TestValidateProductionSecrets(t *testing.T) {
	cfg := &Config{
		Port: 9000, MaxClients: 1, DBDriver: "sqlite", DBPath: "x.db",
		Env: "production", AdminPort: "8080", JWTSecret: "change-me-in-production",
	}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "a-sufficiently-long-and-random-secret-value"
	assert.NoError(t, cfg.Validate())
}
