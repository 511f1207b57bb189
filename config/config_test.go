package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNBuiltFromComponents(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     "5433",
		User:     "u",
		Password: "p",
		DBName:   "linkforge",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/linkforge?sslmode=disable", db.DSN())
}

func TestDSNPrefersExplicitURL(t *testing.T) {
	db := DatabaseConfig{
		URL:  "postgres://elsewhere:5432/other",
		Host: "ignored",
	}
	assert.Equal(t, "postgres://elsewhere:5432/other", db.DSN())
}

func TestLoadComponentSettingsReachDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.Database.DSN(), "db.internal:6543")
}

func TestValidateRequiresDistinctSecrets(t *testing.T) {
	cfg := &Config{JWT: JWTConfig{AccessSecret: "same", RefreshSecret: "same"}}
	assert.Error(t, cfg.Validate())

	cfg.JWT.RefreshSecret = "other"
	assert.NoError(t, cfg.Validate())
}
