package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, env, body string) {
	t.Helper()
	path := filepath.Join(dir, "config."+env+".json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	writeConfig(t, dir, "test", `{"server": {"host": "127.0.0.1"}}`)

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.RateLimit.Votes)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
	assert.Equal(t, "ratelimit:vote", cfg.RateLimit.Prefix)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("TEST_PG_DSN", "postgres://arena@localhost/arena")
	writeConfig(t, dir, "prod", `{
		"storage": {"driver": "postgres"},
		"postgres": {"dsn": "${TEST_PG_DSN}"}
	}`)

	cfg, err := Load("prod")
	require.NoError(t, err)
	assert.Equal(t, "postgres://arena@localhost/arena", cfg.Postgres.DSN)
}

func TestLoadKeepsLiteralDollarSigns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	const hash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
	writeConfig(t, dir, "hash", `{
		"admin": {"passwordHash": "`+hash+`"},
		"server": {"trustedProxies": ["10.0.0.0/8", "192.0.2.1"]}
	}`)

	cfg, err := Load("hash")
	require.NoError(t, err)
	assert.Equal(t, hash, cfg.Admin.PasswordHash)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
}

func TestLoadRejectsIncompleteStorage(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	writeConfig(t, dir, "bad", `{"storage": {"driver": "mongodb"}}`)

	_, err := Load("bad")
	assert.Error(t, err)

	writeConfig(t, dir, "weird", `{"storage": {"driver": "cassandra"}}`)
	_, err = Load("weird")
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	_, err := Load("nope")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ARENA_ENV", "")
	assert.Equal(t, "dev", GetEnv())
	t.Setenv("ARENA_ENV", "prod")
	assert.Equal(t, "prod", GetEnv())
}
