package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/trackitnow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, config.BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "Users", cfg.DynamoDBTable)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, config.NotifyLog, cfg.NotifyBackend)
	assert.Equal(t, "SendOrderConfirmation", cfg.ConfirmationFunction)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("STORE_BACKEND", "DynamoDB")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("CONFIRMATION_FUNCTION", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, config.BackendDynamoDB, cfg.StoreBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Empty(t, cfg.ConfirmationFunction)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad bcrypt cost", map[string]string{"BCRYPT_COST": "abc"}},
		{"bcrypt cost out of range", map[string]string{"BCRYPT_COST": "20"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}},
		{"unknown notifier", map[string]string{"NOTIFY_BACKEND": "smtp"}},
		{"bad timeout", map[string]string{"STORE_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"STORE_TIMEOUT": "0s"}},
		{"bad rate", map[string]string{"LOGIN_RATE_PER_MINUTE": "0"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=" + testSecret + "\nDYNAMODB_TABLE=Orders\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv does not override variables that are already set, so make
	// sure neither is present before loading.
	unsetForTest(t, "JWT_SECRET")
	unsetForTest(t, "DYNAMODB_TABLE")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Orders", cfg.DynamoDBTable)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}
