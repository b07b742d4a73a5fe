package config

import (
	"os"
	"path/filepath"
	"testing"

	"rainrelay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"DISCORD_TOKEN", "ROLE_ID", "DISCORD_ID_RAIN", "DISCORD_NEXT_RAIN", "BANDIT_CHANNEL_ID",
	"CHECK_WORD", "MIN_SCRAP", "SITE_URL", "CHROME_PATH", "TELEGRAM_BOT_TOKEN",
	"STORE_BACKEND", "DB_PATH", "REDIS_URL", "MEDIA_DIR", "LOG_LEVEL", "PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnv {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func noDotEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := LoadConfig("", noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "Burmalda69", cfg.Monitor.CodeWord)
	assert.Equal(t, 100.0, cfg.Monitor.MinAmount)
	assert.Equal(t, 1000, cfg.Monitor.PollIntervalMs)
	assert.Equal(t, 100.0, cfg.Relay.LargeNumberThreshold)
	assert.Equal(t, "Media without text", cfg.Relay.EmptyPlaceholder)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "https://bandit.camp/", cfg.Feed.SiteURL)
	assert.True(t, cfg.Feed.IsHeadless())
	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, MonitorEnabled(cfg))
	assert.False(t, RelayEnabled(cfg))
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
		"discord": {"token": "file-token"},
		"monitor": {"codeWord": "fromfile", "minAmount": 250, "alertChannelId": "111"},
		"relay": {"channels": [{"source": "Rustmagici", "destinationChannelId": "222"}]},
		"telegram": {"botToken": "tg"},
		"store": {"backend": "sqlite", "sqlitePath": "state.db", "retentionHours": 48}
	}`)

	t.Setenv("CHECK_WORD", "fromenv")
	t.Setenv("MIN_SCRAP", "150,5")

	cfg, err := LoadConfig(path, noDotEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Discord.Token)
	assert.Equal(t, "fromenv", cfg.Monitor.CodeWord)
	assert.Equal(t, 150.5, cfg.Monitor.MinAmount)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 48, cfg.Store.RetentionHours)
	assert.True(t, MonitorEnabled(cfg))
	assert.True(t, RelayEnabled(cfg))
}

func TestLoadConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "DISCORD_TOKEN=dotenv-token\nBANDIT_CHANNEL_ID=555\nDISCORD_ID_RAIN=0\n")

	// godotenv only fills variables that are absent, so unset the cleared ones.
	for _, key := range []string{"DISCORD_TOKEN", "BANDIT_CHANNEL_ID", "DISCORD_ID_RAIN"} {
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for _, key := range []string{"DISCORD_TOKEN", "BANDIT_CHANNEL_ID", "DISCORD_ID_RAIN"} {
			_ = os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Discord.Token)
	assert.Equal(t, "555", cfg.Monitor.AlertChannelID)
	assert.Empty(t, cfg.Monitor.RainRoleID, "0 means unset")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
		env  map[string]string
	}{
		{"missing token", `{}`, nil},
		{"bad min scrap", `{"discord":{"token":"t"}}`, map[string]string{"MIN_SCRAP": "lots"}},
		{"bad port", `{"discord":{"token":"t"}}`, map[string]string{"PORT": "http"}},
		{"negative amount", `{"discord":{"token":"t"},"monitor":{"minAmount":-1}}`, nil},
		{"bad template", `{"discord":{"token":"t"},"monitor":{"rainTemplate":"{{.Amount"}}`, nil},
		{"unknown backend", `{"discord":{"token":"t"},"store":{"backend":"etcd"}}`, nil},
		{"redis without url", `{"discord":{"token":"t"},"store":{"backend":"redis"}}`, nil},
		{"empty destination", `{"discord":{"token":"t"},"relay":{"channels":[{"source":"a"}]}}`, nil},
		{"duplicate source", `{"discord":{"token":"t"},"relay":{"channels":[{"source":"a","destinationChannelId":"1"},{"source":"@A","destinationChannelId":"2"}]}}`, nil},
		{"port out of range", `{"discord":{"token":"t"},"server":{"port":70000}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, t.TempDir(), "config.json", tt.json)

			cfg, err := LoadConfig(path, noDotEnv(t))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.IsType(t, models.ConfigError{}, err)
		})
	}
}

func TestLoadConfig_MissingAndInvalidFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "t")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"), noDotEnv(t))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "config.json", "{not json")
	_, err = LoadConfig(path, noDotEnv(t))
	assert.Error(t, err)
}

func TestApplyChannelOverrides(t *testing.T) {
	cfg := &models.Config{Relay: models.RelayConfig{Channels: []models.Channel{
		{Source: "Rustmagici", DestinationChannelID: "1"},
		{Source: "Upgraderi", DestinationChannelID: "2"},
		{Source: "Keep", DestinationChannelID: "3"},
	}}}

	applyChannelOverrides(cfg, []string{
		"PATH=/usr/bin",
		"CHANNEL_Rustmagici=10",
		"CHANNEL_Upgraderi=0",
		"CHANNEL_Banditcampi=20",
		"CHANNEL_=99",
	})

	assert.Equal(t, []models.Channel{
		{Source: "Keep", DestinationChannelID: "3"},
		{Source: "Banditcampi", DestinationChannelID: "20"},
		{Source: "Rustmagici", DestinationChannelID: "10"},
	}, cfg.Relay.Channels)
}

func TestApplyChannelOverrides_NoEnvLeavesChannels(t *testing.T) {
	channels := []models.Channel{{Source: "a", DestinationChannelID: "1"}}
	cfg := &models.Config{Relay: models.RelayConfig{Channels: channels}}

	applyChannelOverrides(cfg, []string{"HOME=/root"})
	assert.Equal(t, channels, cfg.Relay.Channels)
}
