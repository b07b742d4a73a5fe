package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"rainrelay/internal/constants"
	"rainrelay/internal/models"

	"github.com/joho/godotenv"
)

const channelEnvPrefix = "CHANNEL_"

var (
	ErrMissingDiscordToken = models.ConfigError{Message: "missing Discord bot token (set DISCORD_TOKEN)"}
	ErrMissingRedisURL     = models.ConfigError{Message: "redis store backend requires a redis url (set REDIS_URL)"}
)

// LoadConfig reads the optional JSON file at path, then the .env files, then the
// process environment. Later sources win. Defaults fill whatever is still unset.
func LoadConfig(path string, envFiles ...string) (*models.Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var config models.Config
	if path != "" {
		file, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(&config); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadDotEnv loads .env style files without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// discordID treats "0" as unset, matching how ids were left blank in deployed .env files.
func discordID(v string) string {
	v = strings.TrimSpace(v)
	if v == "0" {
		return ""
	}
	return v
}

func applyEnvironmentOverrides(c *models.Config) error {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("ROLE_ID"); v != "" {
		c.Relay.TagRoleID = discordID(v)
	}
	if v := os.Getenv("DISCORD_ID_RAIN"); v != "" {
		c.Monitor.RainRoleID = discordID(v)
	}
	if v := os.Getenv("DISCORD_NEXT_RAIN"); v != "" {
		c.Monitor.CodeWordRoleID = discordID(v)
	}
	if v := os.Getenv("BANDIT_CHANNEL_ID"); v != "" {
		c.Monitor.AlertChannelID = discordID(v)
	}
	if v := os.Getenv("CHECK_WORD"); v != "" {
		c.Monitor.CodeWord = v
	}
	if v := os.Getenv("MIN_SCRAP"); v != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid MIN_SCRAP %q", v)}
		}
		c.Monitor.MinAmount = amount
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		c.Feed.SiteURL = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Feed.ChromePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("MEDIA_DIR"); v != "" {
		c.Media.CacheDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid PORT %q", v)}
		}
		c.Server.Port = port
	}

	applyChannelOverrides(c, os.Environ())
	return nil
}

// applyChannelOverrides merges CHANNEL_<source>=<destination> variables into the
// channel table. An env entry replaces a file entry with the same source.
func applyChannelOverrides(c *models.Config, environ []string) {
	fromEnv := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, channelEnvPrefix) {
			continue
		}
		source := strings.TrimPrefix(key, channelEnvPrefix)
		if source == "" {
			continue
		}
		fromEnv[source] = discordID(value)
	}
	if len(fromEnv) == 0 {
		return
	}

	merged := make([]models.Channel, 0, len(c.Relay.Channels)+len(fromEnv))
	for _, ch := range c.Relay.Channels {
		if _, replaced := fromEnv[ch.Source]; !replaced {
			merged = append(merged, ch)
		}
	}

	sources := make([]string, 0, len(fromEnv))
	for source := range fromEnv {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		if fromEnv[source] == "" {
			continue
		}
		merged = append(merged, models.Channel{Source: source, DestinationChannelID: fromEnv[source]})
	}
	c.Relay.Channels = merged
}

func applyDefaults(c *models.Config) {
	if c.Monitor.CodeWord == "" {
		c.Monitor.CodeWord = constants.DefaultCodeWord
	}
	if c.Monitor.MinAmount == 0 {
		c.Monitor.MinAmount = constants.DefaultMinRainAmount
	}
	if c.Monitor.PollIntervalMs <= 0 {
		c.Monitor.PollIntervalMs = constants.DefaultPollIntervalMs
	}
	if c.Monitor.PollTimeoutSec <= 0 {
		c.Monitor.PollTimeoutSec = constants.DefaultPollTimeoutSec
	}
	if c.Monitor.CodeWordTemplate == "" {
		c.Monitor.CodeWordTemplate = constants.DefaultCodeWordTemplate
	}
	if c.Monitor.RainTemplate == "" {
		c.Monitor.RainTemplate = constants.DefaultRainTemplate
	}

	if c.Relay.TagTemplate == "" {
		c.Relay.TagTemplate = constants.DefaultTagTemplate
	}
	if c.Relay.LargeNumberThreshold <= 0 {
		c.Relay.LargeNumberThreshold = constants.DefaultLargeNumberThreshold
	}
	if c.Relay.EmptyPlaceholder == "" {
		c.Relay.EmptyPlaceholder = constants.DefaultEmptyPlaceholder
	}
	if c.Relay.SendTimeoutSec <= 0 {
		c.Relay.SendTimeoutSec = constants.DefaultRelaySendTimeoutSec
	}

	if c.Feed.SiteURL == "" {
		c.Feed.SiteURL = constants.DefaultSiteURL
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = constants.DefaultBrowserUserAgent
	}
	if c.Feed.PageLoadTimeoutSec <= 0 {
		c.Feed.PageLoadTimeoutSec = constants.DefaultPageLoadTimeout
	}
	if c.Feed.ReadyTimeoutSec <= 0 {
		c.Feed.ReadyTimeoutSec = constants.DefaultReadyTimeoutSec
	}
	if c.Feed.BreakerMaxFailures <= 0 {
		c.Feed.BreakerMaxFailures = constants.DefaultBreakerFailures
	}
	if c.Feed.BreakerResetSec <= 0 {
		c.Feed.BreakerResetSec = constants.DefaultBreakerResetSec
	}

	if c.Store.Backend == "" {
		c.Store.Backend = constants.StoreBackendMemory
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = constants.DefaultSQLitePath
	}
	if c.Store.CleanupIntervalMinutes <= 0 {
		c.Store.CleanupIntervalMinutes = constants.DefaultCleanupIntervalMinutes
	}

	if c.Media.CacheDir == "" {
		c.Media.CacheDir = constants.DefaultMediaCacheDir
	}
	if c.Media.MaxSizeMB <= 0 {
		c.Media.MaxSizeMB = constants.DefaultMaxMediaMB
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c *models.Config) error {
	if c.Discord.Token == "" {
		return ErrMissingDiscordToken
	}
	if c.Monitor.MinAmount < 0 {
		return models.ConfigError{Message: "minimum rain amount must not be negative"}
	}

	templates := map[string]string{
		"codeWordTemplate": c.Monitor.CodeWordTemplate,
		"rainTemplate":     c.Monitor.RainTemplate,
		"tagTemplate":      c.Relay.TagTemplate,
	}
	for name, text := range templates {
		if _, err := template.New(name).Parse(text); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid %s: %v", name, err)}
		}
	}

	sources := make(map[string]bool)
	for i, channel := range c.Relay.Channels {
		if channel.Source == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty source in channel %d", i)}
		}
		if channel.DestinationChannelID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty destination channel for source %s", channel.Source)}
		}
		key := strings.ToLower(strings.TrimPrefix(channel.Source, "@"))
		if sources[key] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate channel source: %s", channel.Source)}
		}
		sources[key] = true
	}

	switch c.Store.Backend {
	case constants.StoreBackendMemory, constants.StoreBackendSQLite:
	case constants.StoreBackendRedis:
		if c.Store.RedisURL == "" {
			return ErrMissingRedisURL
		}
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown store backend %q", c.Store.Backend)}
	}
	if c.Store.RetentionHours < 0 {
		return models.ConfigError{Message: "retention hours must not be negative"}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port %d", c.Server.Port)}
	}
	return nil
}

// MonitorEnabled reports whether the feed monitor has somewhere to send alerts.
func MonitorEnabled(c *models.Config) bool {
	return c.Monitor.AlertChannelID != ""
}

// RelayEnabled reports whether the Telegram relay has both a token and a mapping.
func RelayEnabled(c *models.Config) bool {
	return c.Telegram.BotToken != "" && len(c.Relay.Channels) > 0
}
