package models

// Config holds the application configuration
type Config struct {
	Monitor  MonitorConfig  `json:"monitor"`
	Relay    RelayConfig    `json:"relay"`
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	Feed     FeedConfig     `json:"feed"`
	Store    StoreConfig    `json:"store"`
	Media    MediaConfig    `json:"media"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
	Server   ServerConfig   `json:"server"`
	LogLevel string         `json:"log_level"`
}

// MonitorConfig holds the feed monitor and alert configuration
type MonitorConfig struct {
	CodeWord         string  `json:"codeWord"`
	MinAmount        float64 `json:"minAmount"`
	PollIntervalMs   int     `json:"pollIntervalMs"`
	PollTimeoutSec   int     `json:"pollTimeoutSec"`
	AlertChannelID   string  `json:"alertChannelId"`
	CodeWordRoleID   string  `json:"codeWordRoleId"`
	RainRoleID       string  `json:"rainRoleId"`
	CodeWordTemplate string  `json:"codeWordTemplate"`
	RainTemplate     string  `json:"rainTemplate"`
}

// RelayConfig holds the Telegram to Discord relay configuration
type RelayConfig struct {
	Channels             []Channel `json:"channels"`
	TagRoleID            string    `json:"tagRoleId"`
	TagTemplate          string    `json:"tagTemplate"`
	LargeNumberThreshold float64   `json:"largeNumberThreshold"`
	EmptyPlaceholder     string    `json:"emptyPlaceholder"`
	SendTimeoutSec       int       `json:"sendTimeoutSec"`
}

// Channel maps one relay source chat to a destination channel.
// Source is either the public channel username or the numeric chat id.
type Channel struct {
	Source               string `json:"source"`
	DestinationChannelID string `json:"destinationChannelId"`
}

type DiscordConfig struct {
	Token string `json:"token"`
}

type TelegramConfig struct {
	BotToken  string `json:"botToken"`
	// APIServer points the bot at a self-hosted Bot API server.
	APIServer string `json:"apiServer,omitempty"`
}

// FeedConfig holds the headless browser configuration for the monitored feed
type FeedConfig struct {
	SiteURL            string `json:"siteUrl"`
	ChromePath         string `json:"chromePath"`
	Headless           *bool  `json:"headless,omitempty"`
	UserAgent          string `json:"userAgent"`
	PageLoadTimeoutSec int    `json:"pageLoadTimeoutSec"`
	ReadyTimeoutSec    int    `json:"readyTimeoutSec"`
	BreakerMaxFailures int    `json:"breakerMaxFailures"`
	BreakerResetSec    int    `json:"breakerResetSec"`
}

// IsHeadless defaults to true when unset.
func (f FeedConfig) IsHeadless() bool {
	return f.Headless == nil || *f.Headless
}

// StoreConfig selects the backend of the notification ledger and relay map
type StoreConfig struct {
	Backend                string `json:"backend"`
	SQLitePath             string `json:"sqlitePath"`
	RedisURL               string `json:"redisUrl"`
	RetentionHours         int    `json:"retentionHours"`
	CleanupIntervalMinutes int    `json:"cleanupIntervalMinutes"`
}

// MediaConfig holds media staging configuration
type MediaConfig struct {
	CacheDir  string `json:"cache_dir"`
	MaxSizeMB int    `json:"maxSizeMB"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
