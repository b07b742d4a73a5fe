package constants

// Default monitor configuration values
const (
	DefaultCodeWord          = "Burmalda69"
	DefaultMinRainAmount     = 100.0
	DefaultPollIntervalMs    = 1000
	DefaultPollTimeoutSec    = 10
	DefaultCodeWordTemplate  = "<@&{{.RoleID}}> code word found: {{.CodeWord}}"
	DefaultRainTemplate      = "<@&{{.RoleID}}> Next {{amount .Amount}}!"
	DefaultSiteURL           = "https://bandit.camp/"
	DefaultPageLoadTimeout   = 30
	DefaultReadyTimeoutSec   = 30
	DefaultBreakerFailures   = 5
	DefaultBreakerResetSec   = 60
	DefaultFallbackIDPrefix  = 50
	DefaultBrowserUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	DefaultBrowserWindowSize = "1920,1080"
)

// Default relay configuration values
const (
	DefaultLargeNumberThreshold = 100.0
	DefaultEmptyPlaceholder     = "Media without text"
	DefaultTagTemplate          = "<@&{{.RoleID}}> big rain"
	DefaultRelaySendTimeoutSec  = 30
	DefaultRelayLaneBuffer      = 64
)

// Default storage configuration values
const (
	StoreBackendMemory            = "memory"
	StoreBackendSQLite            = "sqlite"
	StoreBackendRedis             = "redis"
	DefaultSQLitePath             = "rainrelay.db"
	DefaultCleanupIntervalMinutes = 60
	DefaultDatabaseRetryAttempts  = 3
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 3
)

// Default media configuration values
const (
	DefaultMediaCacheDir = "media-cache"
	DefaultMaxMediaMB    = 25
	DefaultStaleMediaSec = 3600
)

// Default server and lifecycle values
const (
	DefaultServerPort             = 8082
	DefaultHTTPTimeoutSec         = 30
	DefaultGracefulShutdownSec    = 30
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultTracingShutdownSec     = 5
	ServerErrorChannelSize        = 1
	DefaultLogPreviewLength       = 80
	DefaultCircuitHalfOpenMaxCall = 1
)
