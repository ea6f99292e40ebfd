package constants

// Default translation configuration values
const (
	DefaultPrimaryTimeoutSec     = 30
	DefaultPrimaryMaxAttempts    = 3
	DefaultPrimaryMinIntervalMs  = 1500
	DefaultContextMessages       = 10
	DefaultSecondaryTimeoutSec   = 15
	DefaultMaxMessageLength      = 2000
	DefaultContextFragmentLength = 300
	TimeoutBackoffBaseSec        = 3
	ProviderBackoffBaseSec       = 2
	MaxBackoffSec                = 30
)

// Default resource lifecycle values
const (
	DefaultAvatarReleaseGraceMs = 1000
	DefaultAvatarRetentionHours = 24
	DefaultAvatarMaxSizeMB      = 8
	DefaultEmojiCleanupDelaySec = 5
	DefaultAuditRetentionDays   = 30

	CleanupSchedulerIntervalHours = 24
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultAuditRetryAttempts    = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGatewayReconnectSec   = 5
)

// Markers appended to delivered text
const (
	FallbackMarker     = " [MT]"
	UntranslatedMarker = " [untranslated]"
)
