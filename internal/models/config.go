package models

// Config holds the application configuration
type Config struct {
	Platform   PlatformConfig   `json:"platform"`
	Translator TranslatorConfig `json:"translator"`
	Avatar     AvatarConfig     `json:"avatar"`
	Emoji      EmojiConfig      `json:"emoji"`
	Audit      AuditConfig      `json:"audit"`
	GroupsPath string           `json:"groupsPath"`
	LogLevel   string           `json:"log_level"`
	Tracing    TracingConfig    `json:"tracing"`
}

// PlatformConfig holds chat-platform related configuration
type PlatformConfig struct {
	APIBaseURL    string `json:"api_base_url"`
	GatewayURL    string `json:"gateway_url"`
	BotUserID     string `json:"bot_user_id"`
	WebhookSecret string `json:"webhook_secret"`
	TimeoutSec    int    `json:"timeoutSec"`
}

// TranslatorConfig holds settings for both translation paths.
type TranslatorConfig struct {
	Primary   PrimaryTranslatorConfig   `json:"primary"`
	Secondary SecondaryTranslatorConfig `json:"secondary"`
}

// PrimaryTranslatorConfig configures the context-aware LLM translator.
type PrimaryTranslatorConfig struct {
	BaseURL         string `json:"base_url"`
	Model           string `json:"model"`
	TimeoutSec      int    `json:"timeoutSec"`
	MaxAttempts     int    `json:"maxAttempts"`
	MinIntervalMs   int    `json:"minIntervalMs"`
	ContextMessages int    `json:"contextMessages"`
}

// SecondaryTranslatorConfig configures the plain machine-translation
// fallback.
type SecondaryTranslatorConfig struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeoutSec"`
}

// AvatarConfig holds avatar cache related configuration
type AvatarConfig struct {
	CacheDir       string `json:"cache_dir"`
	MaxSizeMB      int    `json:"maxSizeMB"`
	ReleaseGraceMs int    `json:"releaseGraceMs"`
	RetentionHours int    `json:"retentionHours"`
}

// EmojiConfig holds emoji bridging configuration
type EmojiConfig struct {
	CleanupDelaySec int `json:"cleanupDelaySec"`
}

// AuditConfig holds the translation audit store configuration
type AuditConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retentionDays"`
}

// TracingConfig holds OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	ServiceName  string  `json:"service_name"`
	Environment  string  `json:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	UseStdout    bool    `json:"use_stdout"`
}
