package config

import (
	"encoding/json"
	"fmt"
	"os"

	"lingobridge/internal/constants"
	"lingobridge/internal/models"
	"lingobridge/internal/security"
)

var (
	ErrMissingPlatformURL  = models.ConfigError{Message: "missing chat platform API base URL"}
	ErrMissingPrimaryURL   = models.ConfigError{Message: "missing primary translator base URL"}
	ErrMissingSecondaryURL = models.ConfigError{Message: "missing secondary translator base URL"}
	ErrMissingGroupsPath   = models.ConfigError{Message: "missing sync group store path"}
	ErrMissingAvatarDir    = models.ConfigError{Message: "missing avatar cache directory"}
	ErrMissingAuditPath    = models.ConfigError{Message: "missing audit database path"}
)

// LoadConfig reads, validates, and defaults the application configuration.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Platform.APIBaseURL == "" {
		return ErrMissingPlatformURL
	}
	if c.Translator.Primary.BaseURL == "" {
		return ErrMissingPrimaryURL
	}
	if c.Translator.Secondary.BaseURL == "" {
		return ErrMissingSecondaryURL
	}
	if c.GroupsPath == "" {
		return ErrMissingGroupsPath
	}
	if c.Avatar.CacheDir == "" {
		return ErrMissingAvatarDir
	}
	if c.Audit.Path == "" {
		return ErrMissingAuditPath
	}

	if c.Platform.TimeoutSec <= 0 {
		c.Platform.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Translator.Primary.TimeoutSec <= 0 {
		c.Translator.Primary.TimeoutSec = constants.DefaultPrimaryTimeoutSec
	}
	if c.Translator.Primary.MaxAttempts <= 0 {
		c.Translator.Primary.MaxAttempts = constants.DefaultPrimaryMaxAttempts
	}
	if c.Translator.Primary.MinIntervalMs <= 0 {
		c.Translator.Primary.MinIntervalMs = constants.DefaultPrimaryMinIntervalMs
	}
	if c.Translator.Primary.ContextMessages <= 0 {
		c.Translator.Primary.ContextMessages = constants.DefaultContextMessages
	}
	if c.Translator.Secondary.TimeoutSec <= 0 {
		c.Translator.Secondary.TimeoutSec = constants.DefaultSecondaryTimeoutSec
	}
	if c.Avatar.MaxSizeMB <= 0 {
		c.Avatar.MaxSizeMB = constants.DefaultAvatarMaxSizeMB
	}
	if c.Avatar.ReleaseGraceMs <= 0 {
		c.Avatar.ReleaseGraceMs = constants.DefaultAvatarReleaseGraceMs
	}
	if c.Avatar.RetentionHours <= 0 {
		c.Avatar.RetentionHours = constants.DefaultAvatarRetentionHours
	}
	if c.Emoji.CleanupDelaySec <= 0 {
		c.Emoji.CleanupDelaySec = constants.DefaultEmojiCleanupDelaySec
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = constants.DefaultAuditRetentionDays
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("LINGOBRIDGE_PLATFORM_API_URL"); v != "" {
		c.Platform.APIBaseURL = v
	}
	if v := os.Getenv("LINGOBRIDGE_GATEWAY_URL"); v != "" {
		c.Platform.GatewayURL = v
	}
	if v := os.Getenv("LINGOBRIDGE_WEBHOOK_SECRET"); v != "" {
		c.Platform.WebhookSecret = v
	}
	if v := os.Getenv("LINGOBRIDGE_PRIMARY_TRANSLATOR_URL"); v != "" {
		c.Translator.Primary.BaseURL = v
	}
	if v := os.Getenv("LINGOBRIDGE_SECONDARY_TRANSLATOR_URL"); v != "" {
		c.Translator.Secondary.BaseURL = v
	}
	if v := os.Getenv("LINGOBRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
