package config

import "time"

// Default values for configuration options. These are "layer 0" of the
// four-layer override chain.
const (
	defaultBatchSize      = 20
	defaultCategory       = "Company Contacts"
	defaultCooldown       = "5s"
	defaultPacingDelay    = "100ms"
	defaultMaxDeletes     = 0
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultBaseURL        = "https://graph.microsoft.com/v1.0"
	defaultRequestTimeout = "60s"
	defaultUserAgent      = "contactsync/dev"
	defaultMaxRetries     = 5
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Source:  defaultSourceConfig(),
		Sync:    defaultSyncConfig(),
		Cleanup: defaultCleanupConfig(),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
	}
}

func defaultSourceConfig() SourceConfig {
	return SourceConfig{
		RequireLicense: true,
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		UpdateExisting: true,
		RemoveMissing:  true,
		UseBatch:       true,
		BatchSize:      defaultBatchSize,
		Category:       defaultCategory,
		Cooldown:       defaultCooldown,
		PacingDelay:    defaultPacingDelay,
		MaxDeletes:     defaultMaxDeletes,
	}
}

func defaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		PreserveCategory: defaultCategory,
		DedupeByName:     true,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		BaseURL:        defaultBaseURL,
		RequestTimeout: defaultRequestTimeout,
		UserAgent:      defaultUserAgent,
		MaxRetries:     defaultMaxRetries,
	}
}

// CooldownDuration returns the parsed inter-user cooldown. Values are
// checked by Validate, so a parse failure falls back to the default.
func (s *SyncConfig) CooldownDuration() time.Duration {
	return durationOr(s.Cooldown, 5*time.Second)
}

// PacingDuration returns the parsed sequential request pacing delay.
func (s *SyncConfig) PacingDuration() time.Duration {
	return durationOr(s.PacingDelay, 100*time.Millisecond)
}

// RequestTimeoutDuration returns the parsed per-request HTTP timeout.
func (n *NetworkConfig) RequestTimeoutDuration() time.Duration {
	return durationOr(n.RequestTimeout, time.Minute)
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}
