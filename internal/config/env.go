package config

import (
	"log/slog"
	"os"
)

// Environment variable names for overrides.
const (
	EnvConfig       = "CONTACTSYNC_CONFIG"
	EnvTenantID     = "CONTACTSYNC_TENANT_ID"
	EnvClientID     = "CONTACTSYNC_CLIENT_ID"
	EnvClientSecret = "CONTACTSYNC_CLIENT_SECRET"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // CONTACTSYNC_CONFIG: override config file path
	TenantID     string // CONTACTSYNC_TENANT_ID
	ClientID     string // CONTACTSYNC_CLIENT_ID
	ClientSecret string // CONTACTSYNC_CLIENT_SECRET
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	env := EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		TenantID:     os.Getenv(EnvTenantID),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}

	logger.Debug("read environment overrides",
		slog.String("config_path", env.ConfigPath),
		slog.String("tenant_id", env.TenantID),
		slog.String("client_id", env.ClientID),
		slog.Bool("client_secret_set", env.ClientSecret != ""),
	)

	return env
}
