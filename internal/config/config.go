// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for contactsync. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Every setting lives in a named section.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	Source  SourceConfig  `toml:"source"`
	Target  TargetConfig  `toml:"target"`
	Sync    SyncConfig    `toml:"sync"`
	Cleanup CleanupConfig `toml:"cleanup"`
	Logging LoggingConfig `toml:"logging"`
	Network NetworkConfig `toml:"network"`
}

// AuthConfig identifies the app registration used for client-credentials
// token acquisition. Any field left empty falls back to the credentials
// file written by "contactsync login".
type AuthConfig struct {
	TenantID        string `toml:"tenant_id"`
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	CredentialsFile string `toml:"credentials_file"`
}

// SourceConfig selects the directory entries that become contacts.
type SourceConfig struct {
	Group           string   `toml:"group"` // group object id; empty = all users
	IncludeExternal bool     `toml:"include_external"`
	RequireLicense  bool     `toml:"require_license"`
	SyncedOnly      bool     `toml:"synced_only"`
	Exclude         []string `toml:"exclude"`
}

// TargetConfig selects the mailboxes that receive contacts. Empty group and
// user means the source set itself.
type TargetConfig struct {
	Group string `toml:"group"`
	User  string `toml:"user"` // id or UPN of a single target
}

// SyncConfig controls reconciliation policy and request pacing.
type SyncConfig struct {
	UpdateExisting bool   `toml:"update_existing"`
	RemoveMissing  bool   `toml:"remove_missing"`
	UseBatch       bool   `toml:"use_batch"`
	BatchSize      int    `toml:"batch_size"`
	Category       string `toml:"category"`
	ContactFolder  string `toml:"contact_folder"`
	Cooldown       string `toml:"cooldown"`
	PacingDelay    string `toml:"pacing_delay"`
	MaxDeletes     int    `toml:"max_deletes"`
	DryRun         bool   `toml:"dry_run"`
}

// CleanupConfig controls the duplicate and stale-category cleanup command
// and the folder deletion command.
type CleanupConfig struct {
	PreserveCategory string `toml:"preserve_category"`
	RemoveCategory   string `toml:"remove_category"`
	DedupeByName     bool   `toml:"dedupe_by_name"`
	FolderName       string `toml:"folder_name"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	MaxRetries     int    `toml:"max_retries"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value" because --dry-run=false is different
// from not passing --dry-run at all.
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	DryRun     *bool   // --dry-run flag
	TargetUser *string // --target-user flag
}
