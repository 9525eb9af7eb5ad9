package config

import (
	"fmt"
	"io"
	"strings"
)

// redacted replaces secrets in rendered output.
const redacted = "<redacted>"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, showing
// effective values after all four override layers have been applied.
// The client secret is never printed.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderAuthSection(ew, cfg)
	renderSourceSection(ew, &cfg.Source)
	renderTargetSection(ew, &cfg.Target)
	renderSyncSection(ew, &cfg.Sync)
	renderCleanupSection(ew, &cfg.Cleanup)
	renderLoggingSection(ew, &cfg.Logging)
	renderNetworkSection(ew, &cfg.Network)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, cfg *Config) {
	a := &cfg.Auth

	ew.printf("[auth]\n")
	ew.printf("  tenant_id        = %q\n", a.TenantID)
	ew.printf("  client_id        = %q\n", a.ClientID)

	if a.ClientSecret != "" {
		ew.printf("  client_secret    = %q\n", redacted)
	}

	ew.printf("  credentials_file = %q\n\n", CredentialsPath(cfg))
}

func renderSourceSection(ew *errWriter, s *SourceConfig) {
	ew.printf("[source]\n")
	ew.printf("  group            = %q\n", s.Group)
	ew.printf("  include_external = %t\n", s.IncludeExternal)
	ew.printf("  require_license  = %t\n", s.RequireLicense)
	ew.printf("  synced_only      = %t\n", s.SyncedOnly)

	if len(s.Exclude) > 0 {
		ew.printf("  exclude          = [%s]\n", joinQuoted(s.Exclude))
	}

	ew.printf("\n")
}

func renderTargetSection(ew *errWriter, t *TargetConfig) {
	ew.printf("[target]\n")
	ew.printf("  group = %q\n", t.Group)
	ew.printf("  user  = %q\n\n", t.User)
}

func renderSyncSection(ew *errWriter, s *SyncConfig) {
	ew.printf("[sync]\n")
	ew.printf("  update_existing = %t\n", s.UpdateExisting)
	ew.printf("  remove_missing  = %t\n", s.RemoveMissing)
	ew.printf("  use_batch       = %t\n", s.UseBatch)
	ew.printf("  batch_size      = %d\n", s.BatchSize)
	ew.printf("  category        = %q\n", s.Category)
	ew.printf("  contact_folder  = %q\n", s.ContactFolder)
	ew.printf("  cooldown        = %q\n", s.Cooldown)
	ew.printf("  pacing_delay    = %q\n", s.PacingDelay)
	ew.printf("  max_deletes     = %d\n", s.MaxDeletes)
	ew.printf("  dry_run         = %t\n\n", s.DryRun)
}

func renderCleanupSection(ew *errWriter, c *CleanupConfig) {
	ew.printf("[cleanup]\n")
	ew.printf("  preserve_category = %q\n", c.PreserveCategory)
	ew.printf("  remove_category   = %q\n", c.RemoveCategory)
	ew.printf("  dedupe_by_name    = %t\n", c.DedupeByName)
	ew.printf("  folder_name       = %q\n\n", c.FolderName)
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n\n", l.LogFormat)
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  base_url        = %q\n", n.BaseURL)
	ew.printf("  request_timeout = %q\n", n.RequestTimeout)
	ew.printf("  user_agent      = %q\n", n.UserAgent)
	ew.printf("  max_retries     = %d\n", n.MaxRetries)
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(quoted, ", ")
}
