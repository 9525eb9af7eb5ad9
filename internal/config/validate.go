package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation range constants.
const (
	minBatchSize      = 1
	maxBatchSize      = 20 // Graph $batch limit
	minMaxRetries     = 1
	maxMaxRetries     = 10
	maxCooldown       = 10 * time.Minute
	maxPacingDelay    = 10 * time.Second
	minRequestTimeout = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateSource(&cfg.Source)...)
	errs = append(errs, validateTarget(&cfg.Target)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateCleanup(&cfg.Cleanup)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.ClientID != "" {
		if _, err := uuid.Parse(a.ClientID); err != nil {
			errs = append(errs, fmt.Errorf("client_id: must be an application (client) id GUID, got %q", a.ClientID))
		}
	}

	if a.TenantID != "" && !validTenant(a.TenantID) {
		errs = append(errs, fmt.Errorf("tenant_id: must be a directory id GUID or a verified domain, got %q", a.TenantID))
	}

	return errs
}

// validTenant accepts a tenant GUID or a domain name such as
// contoso.onmicrosoft.com.
func validTenant(tenant string) bool {
	if _, err := uuid.Parse(tenant); err == nil {
		return true
	}

	return strings.Contains(tenant, ".") && !strings.ContainsAny(tenant, "/ @")
}

func validateSource(s *SourceConfig) []error {
	var errs []error

	if s.Group != "" {
		if _, err := uuid.Parse(s.Group); err != nil {
			errs = append(errs, fmt.Errorf("source.group: must be a group object id, got %q", s.Group))
		}
	}

	for _, addr := range s.Exclude {
		if !strings.Contains(addr, "@") {
			errs = append(errs, fmt.Errorf("source.exclude: %q is not an email address", addr))
		}
	}

	return errs
}

func validateTarget(t *TargetConfig) []error {
	var errs []error

	if t.Group != "" && t.User != "" {
		errs = append(errs, errors.New("target: group and user are mutually exclusive"))
	}

	if t.Group != "" {
		if _, err := uuid.Parse(t.Group); err != nil {
			errs = append(errs, fmt.Errorf("target.group: must be a group object id, got %q", t.Group))
		}
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if s.BatchSize < minBatchSize || s.BatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("batch_size: must be between %d and %d, got %d",
			minBatchSize, maxBatchSize, s.BatchSize))
	}

	if strings.TrimSpace(s.Category) == "" {
		errs = append(errs, errors.New("category: must not be empty"))
	}

	if s.MaxDeletes < 0 {
		errs = append(errs, fmt.Errorf("max_deletes: must be >= 0 (0 disables the limit), got %d", s.MaxDeletes))
	}

	errs = append(errs, validateDurationRange("cooldown", s.Cooldown, 0, maxCooldown)...)
	errs = append(errs, validateDurationRange("pacing_delay", s.PacingDelay, 0, maxPacingDelay)...)

	return errs
}

func validateCleanup(c *CleanupConfig) []error {
	var errs []error

	if c.RemoveCategory != "" && c.RemoveCategory == c.PreserveCategory {
		errs = append(errs, fmt.Errorf("cleanup: preserve_category and remove_category must differ, both are %q",
			c.RemoveCategory))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	u, err := url.Parse(n.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		errs = append(errs, fmt.Errorf("base_url: must be an absolute http(s) URL, got %q", n.BaseURL))
	}

	if n.MaxRetries < minMaxRetries || n.MaxRetries > maxMaxRetries {
		errs = append(errs, fmt.Errorf("max_retries: must be between %d and %d, got %d",
			minMaxRetries, maxMaxRetries, n.MaxRetries))
	}

	if d, err := time.ParseDuration(n.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("request_timeout: invalid duration %q: %w", n.RequestTimeout, err))
	} else if d < minRequestTimeout {
		errs = append(errs, fmt.Errorf("request_timeout: must be >= %s, got %s", minRequestTimeout, n.RequestTimeout))
	}

	return errs
}

// validateDurationRange checks that a duration string parses and falls
// within [minimum, maximum].
func validateDurationRange(field, value string, minimum, maximum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum || d > maximum {
		return []error{fmt.Errorf("%s: must be between %s and %s, got %s", field, minimum, maximum, value)}
	}

	return nil
}
