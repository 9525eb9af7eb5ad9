// Package testutil provides shared environment helpers for integration tests
// that run against a live Entra ID tenant. It depends only on stdlib.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedTenantsEnvVar lists the tenants integration tests may write to.
const AllowedTenantsEnvVar = "CONTACTSYNC_ALLOWED_TEST_TENANTS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// TenantAllowed reports whether tenant appears in the comma-separated
// allowlist. An empty allowlist allows nothing.
func TenantAllowed(allowlist, tenant string) bool {
	if tenant == "" {
		return false
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.EqualFold(strings.TrimSpace(a), tenant) {
			return true
		}
	}

	return false
}

// ValidateAllowlist crashes the process unless the tenant named by
// tenantEnvVar is listed in CONTACTSYNC_ALLOWED_TEST_TENANTS. Tests that
// write contacts must never run against a production tenant by accident.
func ValidateAllowlist(tenantEnvVar string) {
	allowlist := os.Getenv(AllowedTenantsEnvVar)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", AllowedTenantsEnvVar)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=contoso-test.onmicrosoft.com\n", AllowedTenantsEnvVar)
		os.Exit(1)
	}

	tenant := os.Getenv(tenantEnvVar)
	if !TenantAllowed(allowlist, tenant) {
		fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n",
			tenantEnvVar, tenant, AllowedTenantsEnvVar, allowlist)
		os.Exit(1)
	}
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
