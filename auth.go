package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/contactsync/internal/config"
	"github.com/tonimelisma/contactsync/internal/credfile"
)

var (
	flagLoginTenant string
	flagLoginClient string
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify and save app registration credentials",
		Long: `Verify an Entra ID app registration by acquiring an app-only token and
reading the organization profile, then save the credentials for later runs.

The client secret is read from CONTACTSYNC_CLIENT_SECRET or, when unset,
from standard input.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&flagLoginTenant, "tenant-id", "", "tenant id or verified domain")
	cmd.Flags().StringVar(&flagLoginClient, "client-id", "", "application (client) id")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved credentials",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	creds := credentials{
		TenantID:     firstNonEmpty(flagLoginTenant, cfg.Auth.TenantID),
		ClientID:     firstNonEmpty(flagLoginClient, cfg.Auth.ClientID),
		ClientSecret: cfg.Auth.ClientSecret,
	}

	if creds.TenantID == "" || creds.ClientID == "" {
		return errors.New("--tenant-id and --client-id are required")
	}

	if _, err := uuid.Parse(creds.ClientID); err != nil {
		return fmt.Errorf("client id %q is not a valid GUID", creds.ClientID)
	}

	if creds.ClientSecret == "" {
		secret, err := readSecret(os.Stdin, isatty.IsTerminal(os.Stdin.Fd()))
		if err != nil {
			return err
		}

		creds.ClientSecret = secret
	}

	logger.Info("login started", "tenant_id", creds.TenantID, "client_id", creds.ClientID)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Network.RequestTimeoutDuration())
	defer cancel()

	client := newGraphClient(cfg, creds, logger)

	orgID, orgName, err := client.Organization(ctx)
	if err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}

	path := config.CredentialsPath(cfg)

	err = credfile.Save(path, &credfile.File{
		TenantID:     creds.TenantID,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Meta: map[string]string{
			"tenant_name": orgName,
			"org_id":      orgID,
			"verified_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return err
	}

	logger.Info("login successful", "tenant_name", orgName, "path", path)
	statusf("Logged in to %s. Credentials saved to %s\n", orgName, path)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	path := config.CredentialsPath(resolvedCfg)

	existed, err := credfile.Remove(path)
	if err != nil {
		return err
	}

	if !existed {
		statusf("No saved credentials at %s\n", path)
		return nil
	}

	logger.Info("logout successful", "path", path)
	statusf("Logged out. Removed %s\n", path)

	return nil
}

// readSecret reads a single line from r. The prompt is shown only when r is
// an interactive terminal so piped input stays quiet.
func readSecret(r io.Reader, interactive bool) (string, error) {
	if interactive {
		fmt.Fprint(os.Stderr, "Client secret: ")
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading client secret: %w", err)
	}

	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("client secret is required")
	}

	return secret, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
