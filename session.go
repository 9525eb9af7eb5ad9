package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/contactsync/internal/config"
	"github.com/tonimelisma/contactsync/internal/contactsync"
	"github.com/tonimelisma/contactsync/internal/credfile"
	"github.com/tonimelisma/contactsync/internal/graph"
)

// errNotLoggedIn is returned when neither the config nor a credentials file
// supplies a complete app registration.
var errNotLoggedIn = errors.New("no credentials configured: run 'contactsync login' or set [auth] in the config file")

// credentials is the resolved app registration used for token acquisition.
type credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// resolveCredentials fills missing [auth] fields from the credentials file.
// Config (and environment) values win field by field.
func resolveCredentials(cfg *config.Config) (credentials, error) {
	creds := credentials{
		TenantID:     cfg.Auth.TenantID,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
	}

	if creds.TenantID != "" && creds.ClientID != "" && creds.ClientSecret != "" {
		return creds, nil
	}

	saved, err := credfile.Load(config.CredentialsPath(cfg))
	if err != nil {
		return credentials{}, err
	}

	if saved != nil {
		if creds.TenantID == "" {
			creds.TenantID = saved.TenantID
		}

		if creds.ClientID == "" {
			creds.ClientID = saved.ClientID
		}

		if creds.ClientSecret == "" {
			creds.ClientSecret = saved.ClientSecret
		}
	}

	if creds.TenantID == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return credentials{}, errNotLoggedIn
	}

	return creds, nil
}

// newGraphClient builds an authenticated Graph client and the session that
// backs it. All requests of one run share the session.
func newGraphClient(cfg *config.Config, creds credentials, logger *slog.Logger) *graph.Client {
	httpClient := &http.Client{Timeout: cfg.Network.RequestTimeoutDuration()}

	provider := graph.NewClientCredentials(creds.TenantID, creds.ClientID, creds.ClientSecret, httpClient, logger)
	session := graph.NewSession(provider, cfg.Sync.UseBatch)

	client := graph.NewClient(cfg.Network.BaseURL, httpClient, session, logger, cfg.Network.UserAgent)
	client.SetMaxRetries(cfg.Network.MaxRetries)

	return client
}

// newRunner resolves credentials and wires a contactsync.Runner from the
// effective configuration.
func newRunner(cfg *config.Config, logger *slog.Logger) (*contactsync.Runner, error) {
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	client := newGraphClient(cfg, creds, logger)

	return contactsync.NewRunner(client, client.Session(), runOptions(cfg, flagForce), logger), nil
}

// runOptions maps the effective configuration onto the engine's options.
func runOptions(cfg *config.Config, force bool) contactsync.RunOptions {
	return contactsync.RunOptions{
		SourceGroup: cfg.Source.Group,
		TargetGroup: cfg.Target.Group,
		TargetUser:  cfg.Target.User,
		Filter: contactsync.SourceFilter{
			IncludeExternal: cfg.Source.IncludeExternal,
			RequireLicense:  cfg.Source.RequireLicense,
			SyncedOnly:      cfg.Source.SyncedOnly,
			Exclude:         cfg.Source.Exclude,
		},
		UpdateExisting: cfg.Sync.UpdateExisting,
		RemoveMissing:  cfg.Sync.RemoveMissing,
		Category:       cfg.Sync.Category,
		ContactFolder:  cfg.Sync.ContactFolder,
		MaxDeletes:     cfg.Sync.MaxDeletes,
		Force:          force,
		BatchSize:      cfg.Sync.BatchSize,
		PacingDelay:    cfg.Sync.PacingDuration(),
		Cooldown:       cfg.Sync.CooldownDuration(),
		DryRun:         cfg.Sync.DryRun,
		Cleanup: contactsync.CleanupPolicy{
			PreserveCategory: cfg.Cleanup.PreserveCategory,
			RemoveCategory:   cfg.Cleanup.RemoveCategory,
			GroupByName:      cfg.Cleanup.DedupeByName,
		},
	}
}
