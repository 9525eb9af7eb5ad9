package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/contactsync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfig(os.Stdout, resolvedCfg, flagJSON)
		},
	}
}

func showConfig(w io.Writer, cfg *config.Config, asJSON bool) error {
	if cfg == nil {
		return errors.New("no configuration loaded")
	}

	if asJSON {
		redactedCfg := *cfg
		if redactedCfg.Auth.ClientSecret != "" {
			redactedCfg.Auth.ClientSecret = "<redacted>"
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(redactedCfg)
	}

	return config.RenderEffective(cfg, w)
}
