package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/store"
)

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the cached client session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := store.Open(app.cfg)
			defer s.Close()
			sess, ok, err := s.LoadSession(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sess, "saved": ok})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every cached collection, page and view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := store.Open(app.cfg)
			defer s.Close()
			if err := s.ClearSession(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"cleared": true}})
		},
	})
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save client configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (token redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if cfg.Token != "" {
				cfg.Token = strings.Repeat("*", 8)
			}
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{"data": cfg, "path": path})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write the effective configuration (flags included) to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.SaveConfig(app.cfg); err != nil {
				return writeErr(cmd, err)
			}
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": path}})
		},
	})
	return cmd
}
