package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/devserver"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, token string
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory journal server (development and demos)",
		Long: strings.TrimSpace(`
Run an in-memory journal server that speaks the same HTTP API the client uses.

State lives in memory only and is gone when the process exits.
`),
		Example: strings.TrimSpace(`
# Serve sample data on localhost and point the client at it
bulletjournal serve --seed --addr 127.0.0.1:8080
bulletjournal --server http://127.0.0.1:8080 projects list
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			var opts []devserver.Option
			if token != "" {
				opts = append(opts, devserver.WithToken(token))
			}
			srv := devserver.New(app.log, opts...)
			if seed {
				if err := srv.Seed(); err != nil {
					return writeErr(cmd, err)
				}
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"seeded":    seed,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Journal server running at %s\n", url)

			return http.Serve(ln, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&token, "require-token", "", "Require this bearer token on every request")
	cmd.Flags().BoolVar(&seed, "seed", false, "Load sample projects, tasks and notes")
	return cmd
}
