package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bulletjournal-cli/internal/api"
	"bulletjournal-cli/internal/format"
	"bulletjournal-cli/internal/store"
	"bulletjournal-cli/internal/tasksync"
)

type App struct {
	Server     string
	Token      string
	Dir        string
	Timezone   string
	PageSize   int
	PrettyJSON bool
	Format     string
	Debug      bool

	cfg      store.Config
	log      *log.Logger
	errOut   io.Writer
	notified bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "bulletjournal",
		Short:         "Bullet journal CLI + TUI for a remote journal server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Browse a project's tasks interactively
  bulletjournal tui 12

  # Scriptable commands
  bulletjournal tasks list 12
  bulletjournal tasks complete 345 --from today

  # Local server with sample data
  bulletjournal serve --seed
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.Server, "server", envOr("BULLETJOURNAL_SERVER", ""), "Journal server base URL (default from config)")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr("BULLETJOURNAL_TOKEN", ""), "Bearer token")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("BULLETJOURNAL_DIR", ""), "Session cache dir (default from config)")
	cmd.PersistentFlags().StringVar(&app.Timezone, "tz", envOr("BULLETJOURNAL_TIMEZONE", ""), "Timezone for date-windowed queries")
	cmd.PersistentFlags().IntVar(&app.PageSize, "page-size", 0, "Completed tasks page size (default from config)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("BULLETJOURNAL_FORMAT", "json"), "Output format (json|text)")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", envOr("BULLETJOURNAL_DEBUG", "") != "", "Debug logging to stderr")

	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newCompletedCmd(app))
	cmd.AddCommand(newViewsCmd(app))
	cmd.AddCommand(newContentsCmd(app))
	cmd.AddCommand(newNotesCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newSessionCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup merges config file, environment and flags. Flags win.
func (a *App) setup(cmd *cobra.Command) error {
	a.errOut = cmd.ErrOrStderr()
	a.log = log.New()
	a.log.SetOutput(a.errOut)
	a.log.SetLevel(log.WarnLevel)
	if a.Debug {
		a.log.SetLevel(log.DebugLevel)
	}

	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, fmt.Errorf("config: %w", err))
	}
	if a.Server != "" {
		cfg.Server = strings.TrimRight(a.Server, "/")
	}
	if a.Token != "" {
		cfg.Token = a.Token
	}
	if a.Dir != "" {
		cfg.Dir = a.Dir
	}
	if a.Timezone != "" {
		cfg.Timezone = a.Timezone
	}
	if a.PageSize > 0 {
		cfg.CompletedPageSize = a.PageSize
	}
	a.cfg = cfg
	return nil
}

// Notify prints engine notices on stderr; they already carry the intent category.
func (a *App) Notify(n tasksync.Notice) {
	a.notified = true
	c := color.New(color.FgRed)
	if n.Level == tasksync.LevelInfo {
		c = color.New(color.Faint)
	}
	_, _ = c.Fprintln(a.errOut, n.String())
}

func (a *App) client() *api.Client {
	return api.New(a.cfg.Server, a.cfg.Token, api.WithLogger(a.log))
}

func (a *App) newEngine(n tasksync.Notifier) *tasksync.Engine {
	return tasksync.New(a.client(),
		tasksync.WithNotifier(n),
		tasksync.WithLogger(a.log),
		tasksync.WithPageSize(a.cfg.CompletedPageSize),
	)
}

// withEngine restores the saved session, runs fn and saves the session again, also on failure.
func withEngine(cmd *cobra.Command, app *App, fn func(ctx context.Context, e *tasksync.Engine) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, save := app.openSession(ctx, app)
	out, runErr := fn(ctx, e)
	save()
	if runErr != nil {
		return app.fail(cmd, runErr)
	}
	if out == nil {
		return nil
	}
	return writeOut(cmd, app, map[string]any{"data": out})
}

// openSession builds an engine restored from the session cache. save writes the engine's
// state back and closes the backend; failures there are logged and otherwise ignored.
func (a *App) openSession(ctx context.Context, n tasksync.Notifier) (e *tasksync.Engine, save func()) {
	sessions := store.Open(a.cfg)
	e = a.newEngine(n)
	sess, ok, err := sessions.LoadSession(ctx)
	if err != nil {
		a.log.WithError(err).Warn("ignoring unreadable session cache")
		ok = false
	}
	if !ok {
		sess.Selection = store.DefaultSelection(a.cfg.Timezone)
	}
	e.Restore(sess)
	return e, func() {
		defer sessions.Close()
		if err := sessions.SaveSession(ctx, e.Export()); err != nil {
			a.log.WithError(err).Warn("could not save session cache")
		}
	}
}

// fail prints err unless the engine has already shown it as a notice.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if a.notified || errors.Is(err, tasksync.ErrSuperseded) {
		return reportedError{err: err}
	}
	return writeErr(cmd, err)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return reportedError{err: err}
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidIDError{kind: kind, value: s}
	}
	return id, nil
}

func parseIDs(kind string, args []string) ([]int64, error) {
	out := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(kind, a)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
