// Package commands holds the cobra command tree of the bugtracker CLI.
package commands

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/api"
	"github.com/nhle/bugtracker/internal/app"
	"github.com/nhle/bugtracker/internal/credential"
	"github.com/nhle/bugtracker/internal/logging"
	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/session"
	"github.com/nhle/bugtracker/internal/store"
	appsync "github.com/nhle/bugtracker/internal/sync"
	"github.com/nhle/bugtracker/internal/theme"
	"github.com/nhle/bugtracker/internal/tracker"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	apiURL     string
	debug      bool
}

// runtime is everything a command needs once configuration is loaded.
type runtime struct {
	cfg      *model.AppConfig
	log      *zap.Logger
	sessions *session.Manager
	svc      *tracker.Service
	backend  interface{ Close() error }
}

func (rt *runtime) close() {
	if rt.backend != nil {
		if err := rt.backend.Close(); err != nil {
			rt.log.Warn("closing session backend", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}

// runFunc is a command body that runs with an open runtime.
type runFunc func(cmd *cobra.Command, rt *runtime, args []string) error

// NewRootCommand builds the full command tree. Running it without a
// subcommand starts the terminal UI.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "bugtracker",
		Short: "Terminal client for the bug tracking service",
		Long: `bugtracker talks to the bug tracking REST API.

Run it without arguments for the interactive interface, or use the
subcommands below from scripts.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         opts.with(runTUI),
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the config file")
	flags.StringVar(&opts.apiURL, "api-url", "", "override the API base URL")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(authCommands(opts)...)
	rootCmd.AddCommand(bugCommands(opts))
	rootCmd.AddCommand(configCommands(opts))

	return rootCmd
}

// with wraps fn so it receives a runtime that is closed afterwards.
func (o *options) with(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := o.open(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, rt, args)
	}
}

func (o *options) open(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log, o.debug)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(cfg.Session)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	sessions := session.NewManager(backend, session.WithLogger(log.Named("session")))
	rt := &runtime{cfg: cfg, log: log, sessions: sessions, backend: backend}

	if err := sessions.Load(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("loading session: %w", err)
	}

	client := api.New(cfg.API.BaseURL, sessions, api.WithLogger(log.Named("api")))
	rt.svc = tracker.New(client, sessions, log.Named("tracker"))

	log.Debug("runtime ready",
		zap.String("api", cfg.API.BaseURL),
		zap.String("session_backend", cfg.Session.Backend),
	)
	return rt, nil
}

type sessionBackend interface {
	session.Backend
	Close() error
}

func openBackend(cfg model.SessionConfig) (sessionBackend, error) {
	switch cfg.Backend {
	case model.SessionBackendKeyring:
		ring, err := credential.Open(model.ConfigDir())
		if err != nil {
			return nil, fmt.Errorf("opening keyring: %w", err)
		}
		return ring, nil
	default:
		db, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return db, nil
	}
}

func runTUI(cmd *cobra.Command, rt *runtime, _ []string) error {
	if err := theme.Apply(rt.cfg.Display.Theme); err != nil {
		return err
	}

	watcher := appsync.New(rt.sessions, appsync.DefaultInterval, rt.log.Named("watcher"))
	defer watcher.Stop()

	p := tea.NewProgram(
		app.New(rt.svc, watcher),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// requireLogin fails early with the message the API would give.
func requireLogin(rt *runtime) error {
	if !rt.sessions.Authenticated() {
		return errors.New("not signed in: run `bugtracker login` first")
	}
	return nil
}
