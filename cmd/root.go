package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resmerge/api"
	"github.com/agentic-research/resmerge/internal/config"
	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/provider"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to resmerge.hcl (default $RESMERGE_CONFIG or ./resmerge.hcl)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

var rootCmd = &cobra.Command{
	Use:           "resmerge",
	Short:         "Resmerge: merged read-only views over a resource tree",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger writes text logs to w at the named level.
func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ctxlog.ParseLevel(level)}))
}

// loggerContext attaches a logger to the command context. The --log-level
// flag wins over fallback.
func loggerContext(cmd *cobra.Command, fallback string) context.Context {
	level := fallback
	if logLevel != "" {
		level = logLevel
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctxlog.WithLogger(ctx, newLogger(cmd.ErrOrStderr(), level))
}

// session is what every read command needs: the configuration, the
// physical store and the host serving the configured mounts.
type session struct {
	ctx   context.Context
	cfg   *api.Config
	store graph.Store
	host  *provider.Host
}

func (s *session) Close() error {
	return graph.CloseStore(s.store)
}

// openSession loads the configuration, opens the store and mounts the
// configured views.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx := loggerContext(cmd, os.Getenv(config.EnvLogLevel))

	cfg, err := config.Load(ctx, config.ResolvePath(configPath))
	if err != nil {
		return nil, err
	}
	ctx = loggerContext(cmd, cfg.LogLevel)

	store, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	host, err := config.BuildHost(store, cfg)
	if err != nil {
		_ = graph.CloseStore(store)
		return nil, err
	}
	return &session{ctx: ctx, cfg: cfg, store: store, host: host}, nil
}
