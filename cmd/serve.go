package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resmerge/internal/config"
	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/mcpserver"
	"github.com/agentic-research/resmerge/internal/nfsmount"
	"github.com/agentic-research/resmerge/internal/vfs"
)

var (
	serveNFS      string
	serveNFSMount string
	serveMCP      bool
)

func init() {
	serveCmd.Flags().StringVar(&serveNFS, "nfs", "", "Export the merged tree over NFS on this address (e.g. 127.0.0.1:2049)")
	serveCmd.Flags().StringVar(&serveNFSMount, "nfs-mount", "", "Also mount the NFS export at this directory (requires sudo)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Serve MCP tools on stdio")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merged tree over NFS and/or MCP",
	Long: `Serve exposes the configured mounts until interrupted. SIGHUP reopens
the store from the configuration file and swaps it in place; mount
definitions are read once at startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveNFS == "" && !serveMCP {
			return errors.New("nothing to serve: pass --nfs and/or --mcp")
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := ctxlog.FromContext(ctx)

		// Rebuild the host over a swappable store so SIGHUP can replace
		// the data without remounting.
		hot := graph.NewHotSwapStore(s.store)
		defer func() { _ = hot.Close() }()
		host, err := config.BuildHost(hot, s.cfg)
		if err != nil {
			return err
		}
		view := vfs.New(host)

		errc := make(chan error, 2)

		if serveNFS != "" {
			srv, err := nfsmount.NewServer(ctx, nfsmount.NewViewFS(ctx, view), serveNFS)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "NFS export on port %d\n", srv.Port())

			if serveNFSMount != "" {
				if err := nfsmount.Mount(srv.Port(), serveNFSMount); err != nil {
					return err
				}
				defer func() {
					if err := nfsmount.Unmount(serveNFSMount); err != nil {
						logger.Warn("unmount failed", "mountpoint", serveNFSMount, "error", err)
					}
				}()
			}
			go func() {
				if err := <-srv.Done(); err != nil {
					errc <- fmt.Errorf("nfs: %w", err)
				}
			}()
		}

		if serveMCP {
			mcpSrv := mcpserver.New(view)
			go func() { errc <- mcpSrv.ServeStdio(ctx) }()
		}

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				return nil
			case err := <-errc:
				return err
			case <-hup:
				if err := reloadStore(ctx, hot); err != nil {
					logger.Error("reload failed, keeping current store", "error", err)
				}
			}
		}
	},
}

// reloadStore reopens the configured store and swaps it into hot.
func reloadStore(ctx context.Context, hot *graph.HotSwapStore) error {
	cfg, err := config.Load(ctx, config.ResolvePath(configPath))
	if err != nil {
		return err
	}
	next, err := config.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	prev := hot.Swap(next)
	ctxlog.FromContext(ctx).Info("store reloaded", "driver", cfg.Store.Driver)
	return graph.CloseStore(prev)
}
