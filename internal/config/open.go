package config

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/resmerge/api"
	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/ingest"
	"github.com/agentic-research/resmerge/internal/merge"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/provider"
)

// OpenStore opens the configured physical store. Configured search paths
// replace the ones the store reports. Release it with graph.CloseStore.
func OpenStore(ctx context.Context, cfg *api.Config) (graph.Store, error) {
	logger := ctxlog.FromContext(ctx)
	sc := cfg.Store

	var store graph.Store
	switch sc.Driver {
	case "memory":
		mem := graph.NewMemoryStore()
		if sc.DSN != "" {
			if _, err := ingest.LoadFile(ctx, sc.DSN, "", ingest.MemoryTarget(mem)); err != nil {
				return nil, fmt.Errorf("preload %s: %w", sc.DSN, err)
			}
		}
		store = mem
	case "sqlite":
		s, err := graph.OpenSQLiteStore(sc.DSN)
		if err != nil {
			return nil, err
		}
		store = s
	case "postgres":
		s, err := graph.OpenPostgresStore(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		store = s
	case "s3":
		s3c := sc.S3
		if s3c == nil {
			return nil, ErrNoS3
		}
		src, err := ingest.NewS3Source(ingest.S3Config{
			Endpoint:  s3c.Endpoint,
			Region:    s3c.Region,
			AccessKey: s3c.AccessKey,
			SecretKey: s3c.SecretKey,
			UseSSL:    s3c.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		mem := graph.NewMemoryStore()
		if _, err := src.LoadObject(ctx, sc.DSN, "", ingest.MemoryTarget(mem)); err != nil {
			return nil, fmt.Errorf("load %s: %w", sc.DSN, err)
		}
		store = mem
	case "dir":
		s, err := graph.NewBillyStore(osfs.New(sc.DSN), nil)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("%w %q", ErrBadDriver, sc.Driver)
	}

	if len(cfg.SearchPaths) > 0 {
		store = graph.WithSearchPaths(store, normalizeAll(cfg.SearchPaths))
	}
	logger.Info("store opened", "driver", sc.Driver, "search_paths", store.SearchPaths())
	return store, nil
}

// BuildHost creates a host over store and mounts every configured view.
func BuildHost(store graph.Store, cfg *api.Config) (*provider.Host, error) {
	var opts []merge.Option
	if cfg.Directives != nil && cfg.Directives.Prefix != "" {
		opts = append(opts, merge.WithDirectives(merge.DirectivesWithPrefix(cfg.Directives.Prefix)))
	}
	host := provider.NewHost(store, opts...)

	for _, m := range cfg.Mounts {
		var source provider.BasePathSource = provider.FixedPaths(m.BasePaths)
		if m.UseSearchPaths {
			source = provider.SearchPaths(store)
		}
		if _, err := host.Mount(m.Root, source); err != nil {
			return nil, err
		}
	}
	if cfg.VirtualRoot != "" {
		if _, err := host.MountVirtual(cfg.VirtualRoot); err != nil {
			return nil, err
		}
	}
	return host, nil
}

func normalizeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = pathutil.Normalize("/" + p)
	}
	return out
}
