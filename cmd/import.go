package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resmerge/internal/config"
	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/ingest"
)

var (
	importSelect string
	importDriver string
	importAppend bool
)

func init() {
	importCmd.Flags().StringVar(&importSelect, "select", "", "JSONPath selecting content documents inside the input (default: whole file)")
	importCmd.Flags().StringVar(&importDriver, "driver", "sqlite", "Output driver: sqlite or postgres")
	importCmd.Flags().BoolVar(&importAppend, "append", false, "Keep an existing sqlite database instead of replacing it")

	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <content.json> <output>",
	Short: "Import a content document into a SQLite file or a Postgres database",
	Long: `Import reads a JSON content document and writes it into a store that
"resmerge" can serve. <output> is a file path for sqlite and a DSN for
postgres. Postgres imports run in one transaction.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, output := args[0], args[1]
		ctx := loggerContext(cmd, os.Getenv(config.EnvLogLevel))
		logger := ctxlog.FromContext(ctx)
		start := time.Now()

		var stats ingest.Stats
		switch importDriver {
		case "sqlite":
			if !importAppend {
				_ = os.Remove(output) // Overwrite
			}
			writer, err := ingest.NewSQLiteWriter(output)
			if err != nil {
				return err
			}
			stats, err = ingest.LoadFile(ctx, source, importSelect, writer)
			if cerr := writer.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
		case "postgres":
			writer, err := ingest.NewPostgresWriter(ctx, output)
			if err != nil {
				return err
			}
			stats, err = ingest.LoadFile(ctx, source, importSelect, writer)
			if err != nil {
				_ = writer.Rollback(ctx)
				return err
			}
			if err := writer.Commit(ctx); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import driver %q (want sqlite or postgres)", importDriver)
		}

		logger.Info("import finished", "source", source, "driver", importDriver, "nodes", stats.Nodes, "elapsed", time.Since(start))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes from %s in %v.\n", stats.Nodes, source, time.Since(start).Round(time.Millisecond))
		return nil
	},
}
