package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resmerge/internal/sqlview"
)

func init() {
	rootCmd.AddCommand(sqlCmd)
}

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Query merged children with SQL",
	Long: `The query runs against an in-memory SQLite database holding one virtual
table, "children", with the columns parent, name, path, type, super_type,
ord and merged. Constrain parent to list one resource:

  resmerge sql "SELECT name, type FROM children WHERE parent = '/virtual/page' ORDER BY ord"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		db, err := sqlview.Open(s.ctx, s.host)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		res, err := db.Query(s.ctx, args[0])
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				if v != nil {
					cells[i] = fmt.Sprint(v)
				}
			}
			_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		return tw.Flush()
	},
}
