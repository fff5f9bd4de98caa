package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
	"github.com/agentic-research/resmerge/internal/provider"
	"github.com/agentic-research/resmerge/internal/vfs"
)

var (
	lsLong    bool
	treeDepth int
	findType  string
)

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "Show resource type and resolution path")
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 0, "Maximum depth (0 = unlimited)")
	findCmd.Flags().StringVarP(&findType, "type", "t", "", "Resource type or super type to match")
	_ = findCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(lsCmd, showCmd, treeCmd, findCmd)
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the children of a resource in merged order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		res, err := resolve(s.ctx, s.host, pathArg(args))
		if err != nil {
			return err
		}
		kids, err := s.host.ListChildren(s.ctx, res)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range kids {
			if !lsLong {
				_, _ = fmt.Fprintln(out, pathutil.Name(k.Path()))
				continue
			}
			typ := k.ResourceType()
			if typ == "" {
				typ = "-"
			}
			_, _ = fmt.Fprintf(out, "%-24s %-24s %s\n", pathutil.Name(k.Path()), typ, k.Metadata().ResolutionPath)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print a resource as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		res, err := resolve(s.ctx, s.host, args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(vfs.DescribeJSON(res))
		return err
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the merged subtree below a resource",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		res, err := resolve(s.ctx, s.host, pathArg(args))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, res.Path())
		return printTree(s.ctx, out, s.host, res, 1)
	},
}

var findCmd = &cobra.Command{
	Use:   "find --type <type> [path]",
	Short: "Print the paths of resources of a type, optionally below a path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		found, err := s.host.FindByType(s.ctx, findType)
		if err != nil {
			return err
		}
		under := pathArg(args)
		out := cmd.OutOrStdout()
		for _, res := range found {
			if pathutil.IsUnder(res.Path(), under) {
				_, _ = fmt.Fprintln(out, res.Path())
			}
		}
		return nil
	},
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func resolve(ctx context.Context, host *provider.Host, path string) (graph.Resource, error) {
	res, err := host.GetResource(ctx, path)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: %w", path, graph.ErrNotFound)
	}
	return res, nil
}

func printTree(ctx context.Context, w io.Writer, host *provider.Host, res graph.Resource, depth int) error {
	if treeDepth > 0 && depth > treeDepth {
		return nil
	}
	kids, err := host.ListChildren(ctx, res)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	for _, k := range kids {
		line := indent + pathutil.Name(k.Path())
		if t := k.ResourceType(); t != "" {
			line += " [" + t + "]"
		}
		_, _ = fmt.Fprintln(w, line)
		if err := printTree(ctx, w, host, k, depth+1); err != nil {
			return err
		}
	}
	return nil
}
