package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tordrt/schemacache/internal/cache"
	"github.com/tordrt/schemacache/internal/formatter"
	"github.com/tordrt/schemacache/internal/schema"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		outputFile     string
		outputDir      string
		exclude        string
		format         string
		splitThreshold int
	)

	cmd := &cobra.Command{
		Use:   "show [tables...]",
		Short: "Print table schemas, inferring and caching them as needed",
		Long: `Print the normalized schema of each table. Tables default to every base table in the
database. Overrides found in the overrides directory are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}
			if format != formatter.FormatText && format != formatter.FormatMarkdown {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", format)
			}

			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			tables := tableArgs(args)
			if len(tables) == 0 {
				if tables, err = a.inferrer.ListTables(ctx, conn); err != nil {
					return fmt.Errorf("failed to list tables: %w", err)
				}
			}
			tables = filterExcludedTables(tables, parseTableList(exclude))

			schemas := make([]schema.Schema, 0, len(tables))
			for _, table := range tables {
				s, err := a.inferrer.Schema(ctx, conn, table, nil)
				if err != nil {
					return fmt.Errorf("failed to infer %s: %w", table, err)
				}
				schemas = append(schemas, s)
			}

			if outputDir != "" && (splitThreshold == 0 || len(schemas) > splitThreshold) {
				f := formatter.NewMultiFileFormatter(afero.NewOsFs(), outputDir, format)
				if err := f.Format(schemas); err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				return nil
			}

			w := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close output file: %v\n", err)
					}
				}()
				w = f
			}

			var out formatter.Formatter = formatter.NewTextFormatter(w)
			if format == formatter.FormatMarkdown {
				out = formatter.NewMarkdownFormatter(w)
			}
			if err := out.Format(schemas); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	cmd.Flags().StringVarP(&exclude, "exclude", "x", "", "Tables to skip (comma-separated)")
	cmd.Flags().StringVarP(&format, "format", "f", formatter.FormatText, "Output format: text or markdown")
	cmd.Flags().IntVar(&splitThreshold, "split-threshold", 0, "Split into multiple files when table count exceeds this (requires --output-dir)")
	return cmd
}

func newWarmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [tables...]",
		Short: "Populate the cache for tables whose entries are missing or stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			results, err := a.inferrer.WarmUp(cmd.Context(), conn, tableArgs(args))
			if err != nil {
				return err
			}
			printResults(cmd.OutOrStdout(), results)
			return results.Err()
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [tables...]",
		Short: "Recompile tables even when their cache entries are fresh",
		Long:  `Recompile the given tables, or every table cached for the connection when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			results := a.inferrer.Refresh(cmd.Context(), conn, tableArgs(args))
			printResults(cmd.OutOrStdout(), results)
			return results.Err()
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := a.inferrer.ClearAll(); err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), statusCleared, "all connections")
				return nil
			}

			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			if err := a.inferrer.Clear(conn); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), statusCleared, conn.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every connection")
	return cmd
}

func newDigestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Print the migration digest that validates the connection's cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			digest, err := a.inferrer.Digest(conn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}
}

// tableArgs accepts both "a b" and "a,b"
func tableArgs(args []string) []string {
	var tables []string
	for _, arg := range args {
		tables = append(tables, parseTableList(arg)...)
	}
	return tables
}

func parseTableList(tablesStr string) []string {
	if tablesStr == "" {
		return nil
	}
	var tables []string
	for _, t := range strings.Split(tablesStr, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

func filterExcludedTables(tables, excludeList []string) []string {
	if len(excludeList) == 0 {
		return tables
	}
	excluded := make(map[string]bool, len(excludeList))
	for _, name := range excludeList {
		excluded[name] = true
	}

	filtered := make([]string, 0, len(tables))
	for _, table := range tables {
		if !excluded[table] {
			filtered = append(filtered, table)
		}
	}
	return filtered
}

// resultStatus is the status word printed for a warmed table
func resultStatus(res cache.Result) string {
	switch {
	case res.Err != nil:
		return statusFailed
	case res.Cached:
		return statusCached
	default:
		return statusCompiled
	}
}
