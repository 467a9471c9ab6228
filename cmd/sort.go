// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/bigsort/config"
	"github.com/cardinalhq/bigsort/internal/extsort"
)

func init() {
	rootCmd.AddCommand(newSortCmd())
}

func newSortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort the numbers in a file",
		Long: `Reads whitespace or comma separated numbers from --input ("-" for stdin)
and writes them in ascending order to --output ("-" for stdout).
Tokens that are not numbers are dropped and counted.`,
		RunE: func(c *cobra.Command, _ []string) error {
			input, err := c.Flags().GetString("input")
			if err != nil {
				return fmt.Errorf("failed to get input flag: %w", err)
			}
			output, err := c.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := applySortFlags(c.Flags(), &cfg.Sort); err != nil {
				return err
			}

			return withTelemetry("bigsort-sort", func(ctx context.Context) error {
				return runSort(ctx, cfg.Sort, input, output)
			})
		},
	}

	cmd.Flags().String("input", "", "Input file, or - for stdin")
	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Errorf("failed to mark input flag as required: %w", err))
	}
	cmd.Flags().String("output", "", "Output file, or - for stdout")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(fmt.Errorf("failed to mark output flag as required: %w", err))
	}

	defaults := config.DefaultSortConfig()
	cmd.Flags().Int("chunk-size", defaults.ChunkSizeBytes, "Target chunk size in bytes")
	cmd.Flags().Int("workers", defaults.WorkerCount, "Number of sort workers (0 for GOMAXPROCS)")
	cmd.Flags().Int("queue-depth", defaults.QueueDepth, "Chunks buffered for workers (0 for 2x workers, negative for unbounded)")
	cmd.Flags().String("tmp-dir", defaults.TmpDir, "Directory for spill files (default: system temp dir)")
	cmd.Flags().String("spill-format", defaults.SpillFormat, "Spill file format: text or cbor")
	cmd.Flags().String("output-format", defaults.OutputFormat, "Output format: text or parquet")
	cmd.Flags().String("delimiter", defaults.OutputDelimiter, "Delimiter written after each value in text output")
	cmd.Flags().Bool("keep-spills", defaults.KeepSpills, "Leave spill files in place after the run")
	cmd.Flags().Bool("strict", defaults.Strict, "Fail the run when a spill file cannot be written")

	return cmd
}

// applySortFlags overrides cfg with every flag set on the command line, so
// flags take precedence over the config file and environment.
func applySortFlags(flags *pflag.FlagSet, cfg *config.SortConfig) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "chunk-size":
			cfg.ChunkSizeBytes, err = flags.GetInt(f.Name)
		case "workers":
			cfg.WorkerCount, err = flags.GetInt(f.Name)
		case "queue-depth":
			cfg.QueueDepth, err = flags.GetInt(f.Name)
		case "tmp-dir":
			cfg.TmpDir, err = flags.GetString(f.Name)
		case "spill-format":
			cfg.SpillFormat, err = flags.GetString(f.Name)
		case "output-format":
			cfg.OutputFormat, err = flags.GetString(f.Name)
		case "delimiter":
			cfg.OutputDelimiter, err = flags.GetString(f.Name)
		case "keep-spills":
			cfg.KeepSpills, err = flags.GetBool(f.Name)
		case "strict":
			cfg.Strict, err = flags.GetBool(f.Name)
		}
		if err != nil {
			err = fmt.Errorf("failed to get %s flag: %w", f.Name, err)
		}
	})
	return err
}

func runSort(ctx context.Context, cfg config.SortConfig, input, output string) error {
	sorter, err := extsort.New(cfg)
	if err != nil {
		return err
	}
	summary, err := sorter.Sort(ctx, input, output)
	if err != nil {
		slog.Error("Sort failed", slog.Any("summary", summary), slog.Any("error", err))
		return err
	}
	if summary.ParseErrors > 0 || summary.SpillWriteErrors > 0 || summary.SpillsSkipped+summary.SpillsTruncated > 0 {
		slog.Warn("Sort finished with dropped data",
			slog.Int64("parseErrors", summary.ParseErrors),
			slog.Int("spillWriteErrors", summary.SpillWriteErrors),
			slog.Int("spillsSkipped", summary.SpillsSkipped+summary.SpillsTruncated))
	}
	return nil
}
