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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// generateOptions controls synthetic input generation.
type generateOptions struct {
	Count          int64
	Seed           uint64
	MalformedRatio float64
	Delimiter      string
	Integers       bool
}

func init() {
	rootCmd.AddCommand(newGenerateCmd())
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write random numbers for testing the sorter",
		RunE: func(c *cobra.Command, _ []string) error {
			output, err := c.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			opts := generateOptions{}
			if opts.Count, err = c.Flags().GetInt64("count"); err != nil {
				return fmt.Errorf("failed to get count flag: %w", err)
			}
			if opts.Seed, err = c.Flags().GetUint64("seed"); err != nil {
				return fmt.Errorf("failed to get seed flag: %w", err)
			}
			if opts.MalformedRatio, err = c.Flags().GetFloat64("malformed-ratio"); err != nil {
				return fmt.Errorf("failed to get malformed-ratio flag: %w", err)
			}
			if opts.Delimiter, err = c.Flags().GetString("delimiter"); err != nil {
				return fmt.Errorf("failed to get delimiter flag: %w", err)
			}
			if opts.Integers, err = c.Flags().GetBool("integers"); err != nil {
				return fmt.Errorf("failed to get integers flag: %w", err)
			}

			return withTelemetry("bigsort-generate", func(ctx context.Context) error {
				return runGenerate(ctx, output, opts)
			})
		},
	}

	cmd.Flags().String("output", "", "File to write, or - for stdout")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(fmt.Errorf("failed to mark output flag as required: %w", err))
	}
	cmd.Flags().Int64("count", 1_000_000, "Number of tokens to write")
	cmd.Flags().Uint64("seed", 1, "Random seed")
	cmd.Flags().Float64("malformed-ratio", 0, "Fraction of tokens that are not numbers")
	cmd.Flags().String("delimiter", " ", "Delimiter between tokens")
	cmd.Flags().Bool("integers", false, "Write integers instead of floating point values")

	return cmd
}

func runGenerate(ctx context.Context, path string, opts generateOptions) error {
	if opts.MalformedRatio < 0 || opts.MalformedRatio > 1 {
		return fmt.Errorf("malformed-ratio must be between 0 and 1, got %v", opts.MalformedRatio)
	}

	var dst io.WriteCloser = nopWriteCloser{os.Stdout}
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		dst = f
	}

	n, err := generateTo(ctx, dst, opts)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Generated input", slog.String("output", path), slog.Int64("tokens", n))
	return nil
}

// generateTo writes the random stream to dst and closes it. The close error
// is returned when nothing failed earlier.
func generateTo(ctx context.Context, dst io.WriteCloser, opts generateOptions) (int64, error) {
	bw := bufio.NewWriterSize(dst, 256*1024)
	n, err := writeRandomNumbers(ctx, bw, opts)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// writeRandomNumbers writes opts.Count tokens to w and returns how many were
// written. The same seed always produces the same stream.
func writeRandomNumbers(ctx context.Context, w io.Writer, opts generateOptions) (int64, error) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed*0x9e3779b97f4a7c15+1))
	buf := make([]byte, 0, 64)
	for i := range opts.Count {
		if i%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return i, err
			}
		}
		buf = buf[:0]
		switch {
		case opts.MalformedRatio > 0 && rng.Float64() < opts.MalformedRatio:
			buf = append(buf, "x"...)
			buf = strconv.AppendUint(buf, rng.Uint64N(1000), 36)
		case opts.Integers:
			buf = strconv.AppendInt(buf, rng.Int64N(2_000_000_001)-1_000_000_000, 10)
		default:
			buf = strconv.AppendFloat(buf, rng.NormFloat64()*1e6, 'g', -1, 64)
		}
		buf = append(buf, opts.Delimiter...)
		if _, err := w.Write(buf); err != nil {
			return i, err
		}
	}
	return opts.Count, nil
}
