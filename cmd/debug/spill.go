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

package debug

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bigsort/internal/spillers"
)

func GetSpillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spill",
		Short: "Spill file debugging utilities",
		Long:  `Utilities for inspecting the sorted run files written during a sort.`,
	}

	cmd.AddCommand(getSpillCatSubCmd())
	cmd.AddCommand(getSpillVerifySubCmd())

	return cmd
}

func getSpillCatSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Print the values of a spill file, one per line",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			format, err := c.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			limit, err := c.Flags().GetInt("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}

			return runSpillCat(c.OutOrStdout(), filename, format, limit)
		},
	}

	cmd.Flags().String("file", "", "Spill file to read")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
	cmd.Flags().String("format", spillers.FormatText, "Spill format: text or cbor")
	cmd.Flags().Int("limit", 0, "Maximum number of values to output (0 for unlimited)")

	return cmd
}

func getSpillVerifySubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a spill file is readable and sorted",
		RunE: func(c *cobra.Command, _ []string) error {
			filename, err := c.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			format, err := c.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			count, err := verifySpill(filename, format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s: %d values, sorted\n", filename, count)
			return err
		},
	}

	cmd.Flags().String("file", "", "Spill file to check")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
	cmd.Flags().String("format", spillers.FormatText, "Spill format: text or cbor")

	return cmd
}

func openSpill(filename, format string) (spillers.SpillReader, error) {
	s, err := spillers.New(format)
	if err != nil {
		return nil, err
	}
	return s.OpenSpillFile(filename)
}

func runSpillCat(w io.Writer, filename, format string, limit int) error {
	r, err := openSpill(filename, format)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for n := 0; limit <= 0 || n < limit; n++ {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = bw.Flush()
			return fmt.Errorf("failed to read value %d: %w", n, err)
		}
		buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// verifySpill reads every value of a spill file and returns the count, or an
// error naming the first value that is out of order.
func verifySpill(filename, format string) (int64, error) {
	r, err := openSpill(filename, format)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	var (
		count int64
		prev  float64
	)
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read value %d: %w", count, err)
		}
		if count > 0 && v < prev {
			return count, fmt.Errorf("value %d (%v) is smaller than the value before it (%v)", count, v, prev)
		}
		prev = v
		count++
	}
}
