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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/bigsort/config"
	"github.com/cardinalhq/bigsort/internal/helpers"
	"github.com/cardinalhq/bigsort/internal/spillstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove spill directories left behind by interrupted runs",
		RunE: func(c *cobra.Command, _ []string) error {
			maxAge, err := c.Flags().GetDuration("max-age")
			if err != nil {
				return fmt.Errorf("failed to get max-age flag: %w", err)
			}
			tmpDir, err := c.Flags().GetString("tmp-dir")
			if err != nil {
				return fmt.Errorf("failed to get tmp-dir flag: %w", err)
			}
			if !c.Flags().Changed("tmp-dir") {
				cfg, err := config.Load(configFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				tmpDir = cfg.Sort.TmpDir
			}
			if tmpDir == "" {
				tmpDir = os.TempDir()
			}

			return withTelemetry("bigsort-sweep", func(_ context.Context) error {
				removed, err := helpers.SweepStaleDirs(tmpDir, spillstore.DirPrefix, maxAge, time.Now())
				if err != nil {
					return fmt.Errorf("failed to sweep %s: %w", tmpDir, err)
				}
				for _, path := range removed {
					slog.Info("Removed stale spill directory", slog.String("path", path))
				}
				slog.Info("Sweep complete", slog.String("dir", tmpDir), slog.Int("removed", len(removed)))
				return nil
			})
		},
	}

	cmd.Flags().Duration("max-age", 24*time.Hour, "Only remove directories older than this")
	cmd.Flags().String("tmp-dir", "", "Directory to sweep (default: sort.tmp_dir or the system temp dir)")

	rootCmd.AddCommand(cmd)
}
