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

package helpers

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cardinalhq/bigsort/internal/idgen"
)

// SweepStaleDirs removes directories directly under root whose name starts
// with prefix and that are older than maxAge. A directory's age comes from the
// run ID following the prefix, or from its modification time when the suffix
// is not a run ID. It returns the paths that were removed.
func SweepStaleDirs(root, prefix string, maxAge time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}

		created, ok := idgen.RunIDTime(strings.TrimPrefix(name, prefix))
		if !ok {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			created = info.ModTime()
		}
		if now.Sub(created) < maxAge {
			continue
		}

		path := filepath.Join(root, name)
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove stale directory (ignoring)", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, nil
}
