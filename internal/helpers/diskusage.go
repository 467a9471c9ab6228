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
	"fmt"

	"golang.org/x/sys/unix"
)

// FSUsage holds the on-disk usage stats for a given filesystem.
type FSUsage struct {
	TotalBytes uint64 // total capacity
	FreeBytes  uint64 // available to non-root users
	UsedBytes  uint64 // TotalBytes - FreeBytes
}

// DiskUsage returns FSUsage for the filesystem that contains path.
func DiskUsage(path string) (FSUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSUsage{}, err
	}

	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	return FSUsage{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  total - free,
	}, nil
}

// InsufficientSpaceError is returned by CheckFreeSpace when the filesystem
// holding a directory cannot fit the requested number of bytes.
type InsufficientSpaceError struct {
	Path      string
	Needed    uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("%s: need %d bytes, %d available", e.Path, e.Needed, e.Available)
}

// CheckFreeSpace verifies that path's filesystem has at least needed bytes free.
func CheckFreeSpace(path string, needed uint64) error {
	usage, err := DiskUsage(path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	if usage.FreeBytes < needed {
		return &InsufficientSpaceError{Path: path, Needed: needed, Available: usage.FreeBytes}
	}
	return nil
}
