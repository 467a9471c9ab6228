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

package spillers

import (
	"bufio"
	"fmt"
	"os"
)

// PartialSuffix is appended to a spill file's name while it is being written.
const PartialSuffix = ".partial"

const writeBufferSize = 256 * 1024

// writeAtomically creates path+PartialSuffix, hands a buffered writer to fill,
// then flushes, closes, and renames the file onto path. On any failure the
// partial file is removed.
func writeAtomically(path string, fill func(w *bufio.Writer) error) (err error) {
	partial := path + PartialSuffix
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create spill file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(partial)
		}
	}()

	w := bufio.NewWriterSize(f, writeBufferSize)
	if err := fill(w); err != nil {
		return fmt.Errorf("write spill file: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush spill file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close spill file: %w", err)
	}
	if err := os.Rename(partial, path); err != nil {
		return fmt.Errorf("rename spill file: %w", err)
	}
	return nil
}
