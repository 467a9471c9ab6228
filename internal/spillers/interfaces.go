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

// Package spillers writes sorted runs of float64 values to temporary files and
// reads them back in the same order. The text format is the default; the CBOR
// format trades readability for exact binary round trips and faster parsing.
package spillers

import (
	"fmt"
)

// SpillFile represents a temporary file containing one sorted run.
type SpillFile struct {
	// Path is the filesystem path to the spill file
	Path string

	// RecordCount is the number of values written to this spill file
	RecordCount int64

	// WorkerID identifies the sort worker that produced the file
	WorkerID int
}

// SpillReader provides an interface for reading values back from a spill file.
type SpillReader interface {
	// Next reads the next value from the spill file.
	// Returns io.EOF when no more values are available.
	Next() (float64, error)

	// Close closes the spill reader and releases the file handle.
	Close() error
}

// Spiller handles writing sorted values to spill files and reading them back.
type Spiller interface {
	// Format returns the configuration name of the spill format.
	Format() string

	// WriteSpillFile writes values, already sorted, to path in a single pass.
	// The file only appears at path once every value has been written and the
	// file closed, so a crash mid-write never leaves a truncated spill behind
	// under the final name.
	WriteSpillFile(path string, values []float64) error

	// OpenSpillFile opens a spill file for reading.
	// The returned SpillReader yields values in the order they were written.
	OpenSpillFile(path string) (SpillReader, error)
}

const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// New returns the Spiller for a configured format name.
func New(format string) (Spiller, error) {
	switch format {
	case "", FormatText:
		return NewTextSpiller(), nil
	case FormatCBOR:
		return NewCborSpiller()
	default:
		return nil, fmt.Errorf("unknown spill format %q", format)
	}
}
