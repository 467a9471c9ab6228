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

// Package output writes the merged stream to its destination. Every sink
// writes into a temporary file next to the destination and renames it into
// place on Close, so readers never observe a half-written result.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	FormatText    = "text"
	FormatParquet = "parquet"

	// Stdout as a destination path writes to standard output without the
	// temporary file.
	Stdout = "-"
)

// Sink receives values in output order.
type Sink interface {
	// Write appends one value.
	Write(v float64) error
	// Close flushes buffered data and publishes the result.
	Close() error
	// Abort discards everything written so far. It is a no-op after Close.
	Abort() error
}

// New opens a sink of the given format writing to path.
func New(format, path, delimiter string) (Sink, error) {
	switch format {
	case "", FormatText:
		return NewTextSink(path, delimiter)
	case FormatParquet:
		return NewParquetSink(path)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

var (
	errDestinationClosed = errors.New("output already closed")

	// ErrNotAFile is returned when the destination path cannot name a
	// regular file.
	ErrNotAFile = errors.New("output path is not a file")
)

// destination is a file being written under a temporary name.
type destination struct {
	final string
	file  *os.File
	w     io.Writer
	done  bool
}

func openDestination(path string) (*destination, error) {
	if path == Stdout {
		return &destination{final: path, w: os.Stdout}, nil
	}
	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == ".." {
		return nil, fmt.Errorf("%w: %q", ErrNotAFile, path)
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotAFile, path)
	}
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create output file in %s: %w", dir, err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("chmod output file: %w", err)
	}
	return &destination{final: path, file: f, w: f}, nil
}

// commit makes the written data visible under the final name.
func (d *destination) commit() error {
	if d.done {
		return errDestinationClosed
	}
	d.done = true
	if d.file == nil {
		return nil
	}
	tmp := d.file.Name()
	if err := d.file.Sync(); err != nil {
		_ = d.file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync output: %w", err)
	}
	if err := d.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, d.final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish output %s: %w", d.final, err)
	}
	return nil
}

func (d *destination) abort() error {
	if d.done {
		return nil
	}
	d.done = true
	if d.file == nil {
		return nil
	}
	_ = d.file.Close()
	if err := os.Remove(d.file.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
