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

package config

import (
	"runtime"
)

const (
	// DefaultChunkSizeBytes is the target size of one chunk handed to a
	// sort worker.
	DefaultChunkSizeBytes = 10 * 1024 * 1024

	SpillFormatText  = "text"
	SpillFormatCBOR  = "cbor"
	OutputFormatText = "text"
	// OutputFormatParquet writes a single "value" DOUBLE column.
	OutputFormatParquet = "parquet"
)

type SortConfig struct {
	// ChunkSizeBytes is the target chunk size. Chunks grow past it only to
	// avoid splitting a token.
	ChunkSizeBytes int `mapstructure:"chunk_size_bytes" yaml:"chunk_size_bytes"`

	// WorkerCount is the number of sort workers; zero uses GOMAXPROCS.
	WorkerCount int `mapstructure:"worker_count" yaml:"worker_count"`

	// QueueDepth bounds the chunks waiting for a worker. Zero means twice
	// the worker count, negative means unbounded.
	QueueDepth int `mapstructure:"queue_depth" yaml:"queue_depth"`

	// TmpDir holds the per-run spill directories; empty uses os.TempDir().
	TmpDir string `mapstructure:"tmp_dir" yaml:"tmp_dir"`

	SpillFormat     string `mapstructure:"spill_format" yaml:"spill_format"`
	OutputFormat    string `mapstructure:"output_format" yaml:"output_format"`
	OutputDelimiter string `mapstructure:"output_delimiter" yaml:"output_delimiter"`

	// KeepSpills leaves the spill directory in place after the run.
	KeepSpills bool `mapstructure:"keep_spills" yaml:"keep_spills"`

	// Strict turns spill write failures into run failures instead of
	// dropping the affected chunk.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

func DefaultSortConfig() SortConfig {
	return SortConfig{
		ChunkSizeBytes:  DefaultChunkSizeBytes,
		SpillFormat:     SpillFormatText,
		OutputFormat:    OutputFormatText,
		OutputDelimiter: " ",
	}
}

// Workers resolves WorkerCount to the number of workers to start.
func (c SortConfig) Workers() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	return max(1, runtime.GOMAXPROCS(0))
}

// QueueCapacity resolves QueueDepth to a work queue capacity, where zero or
// less means unbounded.
func (c SortConfig) QueueCapacity() int {
	switch {
	case c.QueueDepth > 0:
		return c.QueueDepth
	case c.QueueDepth < 0:
		return 0
	default:
		return 2 * c.Workers()
	}
}

// Validate checks the configuration for values that cannot work.
func (c SortConfig) Validate() error {
	if c.ChunkSizeBytes <= 0 {
		return &ConfigError{Field: "sort.chunk_size_bytes", Message: "must be positive"}
	}
	if c.WorkerCount < 0 {
		return &ConfigError{Field: "sort.worker_count", Message: "cannot be negative"}
	}
	switch c.SpillFormat {
	case "", SpillFormatText, SpillFormatCBOR:
	default:
		return &ConfigError{Field: "sort.spill_format", Message: "must be text or cbor, got " + c.SpillFormat}
	}
	switch c.OutputFormat {
	case "", OutputFormatText, OutputFormatParquet:
	default:
		return &ConfigError{Field: "sort.output_format", Message: "must be text or parquet, got " + c.OutputFormat}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + " " + e.Message
}
