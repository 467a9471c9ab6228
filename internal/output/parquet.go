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

package output

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// Row is the single-column schema of parquet output.
type Row struct {
	Value float64 `parquet:"value"`
}

const parquetBatchSize = 4096

// ParquetSink writes values as rows of a zstd-compressed parquet file.
type ParquetSink struct {
	dest   *destination
	writer *parquet.GenericWriter[Row]
	batch  []Row
	count  int64
}

var _ Sink = (*ParquetSink)(nil)

func NewParquetSink(path string) (*ParquetSink, error) {
	dest, err := openDestination(path)
	if err != nil {
		return nil, err
	}
	writer := parquet.NewGenericWriter[Row](dest.w,
		parquet.Compression(&parquet.Zstd),
		parquet.PageBufferSize(32*1024),
		parquet.MaxRowsPerRowGroup(1_000_000),
	)
	return &ParquetSink{
		dest:   dest,
		writer: writer,
		batch:  make([]Row, 0, parquetBatchSize),
	}, nil
}

func (s *ParquetSink) Write(v float64) error {
	s.batch = append(s.batch, Row{Value: v})
	s.count++
	if len(s.batch) >= parquetBatchSize {
		return s.flush()
	}
	return nil
}

// Count returns the number of values written.
func (s *ParquetSink) Count() int64 { return s.count }

func (s *ParquetSink) flush() error {
	if len(s.batch) == 0 {
		return nil
	}
	if _, err := s.writer.Write(s.batch); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	s.batch = s.batch[:0]
	return nil
}

func (s *ParquetSink) Close() error {
	if err := s.flush(); err != nil {
		_ = s.dest.abort()
		return err
	}
	if err := s.writer.Close(); err != nil {
		_ = s.dest.abort()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return s.dest.commit()
}

func (s *ParquetSink) Abort() error {
	return s.dest.abort()
}
