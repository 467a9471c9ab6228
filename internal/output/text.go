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
	"bufio"
	"strconv"
)

// TextSink writes each value in its shortest exact decimal form followed by
// the delimiter.
type TextSink struct {
	dest      *destination
	bw        *bufio.Writer
	delimiter string
	buf       []byte
	count     int64
}

var _ Sink = (*TextSink)(nil)

// NewTextSink opens path for text output. An empty delimiter means a single
// space.
func NewTextSink(path, delimiter string) (*TextSink, error) {
	if delimiter == "" {
		delimiter = " "
	}
	dest, err := openDestination(path)
	if err != nil {
		return nil, err
	}
	return &TextSink{
		dest:      dest,
		bw:        bufio.NewWriterSize(dest.w, 256*1024),
		delimiter: delimiter,
		buf:       make([]byte, 0, 32),
	}, nil
}

func (s *TextSink) Write(v float64) error {
	s.buf = strconv.AppendFloat(s.buf[:0], v, 'g', -1, 64)
	s.buf = append(s.buf, s.delimiter...)
	if _, err := s.bw.Write(s.buf); err != nil {
		return err
	}
	s.count++
	return nil
}

// Count returns the number of values written.
func (s *TextSink) Count() int64 { return s.count }

func (s *TextSink) Close() error {
	if err := s.bw.Flush(); err != nil {
		_ = s.dest.abort()
		return err
	}
	return s.dest.commit()
}

func (s *TextSink) Abort() error {
	return s.dest.abort()
}
