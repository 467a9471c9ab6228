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
	"io"
	"os"
	"strconv"
)

// TextSpiller writes each value in its shortest exact decimal form followed
// by a single space. Reading parses the same representation back, so a text
// spill reproduces every float64 bit for bit.
type TextSpiller struct{}

var _ Spiller = (*TextSpiller)(nil)

func NewTextSpiller() *TextSpiller {
	return &TextSpiller{}
}

func (s *TextSpiller) Format() string { return FormatText }

// WriteSpillFile writes values as whitespace-delimited decimal text.
func (s *TextSpiller) WriteSpillFile(path string, values []float64) error {
	return writeAtomically(path, func(w *bufio.Writer) error {
		buf := make([]byte, 0, 32)
		for _, v := range values {
			buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
			buf = append(buf, ' ')
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// OpenSpillFile opens a text spill file for reading.
func (s *TextSpiller) OpenSpillFile(path string) (SpillReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file %s: %w", path, err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)
	return &textSpillReader{file: file, scanner: scanner}, nil
}

type textSpillReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (r *textSpillReader) Next() (float64, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	v, err := strconv.ParseFloat(r.scanner.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt spill value in %s: %w", r.file.Name(), err)
	}
	return v, nil
}

func (r *textSpillReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
