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

	cbor2 "github.com/fxamacker/cbor/v2"

	"github.com/cardinalhq/bigsort/internal/cbor"
)

// CborSpiller implements the Spiller interface using CBOR encoding: one
// 9-byte float64 item per value, no framing.
type CborSpiller struct {
	config *cbor.Config
}

var _ Spiller = (*CborSpiller)(nil)

// NewCborSpiller creates a new CBOR-based spiller.
func NewCborSpiller() (*CborSpiller, error) {
	config, err := cbor.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR config: %w", err)
	}
	return &CborSpiller{config: config}, nil
}

func (s *CborSpiller) Format() string { return FormatCBOR }

// WriteSpillFile writes values as a sequence of CBOR floats.
func (s *CborSpiller) WriteSpillFile(path string, values []float64) error {
	return writeAtomically(path, func(w *bufio.Writer) error {
		encoder := s.config.NewEncoder(w)
		for _, v := range values {
			if err := encoder.Encode(v); err != nil {
				return fmt.Errorf("failed to encode value: %w", err)
			}
		}
		return nil
	})
}

// OpenSpillFile opens a CBOR spill file for reading.
func (s *CborSpiller) OpenSpillFile(path string) (SpillReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file %s: %w", path, err)
	}
	return &cborSpillReader{
		file:    file,
		decoder: s.config.NewDecoder(bufio.NewReaderSize(file, 64*1024)),
	}, nil
}

type cborSpillReader struct {
	file    *os.File
	decoder *cbor2.Decoder
}

// Next reads the next value; io.EOF is returned naturally at end of file.
func (r *cborSpillReader) Next() (float64, error) {
	return cbor.DecodeValue(r.decoder)
}

func (r *cborSpillReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
