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

// Package cbor holds the CBOR encoder and decoder settings used for binary
// spill files. Each spilled value is one CBOR float64 data item.
//
// CBOR Type Behavior:
//   - float64 values are always written as 8-byte floats (no shortest-float
//     narrowing), so a decoded value is bit-identical to the encoded one
//   - integers in a spill are rejected rather than silently converted
package cbor

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Config holds CBOR encoder and decoder modes for spill data.
type Config struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewConfig creates a CBOR configuration for float64 spill streams.
func NewConfig() (*Config, error) {
	encMode, err := cbor.EncOptions{
		ShortestFloat: cbor.ShortestFloatNone, // keep full float64 width
		NaNConvert:    cbor.NaNConvertNone,
		InfConvert:    cbor.InfConvertNone,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		MaxArrayElements: 1024, // spill items are scalars
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &Config{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

// NewEncoder creates a new CBOR encoder writing to w.
func (c *Config) NewEncoder(w io.Writer) *cbor.Encoder {
	return c.encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder reading from r.
func (c *Config) NewDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// ErrNotFloat is returned by DecodeValue when the next item is not a float.
var ErrNotFloat = errors.New("cbor: spill item is not a float64")

// DecodeValue reads the next float64 from dec. It returns io.EOF when the
// stream is exhausted.
func DecodeValue(dec *cbor.Decoder) (float64, error) {
	var raw cbor.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return 0, err
	}
	// Major type 7 with additional info 25/26/27 is a half/single/double float.
	if len(raw) == 0 || raw[0]>>5 != 7 || raw[0]&0x1f < 25 || raw[0]&0x1f > 27 {
		return 0, ErrNotFloat
	}
	var v float64
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
