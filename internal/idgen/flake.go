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

// Package idgen produces identifiers for a bigsort process and its runs.
package idgen

import (
	"errors"
	"math/rand/v2"
	"os"
	"time"

	"github.com/sony/sonyflake"
)

// DefaultFlakeGenerator identifies this process in logs and metrics.
var DefaultFlakeGenerator *SonyFlakeGenerator

func init() {
	var err error
	DefaultFlakeGenerator, err = newFlakeGenerator()
	if err != nil {
		panic(err)
	}
}

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

func newFlakeGenerator() (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	sf, err := sonyflake.New(settings)
	if err != nil {
		// No private IPv4 address, common on laptops and in some sandboxes.
		settings.MachineID = func() (uint16, error) { return uint16(os.Getpid()), nil }
		sf, err = sonyflake.New(settings)
	}
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("sonyflake returned nil generator")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

// NextID returns a positive int64 that increases roughly in time order.
// If the generator is exhausted it falls back to a random value.
func (g *SonyFlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}
