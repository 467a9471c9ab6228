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

package chunker

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	chunksCounter otelmetric.Int64Counter
	bytesCounter  otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bigsort/internal/chunker")

	var err error
	chunksCounter, err = meter.Int64Counter(
		"bigsort.chunker.chunks",
		otelmetric.WithDescription("Number of chunks handed to the sort workers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunker.chunks counter: %w", err))
	}

	bytesCounter, err = meter.Int64Counter(
		"bigsort.chunker.bytes",
		otelmetric.WithUnit("By"),
		otelmetric.WithDescription("Number of input bytes handed to the sort workers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create chunker.bytes counter: %w", err))
	}
}
