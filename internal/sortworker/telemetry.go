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

package sortworker

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	tokensCounter      otelmetric.Int64Counter
	parseErrorsCounter otelmetric.Int64Counter
	spillErrorsCounter otelmetric.Int64Counter
	chunkDuration      otelmetric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bigsort/internal/sortworker")

	var err error
	tokensCounter, err = meter.Int64Counter(
		"bigsort.worker.tokens",
		otelmetric.WithDescription("Number of tokens seen by sort workers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create worker.tokens counter: %w", err))
	}

	parseErrorsCounter, err = meter.Int64Counter(
		"bigsort.worker.parse_errors",
		otelmetric.WithDescription("Number of tokens dropped because they are not valid numbers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create worker.parse_errors counter: %w", err))
	}

	spillErrorsCounter, err = meter.Int64Counter(
		"bigsort.worker.spill.errors",
		otelmetric.WithDescription("Number of chunks lost because their spill file could not be written"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create worker.spill.errors counter: %w", err))
	}

	chunkDuration, err = meter.Float64Histogram(
		"bigsort.worker.chunk.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Time to parse, sort, and spill one chunk"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create worker.chunk.duration histogram: %w", err))
	}
}
