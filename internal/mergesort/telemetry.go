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

package mergesort

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	recordsCounter otelmetric.Int64Counter
	skippedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bigsort/internal/mergesort")

	var err error
	recordsCounter, err = meter.Int64Counter(
		"bigsort.merge.records",
		otelmetric.WithDescription("Number of values written by the merge phase"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge.records counter: %w", err))
	}

	skippedCounter, err = meter.Int64Counter(
		"bigsort.merge.spills.skipped",
		otelmetric.WithDescription("Number of spill files skipped or cut short during merge"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge.spills.skipped counter: %w", err))
	}
}
