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
	"context"
	"math"
	"strconv"
	"unsafe"

	"github.com/cardinalhq/bigsort/internal/chunker"
)

// cancelCheckInterval is how many tokens are parsed between context checks.
const cancelCheckInterval = 1 << 16

// ParseResult is the outcome of tokenizing one chunk.
type ParseResult struct {
	Values      []float64
	Tokens      int64
	ParseErrors int64
}

// Parse splits data on delimiters and parses every token as a float64.
// Tokens that do not parse, overflow float64, or spell NaN are counted in
// ParseErrors and dropped. NaN is rejected because it has no place in an
// ascending order.
func Parse(ctx context.Context, data []byte) (ParseResult, error) {
	res := ParseResult{
		// Shortest useful token plus delimiter is two bytes.
		Values: make([]float64, 0, len(data)/2+1),
	}

	i := 0
	for i < len(data) {
		for i < len(data) && chunker.IsDelimiter(data[i]) {
			i++
		}
		start := i
		for i < len(data) && !chunker.IsDelimiter(data[i]) {
			i++
		}
		if start == i {
			continue
		}

		res.Tokens++
		if res.Tokens%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		// The token view aliases data and must not outlive this call.
		// strconv copies the input into any NumError it returns.
		tok := data[start:i]
		v, err := strconv.ParseFloat(unsafe.String(unsafe.SliceData(tok), len(tok)), 64)
		if err != nil || math.IsNaN(v) {
			res.ParseErrors++
			continue
		}
		res.Values = append(res.Values, v)
	}
	return res, nil
}
