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

package idgen

import (
	crand "crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	runEntropyMu sync.Mutex
	runEntropy   = ulid.Monotonic(crand.Reader, 0)
)

// NewRunID returns a lowercase ULID. IDs created by one process are strictly
// increasing, and the timestamp prefix lets the sweeper judge a run's age from
// its directory name alone.
func NewRunID() string {
	return newRunIDAt(time.Now())
}

func newRunIDAt(t time.Time) string {
	runEntropyMu.Lock()
	defer runEntropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(t), runEntropy).String())
}

// RunIDTime extracts the creation time embedded in a run ID.
func RunIDTime(id string) (time.Time, bool) {
	u, err := ulid.ParseStrict(strings.ToUpper(id))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}
