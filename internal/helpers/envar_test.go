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

package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		primary      string
		secondary    string
		defaultValue bool
		expected     bool
	}{
		{"unset uses default true", "", "", true, true},
		{"unset uses default false", "", "", false, false},
		{"true", "true", "", false, true},
		{"TRUE", "TRUE", "", false, true},
		{"1", "1", "", false, true},
		{"yes with spaces", "  yes ", "", false, true},
		{"enabled", "enabled", "", false, true},
		{"false", "false", "", true, false},
		{"OFF", "OFF", "", true, false},
		{"disabled tab", "\tdisabled\t", "", true, false},
		{"garbage is true", "whatever", "", false, true},
		{"first set var wins", "0", "1", true, false},
		{"falls through to second", "", "on", false, true},
		{"whitespace only falls through", "   ", "no", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BIGSORT_TEST_PRIMARY", tt.primary)
			t.Setenv("BIGSORT_TEST_SECONDARY", tt.secondary)
			got := GetBoolEnv(tt.defaultValue, "BIGSORT_TEST_PRIMARY", "BIGSORT_TEST_SECONDARY")
			assert.Equal(t, tt.expected, got)
		})
	}
}
