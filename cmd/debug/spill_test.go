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

package debug

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bigsort/internal/spillers"
)

func writeSpill(t *testing.T, format string, values []float64) string {
	t.Helper()
	s, err := spillers.New(format)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "w0-000001.spill")
	require.NoError(t, s.WriteSpillFile(path, values))
	return path
}

func TestRunSpillCat(t *testing.T) {
	for _, format := range []string{spillers.FormatText, spillers.FormatCBOR} {
		t.Run(format, func(t *testing.T) {
			path := writeSpill(t, format, []float64{-1.5, 0, 2, 1e100})

			var out bytes.Buffer
			require.NoError(t, runSpillCat(&out, path, format, 0))
			assert.Equal(t, "-1.5\n0\n2\n1e+100\n", out.String())

			out.Reset()
			require.NoError(t, runSpillCat(&out, path, format, 2))
			assert.Equal(t, "-1.5\n0\n", out.String())
		})
	}
}

func TestRunSpillCat_Missing(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runSpillCat(&out, filepath.Join(t.TempDir(), "absent"), spillers.FormatText, 0))
}

func TestVerifySpill(t *testing.T) {
	sorted := writeSpill(t, spillers.FormatText, []float64{1, 1, 2, 3})
	n, err := verifySpill(sorted, spillers.FormatText)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	unsorted := writeSpill(t, spillers.FormatCBOR, []float64{1, 3, 2})
	n, err = verifySpill(unsorted, spillers.FormatCBOR)
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
}
