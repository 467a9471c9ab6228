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

package extsort

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bigsort/config"
	"github.com/cardinalhq/bigsort/internal/output"
	"github.com/cardinalhq/bigsort/internal/sortworker"
	"github.com/cardinalhq/bigsort/internal/spillers"
	"github.com/cardinalhq/bigsort/internal/spillstore"
)

type fixture struct {
	dir    string
	tmpDir string
	input  string
	output string
}

func newFixture(t *testing.T, input string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		tmpDir: filepath.Join(dir, "tmp"),
		input:  filepath.Join(dir, "input.txt"),
		output: filepath.Join(dir, "output.txt"),
	}
	require.NoError(t, os.Mkdir(f.tmpDir, 0o755))
	require.NoError(t, os.WriteFile(f.input, []byte(input), 0o644))
	return f
}

func (f fixture) config(chunkSize, workers int) config.SortConfig {
	cfg := config.DefaultSortConfig()
	cfg.ChunkSizeBytes = chunkSize
	cfg.WorkerCount = workers
	cfg.TmpDir = f.tmpDir
	return cfg
}

func runSort(t *testing.T, cfg config.SortConfig, f fixture) Summary {
	t.Helper()
	sorter, err := New(cfg)
	require.NoError(t, err)
	summary, err := sorter.Sort(context.Background(), f.input, f.output)
	require.NoError(t, err)
	return summary
}

func readOutput(t *testing.T, f fixture) string {
	t.Helper()
	data, err := os.ReadFile(f.output)
	require.NoError(t, err)
	return string(data)
}

func assertNoSpillDirs(t *testing.T, f fixture) {
	t.Helper()
	entries, err := os.ReadDir(f.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spill directories must be removed")
}

func TestSort_Basic(t *testing.T) {
	f := newFixture(t, "3 1 4 1 5 9 2 6")
	summary := runSort(t, f.config(8, 2), f)

	assert.Equal(t, "1 1 2 3 4 5 6 9 ", readOutput(t, f))
	assert.Equal(t, 2, summary.Chunks)
	assert.Equal(t, int64(8), summary.Tokens)
	assert.Equal(t, int64(8), summary.RecordsSpilled)
	assert.Equal(t, int64(8), summary.RecordsWritten)
	assert.Equal(t, 2, summary.SpillFiles)
	assert.Zero(t, summary.ParseErrors)
	assert.NotEmpty(t, summary.RunID)
	assert.Positive(t, summary.Elapsed)
	assertNoSpillDirs(t, f)
}

func TestSort_MalformedTokensDropped(t *testing.T) {
	f := newFixture(t, "1 abc 2")
	summary := runSort(t, f.config(1024, 1), f)

	assert.Equal(t, "1 2 ", readOutput(t, f))
	assert.Equal(t, int64(1), summary.ParseErrors)
	assert.Equal(t, int64(2), summary.RecordsWritten)
}

func TestSort_EmptyInput(t *testing.T) {
	f := newFixture(t, "")
	summary := runSort(t, f.config(1024, 4), f)

	assert.Equal(t, "", readOutput(t, f))
	assert.Zero(t, summary.SpillFiles)
	assert.Zero(t, summary.Chunks)
	assertNoSpillDirs(t, f)
}

func TestSort_MixedDelimitersAndNewlines(t *testing.T) {
	f := newFixture(t, "10,-2\n3.5\t0\r\n-7e2,\n")
	runSort(t, f.config(4, 3), f)
	assert.Equal(t, "-700 -2 0 3.5 10 ", readOutput(t, f))
}

func TestSort_CustomOutputDelimiter(t *testing.T) {
	f := newFixture(t, "2 1")
	cfg := f.config(1024, 1)
	cfg.OutputDelimiter = "\n"
	runSort(t, cfg, f)
	assert.Equal(t, "1\n2\n", readOutput(t, f))
}

// randomInput returns an input of n numbers, some of them malformed, and
// the output an in-memory sort of the valid values would produce.
func randomInput(seed uint64, n int) (string, string) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seps := []string{" ", ",", "\n", "  ", " , "}
	var (
		in     strings.Builder
		values []float64
	)
	for range n {
		if rng.IntN(50) == 0 {
			in.WriteString("oops")
		} else {
			var v float64
			switch rng.IntN(3) {
			case 0:
				v = float64(rng.IntN(100) - 50)
			case 1:
				v = rng.NormFloat64() * 1e6
			default:
				v = rng.Float64()
			}
			values = append(values, v)
			in.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		in.WriteString(seps[rng.IntN(len(seps))])
	}
	slices.Sort(values)
	var out strings.Builder
	for _, v := range values {
		out.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		out.WriteByte(' ')
	}
	return in.String(), out.String()
}

func TestSort_MatchesInMemorySort(t *testing.T) {
	input, want := randomInput(1, 5000)

	for _, tc := range []struct {
		chunkSize int
		workers   int
	}{
		{1 << 20, 1},
		{64, 1},
		{64, 4},
		{7, 8},
		{1000, 3},
	} {
		t.Run(strconv.Itoa(tc.chunkSize)+"x"+strconv.Itoa(tc.workers), func(t *testing.T) {
			f := newFixture(t, input)
			summary := runSort(t, f.config(tc.chunkSize, tc.workers), f)
			assert.Equal(t, want, readOutput(t, f))
			assert.Equal(t, summary.RecordsSpilled, summary.RecordsWritten)
			assert.Equal(t, summary.Tokens, summary.RecordsSpilled+summary.ParseErrors)
			assertNoSpillDirs(t, f)
		})
	}
}

func TestSort_BoundedAndUnboundedQueue(t *testing.T) {
	input, want := randomInput(2, 2000)
	for _, depth := range []int{-1, 1, 0} {
		t.Run(strconv.Itoa(depth), func(t *testing.T) {
			f := newFixture(t, input)
			cfg := f.config(32, 3)
			cfg.QueueDepth = depth
			runSort(t, cfg, f)
			assert.Equal(t, want, readOutput(t, f))
		})
	}
}

func TestSort_CborSpills(t *testing.T) {
	input, want := randomInput(3, 1000)
	f := newFixture(t, input)
	cfg := f.config(100, 2)
	cfg.SpillFormat = config.SpillFormatCBOR
	runSort(t, cfg, f)
	assert.Equal(t, want, readOutput(t, f))
}

func TestSort_ParquetOutput(t *testing.T) {
	f := newFixture(t, "5 -1 3 3 0.5")
	cfg := f.config(4, 2)
	cfg.OutputFormat = config.OutputFormatParquet
	runSort(t, cfg, f)

	rows, err := parquet.ReadFile[output.Row](f.output)
	require.NoError(t, err)
	var got []float64
	for _, r := range rows {
		got = append(got, r.Value)
	}
	assert.Equal(t, []float64{-1, 0.5, 3, 3, 5}, got)
}

func TestSort_KeepSpills(t *testing.T) {
	f := newFixture(t, "3 2 1 6 5 4")
	cfg := f.config(6, 1)
	cfg.KeepSpills = true
	summary := runSort(t, cfg, f)

	spillDir := filepath.Join(f.tmpDir, spillstore.DirPrefix+summary.RunID)
	entries, err := os.ReadDir(spillDir)
	require.NoError(t, err)
	assert.Len(t, entries, summary.SpillFiles)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), spillstore.FileExt))
	}
}

func TestSort_MissingInput(t *testing.T) {
	f := newFixture(t, "")
	sorter, err := New(f.config(1024, 1))
	require.NoError(t, err)

	_, err = sorter.Sort(context.Background(), filepath.Join(f.dir, "absent.txt"), f.output)
	require.ErrorIs(t, err, ErrInputUnavailable)

	_, err = os.Stat(f.output)
	assert.True(t, os.IsNotExist(err))
	assertNoSpillDirs(t, f)
}

func TestSort_InputIsDirectory(t *testing.T) {
	f := newFixture(t, "")
	sorter, err := New(f.config(1024, 1))
	require.NoError(t, err)

	_, err = sorter.Sort(context.Background(), f.tmpDir, f.output)
	assert.ErrorIs(t, err, ErrInputUnavailable)
}

func TestSort_UnwritableOutput(t *testing.T) {
	f := newFixture(t, "1 2 3")
	sorter, err := New(f.config(1024, 1))
	require.NoError(t, err)

	_, err = sorter.Sort(context.Background(), f.input, filepath.Join(f.dir, "no", "such", "dir", "out.txt"))
	require.ErrorIs(t, err, ErrOutputUnavailable)
	assertNoSpillDirs(t, f)
}

func TestSort_OutputPathIsDirectory(t *testing.T) {
	f := newFixture(t, "1 2 3")
	sorter, err := New(f.config(1024, 1))
	require.NoError(t, err)

	summary, err := sorter.Sort(context.Background(), f.input, f.dir+string(filepath.Separator))
	require.ErrorIs(t, err, ErrOutputUnavailable)
	require.ErrorIs(t, err, output.ErrNotAFile)
	assert.Zero(t, summary.Chunks, "must fail before reading input")
	assertNoSpillDirs(t, f)
}

func TestSort_Cancelled(t *testing.T) {
	input, _ := randomInput(4, 1000)
	f := newFixture(t, input)
	sorter, err := New(f.config(16, 2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sorter.Sort(ctx, f.input, f.output)
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(f.output)
	assert.True(t, os.IsNotExist(statErr), "cancelled run must not publish output")
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp output %s", e.Name())
	}
	assertNoSpillDirs(t, f)
}

// flakySpiller fails every other spill write.
type flakySpiller struct {
	spillers.Spiller
	mu    sync.Mutex
	calls int
}

func (f *flakySpiller) WriteSpillFile(path string, values []float64) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls%2 == 0
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Spiller.WriteSpillFile(path, values)
}

// sortWithin runs a sort and fails the test if it does not finish in time.
func sortWithin(t *testing.T, sorter *Sorter, f fixture, limit time.Duration) (Summary, error) {
	t.Helper()
	type result struct {
		summary Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := sorter.Sort(context.Background(), f.input, f.output)
		done <- result{summary, err}
	}()
	select {
	case r := <-done:
		return r.summary, r.err
	case <-time.After(limit):
		t.Fatal("sort did not finish")
		return Summary{}, nil
	}
}

func TestSort_SpillWriteFailures(t *testing.T) {
	input, _ := randomInput(5, 5000)

	t.Run("lenient", func(t *testing.T) {
		f := newFixture(t, input)
		cfg := f.config(64, 4)
		cfg.QueueDepth = 8
		sorter, err := New(cfg)
		require.NoError(t, err)
		sorter.spiller = &flakySpiller{Spiller: sorter.spiller}

		summary, err := sortWithin(t, sorter, f, 30*time.Second)
		require.NoError(t, err)
		assert.Positive(t, summary.SpillWriteErrors)
		assert.Positive(t, summary.SpillFiles)
		assert.Equal(t, summary.RecordsSpilled, summary.RecordsWritten)
		assert.Less(t, summary.RecordsSpilled, summary.Tokens-summary.ParseErrors)

		var got []float64
		for _, tok := range strings.Fields(readOutput(t, f)) {
			v, err := strconv.ParseFloat(tok, 64)
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Len(t, got, int(summary.RecordsWritten))
		assert.True(t, slices.IsSorted(got))
		assertNoSpillDirs(t, f)
	})

	t.Run("strict", func(t *testing.T) {
		f := newFixture(t, input)
		cfg := f.config(64, 4)
		cfg.QueueDepth = 8
		cfg.Strict = true
		sorter, err := New(cfg)
		require.NoError(t, err)
		sorter.spiller = &flakySpiller{Spiller: sorter.spiller}

		summary, err := sortWithin(t, sorter, f, 30*time.Second)
		require.ErrorIs(t, err, sortworker.ErrSpillWrite)
		assert.Positive(t, summary.SpillWriteErrors)

		_, statErr := os.Stat(f.output)
		assert.True(t, os.IsNotExist(statErr), "failed run must not publish output")
		assertNoSpillDirs(t, f)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultSortConfig()
	cfg.SpillFormat = "gob"
	_, err := New(cfg)
	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)
}
