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
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, chunkSize int) []Chunk {
	t.Helper()
	r := NewReader(strings.NewReader(input), chunkSize)
	var chunks []Chunk
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
}

func concat(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.Write(c.Data)
	}
	return sb.String()
}

func TestReader_TwoChunks(t *testing.T) {
	input := "3 1 4 1 5 9 2 6"
	chunks := collect(t, input, 8)

	require.Len(t, chunks, 2)
	assert.Equal(t, "3 1 4 1 ", string(chunks[0].Data))
	assert.Equal(t, "5 9 2 6", string(chunks[1].Data))
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 1, chunks[1].Seq)
	assert.Equal(t, input, concat(chunks))
}

func TestReader_Empty(t *testing.T) {
	assert.Empty(t, collect(t, "", 4))
}

func TestReader_NoDelimiterIsOneChunk(t *testing.T) {
	input := strings.Repeat("7", 1000)
	chunks := collect(t, input, 16)
	require.Len(t, chunks, 1)
	assert.Equal(t, input, string(chunks[0].Data))
}

func TestReader_TokenLongerThanChunk(t *testing.T) {
	long := strings.Repeat("9", 50)
	input := "1 " + long + " 2,3"
	chunks := collect(t, input, 4)

	assert.Equal(t, input, concat(chunks))
	var holders int
	for _, c := range chunks {
		for _, tok := range splitTokens(string(c.Data)) {
			if strings.HasPrefix(tok, "99") {
				assert.Equal(t, long, tok, "long token must never be split")
				holders++
			}
		}
	}
	assert.Equal(t, 1, holders)
}

func TestReader_CommaAndNewlineDelimiters(t *testing.T) {
	input := "10,20\n30\t40,50"
	chunks := collect(t, input, 3)
	assert.Equal(t, input, concat(chunks))
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, IsDelimiter(c.Data[len(c.Data)-1]), "chunk %q must end on a delimiter", c.Data)
	}
}

func TestReader_ChunksDoNotAlias(t *testing.T) {
	chunks := collect(t, "1 2 3 4 5 6 7 8 9 10 11 12", 4)
	require.Greater(t, len(chunks), 2)
	before := string(chunks[0].Data)
	for i := range chunks[1:] {
		for j := range chunks[i+1].Data {
			chunks[i+1].Data[j] = 'x'
		}
	}
	assert.Equal(t, before, string(chunks[0].Data))
}

func TestReader_DefaultChunkSize(t *testing.T) {
	r := NewReader(strings.NewReader(""), 0)
	assert.Equal(t, DefaultChunkSize, r.chunkSize)
}

func TestReader_ReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	r := NewReader(iotest.ErrReader(boom), 8)
	_, err := r.Next()
	assert.ErrorIs(t, err, boom)
}

func TestReader_OneByteReads(t *testing.T) {
	input := "12 345,6789 0 11"
	r := NewReader(iotest.OneByteReader(strings.NewReader(input)), 5)
	var sb strings.Builder
	for {
		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sb.Write(c.Data)
	}
	assert.Equal(t, input, sb.String())
}

// randomInput builds numeric tokens separated by runs of mixed delimiters.
func randomInput(rng *rand.Rand, tokens int) (string, []string) {
	seps := []string{" ", ",", "\n", "  ", ", ", "\t", " ,\n"}
	var sb strings.Builder
	want := make([]string, 0, tokens)
	for i := range tokens {
		var tok string
		switch rng.IntN(3) {
		case 0:
			tok = strconv.Itoa(rng.IntN(1_000_000) - 500_000)
		case 1:
			tok = strconv.FormatFloat(rng.NormFloat64()*1e6, 'g', -1, 64)
		default:
			tok = strconv.FormatFloat(rng.Float64(), 'e', 8, 64)
		}
		want = append(want, tok)
		sb.WriteString(tok)
		if i < tokens-1 || rng.IntN(2) == 0 {
			sb.WriteString(seps[rng.IntN(len(seps))])
		}
	}
	return sb.String(), want
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r < 256 && IsDelimiter(byte(r)) })
}

func TestReader_NeverSplitsTokens(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for iter := range 200 {
		input, want := randomInput(rng, 1+rng.IntN(300))
		chunkSize := 1 + rng.IntN(64)

		chunks := collect(t, input, chunkSize)
		require.Equal(t, input, concat(chunks), "iteration %d: concatenation must reproduce input", iter)

		var got []string
		for i, c := range chunks {
			require.NotEmpty(t, c.Data)
			if i < len(chunks)-1 {
				require.True(t, IsDelimiter(c.Data[len(c.Data)-1]),
					"iteration %d chunk %d (size %d) ends mid-token: %q", iter, i, chunkSize, c.Data)
			}
			got = append(got, splitTokens(string(c.Data))...)
		}
		require.Equal(t, want, got, "iteration %d", iter)
	}
}

type recordingPusher struct {
	chunks   []Chunk
	finished int
	failAt   int
}

func (p *recordingPusher) Push(_ context.Context, c Chunk) error {
	if p.failAt > 0 && len(p.chunks)+1 == p.failAt {
		return errors.New("queue rejected chunk")
	}
	p.chunks = append(p.chunks, c)
	return nil
}

func (p *recordingPusher) MarkFinished() { p.finished++ }

func TestRun_PushesAllAndFinishes(t *testing.T) {
	input := "5 3 8 1 9 2 7 4 6 0"
	p := &recordingPusher{}
	stats, err := Run(context.Background(), strings.NewReader(input), 6, p)
	require.NoError(t, err)

	assert.Equal(t, 1, p.finished)
	assert.Equal(t, len(p.chunks), stats.Chunks)
	assert.Equal(t, int64(len(input)), stats.Bytes)
	assert.Equal(t, input, concat(p.chunks))
}

func TestRun_EmptyInput(t *testing.T) {
	p := &recordingPusher{}
	stats, err := Run(context.Background(), strings.NewReader(""), 6, p)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Equal(t, 1, p.finished)
}

func TestRun_FinishesOnPushError(t *testing.T) {
	p := &recordingPusher{failAt: 2}
	_, err := Run(context.Background(), strings.NewReader("1 2 3 4 5 6 7 8"), 2, p)
	require.Error(t, err)
	assert.Equal(t, 1, p.finished)
}

func TestRun_FinishesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &recordingPusher{}
	_, err := Run(ctx, bytes.NewReader([]byte("1 2 3")), 2, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.finished)
	assert.Empty(t, p.chunks)
}

func BenchmarkReader(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	input, _ := randomInput(rng, 200_000)
	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for b.Loop() {
		r := NewReader(strings.NewReader(input), 64*1024)
		for {
			if _, err := r.Next(); err != nil {
				break
			}
		}
	}
}
