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

// Package chunker splits a stream of delimited numeric tokens into chunks of
// roughly a target size, never cutting a token in two.
package chunker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bigsort/internal/logctx"
)

// DefaultChunkSize is used when a non-positive chunk size is requested.
const DefaultChunkSize = 10 * 1024 * 1024

// delimiters separate tokens. Space and comma are the documented input
// separators; the remaining ASCII whitespace makes line-oriented files work.
const delimiters = " ,\t\n\r\v\f"

var delimiterTable = func() (t [256]bool) {
	for i := 0; i < len(delimiters); i++ {
		t[delimiters[i]] = true
	}
	return t
}()

// IsDelimiter reports whether b separates two tokens.
func IsDelimiter(b byte) bool {
	return delimiterTable[b]
}

// Chunk is a slice of the input that starts and ends on a token boundary.
// Data is owned by the chunk; the reader never touches it again.
type Chunk struct {
	Seq  int
	Data []byte
}

// Reader produces chunks from an io.Reader. Concatenating every chunk's Data
// in Seq order reproduces the input exactly.
type Reader struct {
	r         io.Reader
	chunkSize int

	buf []byte
	eof bool
	seq int

	// clean is the length of the buffer prefix already known to hold no
	// delimiter, so an oversized token is not rescanned on every read.
	clean int
}

// NewReader returns a Reader that reads chunkSize bytes at a time.
func NewReader(r io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{r: r, chunkSize: chunkSize}
}

// Next returns the next chunk, or io.EOF after the last one.
//
// Each call reads up to chunkSize more bytes into the accumulation buffer.
// Once the buffer holds at least chunkSize bytes, everything up to and
// including its last delimiter is returned and the rest seeds the next
// chunk. A buffer without any delimiter keeps growing, so a delimiter-free
// input comes back as one chunk. At end of input whatever remains is
// returned as the final chunk.
func (c *Reader) Next() (Chunk, error) {
	for !c.eof {
		start := len(c.buf)
		c.buf = slices.Grow(c.buf, c.chunkSize)
		n, err := io.ReadFull(c.r, c.buf[start:start+c.chunkSize])
		c.buf = c.buf[:start+n]
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			c.eof = true
		case err != nil:
			return Chunk{}, fmt.Errorf("read input: %w", err)
		}

		if len(c.buf) < c.chunkSize {
			continue
		}
		cut := bytes.LastIndexAny(c.buf[c.clean:], delimiters)
		if cut < 0 {
			c.clean = len(c.buf)
			continue
		}
		return c.emit(c.clean + cut + 1), nil
	}

	if len(c.buf) == 0 {
		return Chunk{}, io.EOF
	}
	return c.emit(len(c.buf)), nil
}

// emit hands out buf[:n] and moves the remainder into a fresh buffer so the
// returned chunk shares no memory with later reads.
func (c *Reader) emit(n int) Chunk {
	data := c.buf[:n:n]
	rest := c.buf[n:]
	c.buf = nil
	// Everything after the cut follows the last delimiter.
	c.clean = len(rest)
	if len(rest) > 0 {
		c.buf = make([]byte, len(rest), len(rest)+c.chunkSize)
		copy(c.buf, rest)
	}
	chunk := Chunk{Seq: c.seq, Data: data}
	c.seq++
	return chunk
}

// Pusher is the producer side of the work queue.
type Pusher interface {
	Push(ctx context.Context, chunk Chunk) error
	MarkFinished()
}

// Stats describes a completed Run.
type Stats struct {
	Chunks int
	Bytes  int64
}

// Run reads every chunk from r and pushes it to q. q.MarkFinished is called
// when Run returns, whether the input ended, reading failed, or ctx was
// cancelled, so consumers always reach end of work.
func Run(ctx context.Context, r io.Reader, chunkSize int, q Pusher) (Stats, error) {
	defer q.MarkFinished()

	ll := logctx.FromContext(ctx)
	reader := NewReader(r, chunkSize)
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		size := len(chunk.Data)
		if err := q.Push(ctx, chunk); err != nil {
			return stats, fmt.Errorf("enqueue chunk %d: %w", chunk.Seq, err)
		}
		stats.Chunks++
		stats.Bytes += int64(size)
		chunksCounter.Add(ctx, 1)
		bytesCounter.Add(ctx, int64(size), otelmetric.WithAttributes(attribute.Bool("oversized", size > reader.chunkSize)))
		ll.Debug("Enqueued chunk", "seq", chunk.Seq, "bytes", size)
	}

	ll.Info("Finished reading input", "chunks", stats.Chunks, "bytes", stats.Bytes)
	return stats, nil
}
