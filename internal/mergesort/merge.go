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

// Package mergesort combines the sorted spill files of a run into a single
// ascending stream with a k-way heap merge. Only the head value of each spill
// is held in memory.
package mergesort

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bigsort/internal/logctx"
	"github.com/cardinalhq/bigsort/internal/spillers"
)

// ErrSpillOpen marks a spill file that could not be opened or read. Such
// spills are skipped, not fatal.
var ErrSpillOpen = errors.New("spill file unavailable")

const cancelCheckInterval = 1 << 14

// Sink receives the merged values in ascending order.
type Sink interface {
	Write(v float64) error
}

// Opener opens spill files for reading. spillers.Spiller satisfies it.
type Opener interface {
	OpenSpillFile(path string) (spillers.SpillReader, error)
}

// Stats describes one merge.
type Stats struct {
	Spills          int
	SpillsSkipped   int
	SpillsTruncated int
	Records         int64
	Elapsed         time.Duration
}

// cursor is the read position in one spill file.
type cursor struct {
	path   string
	reader spillers.SpillReader
	head   float64
}

// Merge streams every value of every spill to sink in ascending order. Spills
// that are empty or fail to open are skipped; a spill that fails mid-stream
// contributes what was read before the failure. Errors from sink and context
// cancellation end the merge.
func Merge(ctx context.Context, spills []spillers.SpillFile, opener Opener, sink Sink) (Stats, error) {
	start := time.Now()
	ctx, ll := logctx.With(ctx, slog.String("phase", "merge"))
	stats := Stats{Spills: len(spills)}

	cursors := make([]cursor, 0, len(spills))
	defer func() {
		for i := range cursors {
			closeCursor(ll, &cursors[i])
		}
	}()

	for _, spill := range spills {
		c, err := openCursor(spill.Path, opener)
		if err != nil {
			stats.SpillsSkipped++
			skippedCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", "open")))
			ll.Warn("Skipping spill file", slog.String("path", spill.Path), slog.Any("error", err))
			continue
		}
		if c == nil {
			stats.SpillsSkipped++
			skippedCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", "empty")))
			ll.Debug("Skipping empty spill file", slog.String("path", spill.Path))
			continue
		}
		cursors = append(cursors, *c)
	}

	h := &cursorHeap{cursors: cursors, idx: make([]int, len(cursors))}
	for i := range h.idx {
		h.idx[i] = i
	}
	heap.Init(h)

	for h.Len() > 0 {
		if stats.Records%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		top := h.idx[0]
		c := &cursors[top]
		if err := sink.Write(c.head); err != nil {
			return stats, fmt.Errorf("write merged value: %w", err)
		}
		stats.Records++

		v, err := c.reader.Next()
		switch {
		case err == nil:
			c.head = v
			heap.Fix(h, 0)
		case errors.Is(err, io.EOF):
			closeCursor(ll, c)
			heap.Pop(h)
		default:
			stats.SpillsTruncated++
			skippedCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", "read")))
			ll.Error("Spill file failed mid-stream, dropping its remaining values",
				slog.String("path", c.path), slog.Any("error", err))
			closeCursor(ll, c)
			heap.Pop(h)
		}
	}

	stats.Elapsed = time.Since(start)
	recordsCounter.Add(ctx, stats.Records)
	ll.Debug("Merge complete",
		slog.Int("spills", stats.Spills),
		slog.Int("skipped", stats.SpillsSkipped),
		slog.Int64("records", stats.Records),
		slog.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

// openCursor opens path and reads its first value. It returns a nil cursor
// and nil error for an empty file.
func openCursor(path string, opener Opener) (*cursor, error) {
	reader, err := opener.OpenSpillFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpillOpen, err)
	}
	v, err := reader.Next()
	if err != nil {
		_ = reader.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read first value: %w", ErrSpillOpen, err)
	}
	return &cursor{path: path, reader: reader, head: v}, nil
}

func closeCursor(ll *slog.Logger, c *cursor) {
	if c.reader == nil {
		return
	}
	if err := c.reader.Close(); err != nil {
		ll.Warn("Failed to close spill reader", slog.String("path", c.path), slog.Any("error", err))
	}
	c.reader = nil
}
