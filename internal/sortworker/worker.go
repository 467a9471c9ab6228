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

// Package sortworker turns raw chunks into sorted spill files. Several workers
// share one work queue; each chunk is handled start to finish by a single
// worker and nothing but the spill registry is shared between them.
package sortworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bigsort/internal/chunker"
	"github.com/cardinalhq/bigsort/internal/logctx"
	"github.com/cardinalhq/bigsort/internal/spillers"
	"github.com/cardinalhq/bigsort/internal/workqueue"
)

// ErrSpillWrite wraps failures to create or write a spill file.
var ErrSpillWrite = errors.New("spill write failed")

// Source is the consumer side of the work queue.
type Source interface {
	Pop(ctx context.Context) (chunker.Chunk, error)
}

// Registry allocates spill names and records finished spills.
type Registry interface {
	AllocateName(workerID int) string
	Register(spill spillers.SpillFile) error
}

// Stats counts what a worker did. Stats from several workers are combined
// with Add.
type Stats struct {
	Chunks      int
	Tokens      int64
	ParseErrors int64
	Records     int64
	SpillFiles  int
	SpillErrors int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Chunks += o.Chunks
	s.Tokens += o.Tokens
	s.ParseErrors += o.ParseErrors
	s.Records += o.Records
	s.SpillFiles += o.SpillFiles
	s.SpillErrors += o.SpillErrors
}

// Worker pulls chunks until the queue reports end of work.
type Worker struct {
	id       int
	source   Source
	registry Registry
	spiller  spillers.Spiller
	strict   bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithStrict makes a spill write failure end the worker with an error
// instead of dropping the chunk and moving on.
func WithStrict(strict bool) Option {
	return func(w *Worker) { w.strict = strict }
}

// New creates a worker. id only needs to be unique within the pool; it goes
// into spill file names and log lines.
func New(id int, source Source, registry Registry, spiller spillers.Spiller, opts ...Option) *Worker {
	w := &Worker{
		id:       id,
		source:   source,
		registry: registry,
		spiller:  spiller,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker's identity.
func (w *Worker) ID() int { return w.id }

// Run processes chunks until end of work, cancellation, or (in strict mode)
// a spill failure.
func (w *Worker) Run(ctx context.Context) (Stats, error) {
	ctx, ll := logctx.With(ctx, slog.Int("worker", w.id))

	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		chunk, err := w.source.Pop(ctx)
		if errors.Is(err, workqueue.ErrEndOfWork) {
			ll.Debug("Worker finished", slog.Int("chunks", stats.Chunks), slog.Int64("records", stats.Records))
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		cs, err := w.Process(ctx, chunk)
		stats.Add(cs)
		if err != nil {
			return stats, err
		}
	}
}

// Process parses, sorts, and spills one chunk. A failed spill write is
// logged and counted; it only returns an error in strict mode. Chunks with
// no valid numbers produce no spill file.
func (w *Worker) Process(ctx context.Context, chunk chunker.Chunk) (Stats, error) {
	start := time.Now()
	ll := logctx.FromContext(ctx)
	attrs := otelmetric.WithAttributes(attribute.Int("worker", w.id))

	stats := Stats{Chunks: 1}
	parsed, err := Parse(ctx, chunk.Data)
	stats.Tokens = parsed.Tokens
	stats.ParseErrors = parsed.ParseErrors
	tokensCounter.Add(ctx, parsed.Tokens, attrs)
	if parsed.ParseErrors > 0 {
		parseErrorsCounter.Add(ctx, parsed.ParseErrors, attrs)
		ll.Debug("Dropped malformed tokens", slog.Int("chunk", chunk.Seq), slog.Int64("count", parsed.ParseErrors))
	}
	if err != nil {
		return stats, err
	}

	values := parsed.Values
	if len(values) == 0 {
		return stats, nil
	}
	slices.Sort(values)

	path := w.registry.AllocateName(w.id)
	if err := w.spiller.WriteSpillFile(path, values); err != nil {
		stats.SpillErrors++
		spillErrorsCounter.Add(ctx, 1, attrs)
		ll.Error("Failed to write spill file, chunk data lost",
			slog.Int("chunk", chunk.Seq),
			slog.String("path", path),
			slog.Int("values", len(values)),
			slog.Any("error", err))
		if w.strict {
			return stats, fmt.Errorf("%w: chunk %d: %w", ErrSpillWrite, chunk.Seq, err)
		}
		return stats, nil
	}

	if err := w.registry.Register(spillers.SpillFile{
		Path:        path,
		RecordCount: int64(len(values)),
		WorkerID:    w.id,
	}); err != nil {
		return stats, fmt.Errorf("register spill %s: %w", path, err)
	}
	stats.Records = int64(len(values))
	stats.SpillFiles = 1

	chunkDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	ll.Debug("Spilled chunk",
		slog.Int("chunk", chunk.Seq),
		slog.String("path", path),
		slog.Int("values", len(values)),
		slog.Duration("elapsed", time.Since(start)))
	return stats, nil
}
