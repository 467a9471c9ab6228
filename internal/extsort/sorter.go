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

// Package extsort runs a complete external sort: it splits the input into
// chunks, sorts and spills them on a pool of workers, and merges the spills
// into the output once every worker has finished.
package extsort

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/bigsort/config"
	"github.com/cardinalhq/bigsort/internal/chunker"
	"github.com/cardinalhq/bigsort/internal/helpers"
	"github.com/cardinalhq/bigsort/internal/logctx"
	"github.com/cardinalhq/bigsort/internal/mergesort"
	"github.com/cardinalhq/bigsort/internal/output"
	"github.com/cardinalhq/bigsort/internal/sortworker"
	"github.com/cardinalhq/bigsort/internal/spillers"
	"github.com/cardinalhq/bigsort/internal/spillstore"
	"github.com/cardinalhq/bigsort/internal/workqueue"
)

var (
	// ErrInputUnavailable means the input could not be opened or read.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrOutputUnavailable means the output could not be created or written.
	ErrOutputUnavailable = errors.New("output unavailable")
)

// StdinPath as an input path reads standard input.
const StdinPath = "-"

// Summary reports what a run did.
type Summary struct {
	RunID            string
	Workers          int
	Chunks           int
	BytesRead        int64
	Tokens           int64
	ParseErrors      int64
	RecordsSpilled   int64
	SpillFiles       int
	SpillWriteErrors int
	SpillsSkipped    int
	SpillsTruncated  int
	RecordsWritten   int64
	Elapsed          time.Duration
}

// LogValue lets a Summary be logged as a group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("runID", s.RunID),
		slog.Int("workers", s.Workers),
		slog.Int("chunks", s.Chunks),
		slog.Int64("bytesRead", s.BytesRead),
		slog.Int64("tokens", s.Tokens),
		slog.Int64("parseErrors", s.ParseErrors),
		slog.Int64("recordsSpilled", s.RecordsSpilled),
		slog.Int("spillFiles", s.SpillFiles),
		slog.Int("spillWriteErrors", s.SpillWriteErrors),
		slog.Int("spillsSkipped", s.SpillsSkipped+s.SpillsTruncated),
		slog.Int64("recordsWritten", s.RecordsWritten),
		slog.Duration("elapsed", s.Elapsed),
	)
}

// Sorter runs sorts with a fixed configuration. A Sorter holds no per-run
// state and may run several sorts concurrently.
type Sorter struct {
	cfg     config.SortConfig
	spiller spillers.Spiller
}

// New validates cfg and returns a Sorter.
func New(cfg config.SortConfig) (*Sorter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spiller, err := spillers.New(cfg.SpillFormat)
	if err != nil {
		return nil, err
	}
	return &Sorter{cfg: cfg, spiller: spiller}, nil
}

// Sort reads whitespace or comma separated numbers from inputPath and writes
// them in ascending order to outputPath. Malformed tokens are dropped and
// counted. The output only appears once the whole run has succeeded.
func (s *Sorter) Sort(ctx context.Context, inputPath, outputPath string) (summary Summary, err error) {
	start := time.Now()
	tracer := otel.Tracer("github.com/cardinalhq/bigsort/internal/extsort")
	ctx, span := tracer.Start(ctx, "bigsort.sort")
	defer span.End()

	workers := s.cfg.Workers()
	summary.Workers = workers
	span.SetAttributes(
		attribute.String("input", inputPath),
		attribute.String("output", outputPath),
		attribute.Int("workers", workers),
		attribute.Int("chunk_size_bytes", s.cfg.ChunkSizeBytes),
		attribute.String("spill_format", s.spiller.Format()),
	)

	defer func() {
		summary.Elapsed = time.Since(start)
		result := "success"
		if err != nil {
			result = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, "sort failed")
		}
		runDuration.Record(ctx, summary.Elapsed.Seconds(),
			otelmetric.WithAttributes(attribute.String("result", result)))
	}()

	input, inputSize, err := openInput(inputPath)
	if err != nil {
		return summary, err
	}
	defer func() { _ = input.Close() }()

	store, err := spillstore.New(s.cfg.TmpDir)
	if err != nil {
		return summary, err
	}
	summary.RunID = store.RunID()
	ctx, ll := logctx.With(ctx, slog.String("runID", store.RunID()))
	defer s.finishStore(ll, store)

	if inputSize > 0 {
		if err := helpers.CheckFreeSpace(store.Dir(), uint64(inputSize)); err != nil {
			ll.Warn("Spill directory may run out of space", slog.Any("error", err))
		}
	}

	sink, err := output.New(s.cfg.OutputFormat, outputPath, s.cfg.OutputDelimiter)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			if aerr := sink.Abort(); aerr != nil {
				ll.Warn("Failed to remove partial output", slog.Any("error", aerr))
			}
		}
	}()

	ll.Info("Starting sort",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
		slog.Int("workers", workers),
		slog.Int("queueCapacity", s.cfg.QueueCapacity()),
		slog.String("spillDir", store.Dir()))

	if err := s.sortPhase(ctx, input, store, workers, &summary); err != nil {
		return summary, err
	}

	ll.Info("Sort phase complete, merging",
		slog.Int("spillFiles", summary.SpillFiles),
		slog.Int64("records", summary.RecordsSpilled))

	ms, err := mergesort.Merge(ctx, store.List(), s.spiller, sink)
	summary.SpillsSkipped = ms.SpillsSkipped
	summary.SpillsTruncated = ms.SpillsTruncated
	summary.RecordsWritten = ms.Records
	if err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
		}
		return summary, err
	}

	if err := sink.Close(); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}
	committed = true

	summary.Elapsed = time.Since(start)
	ll.Info("Sort complete", slog.Any("summary", summary))
	return summary, nil
}

// sortPhase runs the chunk reader and the worker pool and returns once all
// of them have stopped.
func (s *Sorter) sortPhase(ctx context.Context, input io.Reader, store *spillstore.Store, workers int, summary *Summary) error {
	q := workqueue.New[chunker.Chunk]("chunks", s.cfg.QueueCapacity())
	defer q.Close()
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu          sync.Mutex
		workerStats sortworker.Stats
		readStats   chunker.Stats
	)

	g.Go(func() error {
		rs, err := chunker.Run(gctx, input, s.cfg.ChunkSizeBytes, q)
		readStats = rs
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("%w: %w", ErrInputUnavailable, err)
		}
		return err
	})

	for id := range workers {
		w := sortworker.New(id, q, store, s.spiller, sortworker.WithStrict(s.cfg.Strict))
		g.Go(func() error {
			ws, err := w.Run(gctx)
			mu.Lock()
			workerStats.Add(ws)
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()

	summary.Chunks = readStats.Chunks
	summary.BytesRead = readStats.Bytes
	summary.Tokens = workerStats.Tokens
	summary.ParseErrors = workerStats.ParseErrors
	summary.RecordsSpilled = workerStats.Records
	summary.SpillFiles = workerStats.SpillFiles
	summary.SpillWriteErrors = workerStats.SpillErrors

	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Sorter) finishStore(ll *slog.Logger, store *spillstore.Store) {
	if s.cfg.KeepSpills {
		ll.Info("Keeping spill files", slog.String("dir", store.Dir()), slog.Int("count", store.Len()))
		return
	}
	if err := store.Cleanup(); err != nil {
		ll.Warn("Failed to clean up spill files", slog.String("dir", store.Dir()), slog.Any("error", err))
	}
}

// openInput opens path for reading. It returns the file size when known, or
// -1 for standard input and other streams.
func openInput(path string) (io.ReadCloser, int64, error) {
	if path == StdinPath {
		return io.NopCloser(os.Stdin), -1, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %w", ErrInputUnavailable, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %s is a directory", ErrInputUnavailable, path)
	}
	if !info.Mode().IsRegular() {
		return f, -1, nil
	}
	return f, info.Size(), nil
}
