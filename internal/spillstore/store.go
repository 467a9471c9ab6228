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

// Package spillstore owns the temporary sorted-run files of one sort run:
// it hands out unique names, keeps the authoritative list of completed spills
// for the merge phase, and removes them when the run is over.
package spillstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/bigsort/internal/idgen"
	"github.com/cardinalhq/bigsort/internal/spillers"
)

// DirPrefix starts the name of every run directory. The sweeper uses it to
// find directories left behind by runs that never cleaned up.
const DirPrefix = "bigsort-"

// FileExt is the extension of every spill file name.
const FileExt = ".spill"

// Store tracks the spill files of a single run. AllocateName and Register may
// be called concurrently from any number of workers.
type Store struct {
	runID string
	dir   string

	seq atomic.Uint64

	mu     sync.Mutex
	spills []spillers.SpillFile
	closed bool
}

// New creates a run directory under tmpDir and returns a Store rooted there.
// An empty tmpDir means os.TempDir().
func New(tmpDir string) (*Store, error) {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	runID := idgen.NewRunID()
	dir := filepath.Join(tmpDir, DirPrefix+runID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create spill directory: %w", err)
	}
	return &Store{runID: runID, dir: dir}, nil
}

// RunID returns the identifier embedded in the run directory name.
func (s *Store) RunID() string { return s.runID }

// Dir returns the run directory.
func (s *Store) Dir() string { return s.dir }

// AllocateName returns a path no other caller of this store, or of any other
// store, will receive. The run directory isolates concurrent runs; the
// counter isolates workers within a run.
func (s *Store) AllocateName(workerID int) string {
	n := s.seq.Add(1)
	return filepath.Join(s.dir, fmt.Sprintf("w%d-%06d%s", workerID, n, FileExt))
}

// Register records a completely written spill file so the merge phase will
// read it.
func (s *Store) Register(spill spillers.SpillFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("spill store %s is closed", s.runID)
	}
	s.spills = append(s.spills, spill)
	spillFilesCounter.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.Int("worker", spill.WorkerID),
	))
	return nil
}

// List returns the registered spill files in registration order.
func (s *Store) List() []spillers.SpillFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]spillers.SpillFile, len(s.spills))
	copy(out, s.spills)
	return out
}

// Len returns the number of registered spill files.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spills)
}

// Cleanup removes every file in the run directory, including partial files of
// writers that failed, and then the directory itself. It is safe to call more
// than once.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	s.closed = true
	s.spills = nil
	s.mu.Unlock()

	var errs *multierror.Error
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		errs = multierror.Append(errs, fmt.Errorf("read spill directory: %w", err))
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, FileExt) && !strings.HasSuffix(name, FileExt+spillers.PartialSuffix) {
			slog.Warn("Unexpected file in spill directory", slog.String("dir", s.dir), slog.String("name", name))
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			errs = multierror.Append(errs, err)
		}
	}
	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}
