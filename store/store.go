// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package store implements the per-shuffle sorted multimap described
// in spec.md §4.2: an in-memory memtable flushed to compressed,
// immutable run files on disk, background-merged to bound read
// amplification, with a reservoir-sampled estimate of the key
// distribution for partition-boundary queries.
//
// Store is oblivious to logical row/key types; it only requires a
// comparator over encoded key bytes, supplied by the caller (normally
// codec.Order).
package store

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// CompareFunc orders two encoded keys, following the bytes.Compare
// convention: negative if a < b, zero if equal, positive if a > b.
type CompareFunc func(a, b []byte) int

type entry struct {
	key, row []byte
	seq      uint64
}

// Option configures a Store at construction, following the donor
// codebase's tenant.Option convention (cmd/snellerd/server.go:
// tenant.WithLogger, tenant.WithRemote, ...).
type Option func(*Store)

// WithLogger directs flush/merge diagnostics to l.
func WithLogger(l Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithFlushThreshold sets the memtable size, in bytes of key+row
// payload, at which Put flushes it to a new run file. The default is
// 4 MiB.
func WithFlushThreshold(n int) Option {
	return func(s *Store) { s.flushThreshold = n }
}

// WithMergeThreshold sets the run count above which a flush starts a
// background merge: a merge begins once more than n runs are live.
// The default is 4.
func WithMergeThreshold(n int) Option {
	return func(s *Store) { s.mergeThreshold = n }
}

// WithReservoirSize sets the number of keys kept for partition-bound
// sampling. The default is 4096.
func WithReservoirSize(n int) Option {
	return func(s *Store) { s.reservoirCap = n }
}

const (
	defaultFlushThreshold = 4 << 20
	defaultMergeThreshold = 4
	defaultReservoirSize  = 4096
)

// Store is one shuffle's persistent sorted multimap.
type Store struct {
	dir    string
	cmp    CompareFunc
	logger Logger

	flushThreshold int
	mergeThreshold int
	reservoirCap   int

	mu       sync.Mutex
	mem      []entry
	memBytes int
	seq      uint64
	runSeq   int
	runs     []*run
	merging  bool

	reservoir  [][]byte
	sampleSeen int
	rng        *rand.Rand
	minKey     []byte
	maxKey     []byte

	poisoned  bool
	poisonErr error
	closed    bool

	wg sync.WaitGroup
}

// New creates a Store backed by a fresh directory under root, named by
// id (normally the shuffle identifier's text form; see shuffleid.ID.String).
func New(root, id string, cmp CompareFunc, opts ...Option) (*Store, error) {
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	var seed [8]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		return nil, err
	}
	s := &Store{
		dir:            dir,
		cmp:            cmp,
		flushThreshold: defaultFlushThreshold,
		mergeThreshold: defaultMergeThreshold,
		reservoirCap:   defaultReservoirSize,
		rng:            rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(seed[:])))),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Put inserts (key, row) in key order, with no deduplication. It
// returns *ErrIO (and poisons the Store) if a size-triggered flush
// fails.
func (s *Store) Put(key, row []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.poisoned {
		return ErrPoisoned
	}

	s.seq++
	k := append([]byte(nil), key...)
	r := append([]byte(nil), row...)
	s.mem = append(s.mem, entry{key: k, row: r, seq: s.seq})
	s.memBytes += len(k) + len(r)
	s.sampleLocked(k)

	if s.memBytes >= s.flushThreshold {
		if err := s.flushLocked(); err != nil {
			return s.poisonLocked("flush", err)
		}
	}
	return nil
}

func (s *Store) poisonLocked(op string, err error) error {
	s.poisoned = true
	s.poisonErr = err
	s.logf("shuffle store %s: poisoned during %s: %v", s.dir, op, err)
	return &ErrIO{Op: op, Err: err}
}

func (s *Store) flushLocked() error {
	if len(s.mem) == 0 {
		return nil
	}
	sort.SliceStable(s.mem, func(i, j int) bool {
		return s.cmp(s.mem[i].key, s.mem[j].key) < 0
	})
	s.runSeq++
	r, err := writeRun(s.dir, s.runSeq, s.mem)
	if err != nil {
		return err
	}
	s.runs = append(s.runs, r)
	s.mem = nil
	s.memBytes = 0
	s.logf("shuffle store %s: flushed run %d (%d runs live)", s.dir, r.seq, len(s.runs))

	if len(s.runs) > s.mergeThreshold && !s.merging {
		s.merging = true
		s.wg.Add(1)
		go s.backgroundMerge()
	}
	return nil
}

// backgroundMerge collapses the oldest runs into one, bounding read
// amplification (spec.md §4.2). A failure here poisons the Store but,
// per spec.md §7, does not kill the server process.
func (s *Store) backgroundMerge() {
	defer s.wg.Done()

	s.mu.Lock()
	if len(s.runs) <= 1 {
		s.merging = false
		s.mu.Unlock()
		return
	}
	batch := append([]*run(nil), s.runs...)
	s.runSeq++
	mergedSeq := s.runSeq
	s.mu.Unlock()

	merged, err := s.mergeRuns(batch, mergedSeq)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.merging = false
	if err != nil {
		s.poisonLocked("merge", err)
		return
	}
	// Drop exactly the runs we merged; any new runs flushed while the
	// merge ran are appended after them and survive.
	remaining := s.runs[len(batch):]
	oldPaths := make([]string, len(batch))
	for i, r := range batch {
		oldPaths[i] = r.path
	}
	s.runs = append([]*run{merged}, remaining...)
	for _, p := range oldPaths {
		// Safe even if a concurrent Range still holds the file open:
		// unlink does not invalidate an already-open file descriptor
		// on POSIX systems.
		os.Remove(p)
	}
	s.logf("shuffle store %s: merged %d runs into run %d", s.dir, len(batch), merged.seq)
}

func (s *Store) mergeRuns(batch []*run, seq int) (*run, error) {
	srcs := make([]source, 0, len(batch))
	for _, r := range batch {
		rr, err := openRun(r)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, newRunSource(rr))
	}
	it, err := newMergeIterator(s.cmp, srcs)
	if err != nil {
		return nil, err
	}
	defer it.close()

	var all []entry
	for {
		e, ok, err := it.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, e)
	}
	return writeRun(s.dir, seq, all)
}

// Close releases all resources held by the Store and deletes its
// backing directory. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return os.RemoveAll(s.dir)
}
