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

package store

import "container/heap"

// source yields entries in ascending key order (by the Store's
// comparator, tiebroken by seq); it is the common interface that
// sliceSource (a sorted memtable slice) and runSource (a wrapped
// runReader) both implement for the k-way merge below.
type source interface {
	// peek returns the next entry without consuming it.
	peek() (entry, bool, error)
	// advance consumes the entry returned by the most recent peek.
	advance() error
	closeSource() error
}

// sliceSource iterates a pre-sorted in-memory slice of entries.
type sliceSource struct {
	entries []entry
	i       int
}

func (s *sliceSource) peek() (entry, bool, error) {
	if s.i >= len(s.entries) {
		return entry{}, false, nil
	}
	return s.entries[s.i], true, nil
}

func (s *sliceSource) advance() error {
	s.i++
	return nil
}

func (s *sliceSource) closeSource() error { return nil }

// runSource adapts a runReader to source, buffering one entry of
// lookahead so peek/advance can be implemented without re-reading.
type runSource struct {
	rr      *runReader
	buf     entry
	hasBuf  bool
	atEnd   bool
	lastErr error
}

func newRunSource(rr *runReader) *runSource {
	return &runSource{rr: rr}
}

func (s *runSource) fill() {
	if s.hasBuf || s.atEnd || s.lastErr != nil {
		return
	}
	e, ok, err := s.rr.next()
	if err != nil {
		s.lastErr = err
		return
	}
	if !ok {
		s.atEnd = true
		return
	}
	s.buf, s.hasBuf = e, true
}

func (s *runSource) peek() (entry, bool, error) {
	s.fill()
	if s.lastErr != nil {
		return entry{}, false, s.lastErr
	}
	return s.buf, s.hasBuf, nil
}

func (s *runSource) advance() error {
	s.hasBuf = false
	return nil
}

func (s *runSource) closeSource() error { return s.rr.close() }

// mergeIterator performs the k-way merge across the memtable snapshot
// and one iterator per on-disk run that spec.md §4.2 describes for
// Range. Ties between equal keys are broken by ascending seq, giving
// stable insertion-order semantics across memtable and run boundaries.
type mergeIterator struct {
	cmp     CompareFunc
	sources []source
	h       *sourceHeap
	err     error
}

func newMergeIterator(cmp CompareFunc, sources []source) (*mergeIterator, error) {
	m := &mergeIterator{cmp: cmp, sources: sources, h: &sourceHeap{cmp: cmp}}
	for _, s := range sources {
		e, ok, err := s.peek()
		if err != nil {
			return nil, err
		}
		if ok {
			heap.Push(m.h, heapItem{src: s, e: e})
		}
	}
	heap.Init(m.h)
	return m, nil
}

// next returns the next entry in ascending order, or ok=false when all
// sources are exhausted.
func (m *mergeIterator) next() (entry, bool, error) {
	if m.err != nil {
		return entry{}, false, m.err
	}
	if m.h.Len() == 0 {
		return entry{}, false, nil
	}
	top := heap.Pop(m.h).(heapItem)
	if err := top.src.advance(); err != nil {
		m.err = err
		return entry{}, false, err
	}
	e, ok, err := top.src.peek()
	if err != nil {
		m.err = err
		return entry{}, false, err
	}
	if ok {
		heap.Push(m.h, heapItem{src: top.src, e: e})
	}
	return top.e, true, nil
}

func (m *mergeIterator) close() error {
	var first error
	for _, s := range m.sources {
		if err := s.closeSource(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type heapItem struct {
	src source
	e   entry
}

type sourceHeap struct {
	cmp   CompareFunc
	items []heapItem
}

func (h *sourceHeap) Len() int { return len(h.items) }
func (h *sourceHeap) Less(i, j int) bool {
	rel := h.cmp(h.items[i].e.key, h.items[j].e.key)
	if rel != 0 {
		return rel < 0
	}
	return h.items[i].e.seq < h.items[j].e.seq
}
func (h *sourceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *sourceHeap) Push(x interface{}) {
	h.items = append(h.items, x.(heapItem))
}
func (h *sourceHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
