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

import "sort"

// Cursor iterates the entries of one Range call in ascending key
// order. It must be closed after use.
type Cursor struct {
	it         *mergeIterator
	cmp        CompareFunc
	start, end []byte
	startIncl  bool
	endIncl    bool
	hasEnd     bool
}

// Next advances the cursor and returns the next (key, row) pair in the
// requested interval, or ok=false once the interval is exhausted.
func (c *Cursor) Next() (key, row []byte, ok bool, err error) {
	for {
		e, ok, err := c.it.next()
		if err != nil || !ok {
			return nil, nil, false, err
		}
		rel := c.cmp(e.key, c.start)
		if rel < 0 || (rel == 0 && !c.startIncl) {
			// Below the start of the interval: this can only happen
			// for an on-disk run, since the memtable source is
			// already pre-filtered. Skip and keep scanning.
			continue
		}
		if c.hasEnd {
			rel := c.cmp(e.key, c.end)
			if rel > 0 || (rel == 0 && !c.endIncl) {
				// Past the end of the interval; since entries arrive
				// in ascending order, nothing further can match.
				return nil, nil, false, nil
			}
		}
		return e.key, e.row, true, nil
	}
}

// Close releases the cursor's run file handles.
func (c *Cursor) Close() error {
	return c.it.close()
}

// Range returns a Cursor over entries whose keys fall in
// [start, end] per startIncl/endIncl, in ascending key order with
// insertion-order tiebreak (spec.md §4.2). A nil end means unbounded.
func (s *Store) Range(start []byte, startIncl bool, end []byte, endIncl bool) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.poisoned {
		return nil, ErrPoisoned
	}

	memSnapshot := append([]entry(nil), s.mem...)
	sort.SliceStable(memSnapshot, func(i, j int) bool {
		return s.cmp(memSnapshot[i].key, memSnapshot[j].key) < 0
	})
	lo := sort.Search(len(memSnapshot), func(i int) bool {
		rel := s.cmp(memSnapshot[i].key, start)
		if startIncl {
			return rel >= 0
		}
		return rel > 0
	})
	memSnapshot = memSnapshot[lo:]

	sources := make([]source, 0, len(s.runs)+1)
	sources = append(sources, &sliceSource{entries: memSnapshot})
	opened := sources[:1:1]
	for _, r := range s.runs {
		if end != nil && s.cmp(r.min, end) > 0 && !(s.cmp(r.min, end) == 0 && endIncl) {
			continue
		}
		rr, err := openRun(r)
		if err != nil {
			for _, o := range opened[1:] {
				o.closeSource()
			}
			return nil, &ErrIO{Op: "range-open", Err: err}
		}
		opened = append(opened, newRunSource(rr))
	}
	sources = opened

	it, err := newMergeIterator(s.cmp, sources)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		it:        it,
		cmp:       s.cmp,
		start:     start,
		end:       end,
		startIncl: startIncl,
		endIncl:   endIncl,
		hasEnd:    end != nil,
	}, nil
}
