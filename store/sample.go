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

import "golang.org/x/exp/slices"

// sampleLocked implements reservoir sampling (Algorithm R) over every
// key ever Put, called with s.mu held. The reservoir approximates the
// key distribution well enough for PartitionKeys without requiring a
// full scan of a large store.
//
// The reservoir alone cannot guarantee spec.md §4.2's "first boundary
// <= minimum stored key, last >= maximum": a key surviving eviction is
// a matter of chance once total Puts exceed the cap. s.minKey/s.maxKey
// track the true extremes unconditionally, outside the reservoir, so
// sampleCandidatesLocked can force them into the candidate set.
func (s *Store) sampleLocked(key []byte) {
	s.sampleSeen++
	if s.minKey == nil || s.cmp(key, s.minKey) < 0 {
		s.minKey = append([]byte(nil), key...)
	}
	if s.maxKey == nil || s.cmp(key, s.maxKey) > 0 {
		s.maxKey = append([]byte(nil), key...)
	}

	if len(s.reservoir) < s.reservoirCap {
		s.reservoir = append(s.reservoir, append([]byte(nil), key...))
		return
	}
	j := s.rng.Intn(s.sampleSeen)
	if j < s.reservoirCap {
		s.reservoir[j] = append([]byte(nil), key...)
	}
}

// PartitionKeys returns n+1 boundary keys approximately equally
// partitioning the store's current key distribution (spec.md §4.2). It
// returns an empty slice iff n == 0.
func (s *Store) PartitionKeys(n int) ([][]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n < 0 {
		return nil, errInvalidPartitionCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.poisoned {
		return nil, ErrPoisoned
	}

	candidates, err := s.sampleCandidatesLocked(n)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// Empty store: every boundary degenerates to the same
		// (empty) key, satisfying "first <= min, last >= max" and
		// monotonicity vacuously.
		out := make([][]byte, n+1)
		for i := range out {
			out[i] = []byte{}
		}
		return out, nil
	}

	slices.SortFunc(candidates, func(a, b []byte) bool {
		return s.cmp(a, b) < 0
	})
	out := make([][]byte, n+1)
	last := len(candidates) - 1
	for i := 0; i <= n; i++ {
		idx := i * last / n
		out[i] = candidates[idx]
	}
	return out, nil
}

// sampleCandidatesLocked returns the reservoir (with the true running
// min/max forced in, since eviction can drop either from the sample
// once total Puts exceed the reservoir's capacity) if it already holds
// enough keys to produce n+1 well-spread boundaries, otherwise falls
// back to a full scan of the memtable and every run. The scan runs
// when fewer than n+1 keys have been Put, or when n+1 exceeds the
// reservoir's capacity, whatever the store's size.
func (s *Store) sampleCandidatesLocked(n int) ([][]byte, error) {
	if len(s.reservoir) >= n+1 {
		out := make([][]byte, len(s.reservoir), len(s.reservoir)+2)
		copy(out, s.reservoir)
		// Appending unconditionally (rather than checking whether
		// min/max already survived eviction) is harmless: duplicates
		// just sort adjacent to themselves.
		out = append(out, s.minKey, s.maxKey)
		return out, nil
	}

	var all [][]byte
	for _, e := range s.mem {
		all = append(all, e.key)
	}
	for _, r := range s.runs {
		rr, err := openRun(r)
		if err != nil {
			return nil, &ErrIO{Op: "sample", Err: err}
		}
		for {
			e, ok, err := rr.next()
			if err != nil {
				rr.close()
				return nil, &ErrIO{Op: "sample", Err: err}
			}
			if !ok {
				break
			}
			all = append(all, e.key)
		}
		rr.close()
	}
	return all, nil
}
