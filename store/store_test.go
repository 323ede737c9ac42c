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

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"testing"
)

func bigEndianCmp(a, b []byte) int { return bytes.Compare(a, b) }

func keyFor(n int) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	return b[:]
}

func rowFor(n int) []byte { return []byte(fmt.Sprintf("row-%d", n)) }

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "shuffle", bigEndianCmp, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutRangeOrderAndTiebreak(t *testing.T) {
	s := newTestStore(t, WithFlushThreshold(1<<30))
	type put struct {
		key int
		row string
	}
	puts := []put{
		{5, "row-5"},
		{1, "row-1-first"},
		{3, "row-3"},
		{1, "row-1-second"},
		{4, "row-4"},
	}
	for _, p := range puts {
		if err := s.Put(keyFor(p.key), []byte(p.row)); err != nil {
			t.Fatalf("Put(%d): %v", p.key, err)
		}
	}

	cur, err := s.Range(keyFor(0), true, keyFor(10), true)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	defer cur.Close()

	var got []string
	for {
		k, row, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, fmt.Sprintf("%d:%s", binary.BigEndian.Uint32(k), row))
	}
	want := []string{"1:row-1-first", "1:row-1-second", "3:row-3", "4:row-4", "5:row-5"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRangeHalfOpenInterval(t *testing.T) {
	s := newTestStore(t, WithFlushThreshold(1<<30))
	for n := 0; n < 10; n++ {
		if err := s.Put(keyFor(n), rowFor(n)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	cur, err := s.Range(keyFor(2), true, keyFor(5), false)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	defer cur.Close()

	var got []int
	for {
		k, _, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, int(binary.BigEndian.Uint32(k)))
	}
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

// TestRangeAcrossRuns forces a flush partway through so Range has to
// merge the on-disk run with the live memtable, and verifies entries
// below the scan's start bound that live in a run are excluded (this
// once leaked through; see Cursor.Next).
func TestRangeAcrossRuns(t *testing.T) {
	s := newTestStore(t, WithFlushThreshold(1))
	for n := 0; n < 20; n++ {
		if err := s.Put(keyFor(n), rowFor(n)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	cur, err := s.Range(keyFor(15), true, keyFor(18), true)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	defer cur.Close()

	var got []int
	for {
		k, _, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, int(binary.BigEndian.Uint32(k)))
	}
	want := []int{15, 16, 17, 18}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPartitionKeysShape(t *testing.T) {
	s := newTestStore(t)
	rng := rand.New(rand.NewSource(42))
	min, max := 1<<20, 0
	for i := 0; i < 5000; i++ {
		n := rng.Intn(1 << 20)
		if err := s.Put(keyFor(n), rowFor(n)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}

	bounds, err := s.PartitionKeys(4)
	if err != nil {
		t.Fatalf("PartitionKeys: %v", err)
	}
	if len(bounds) != 5 {
		t.Fatalf("expected 5 bounds, got %d", len(bounds))
	}
	for i := 1; i < len(bounds); i++ {
		if bytes.Compare(bounds[i-1], bounds[i]) > 0 {
			t.Fatalf("bounds not monotone: %v", bounds)
		}
	}
	if bytes.Compare(bounds[0], keyFor(min)) > 0 {
		t.Fatalf("first bound %v exceeds the true minimum key %v", bounds[0], keyFor(min))
	}
	if bytes.Compare(bounds[len(bounds)-1], keyFor(max)) < 0 {
		t.Fatalf("last bound %v is below the true maximum key %v", bounds[len(bounds)-1], keyFor(max))
	}
}

// TestPartitionKeysBoundsSurviveReservoirEviction puts far more keys
// than the 64-key reservoir it configures and plants the true min/max
// at either end of the insertion order; reservoir sampling alone keeps
// each of them with probability only 64/10000. PartitionKeys must still report them
// exactly (see sampleLocked's minKey/maxKey tracking): without it this
// is a flaky, probabilistic pass rather than a guarantee.
func TestPartitionKeysBoundsSurviveReservoirEviction(t *testing.T) {
	s := newTestStore(t, WithReservoirSize(64))
	const n = 10000
	if err := s.Put(keyFor(0), rowFor(0)); err != nil {
		t.Fatalf("Put min: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 1; i < n-1; i++ {
		k := 1 + rng.Intn(n-2)
		if err := s.Put(keyFor(k), rowFor(k)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := s.Put(keyFor(n-1), rowFor(n-1)); err != nil {
		t.Fatalf("Put max: %v", err)
	}

	bounds, err := s.PartitionKeys(8)
	if err != nil {
		t.Fatalf("PartitionKeys: %v", err)
	}
	if got := bounds[0]; !bytes.Equal(got, keyFor(0)) {
		t.Fatalf("first bound = %v, want the true minimum %v", got, keyFor(0))
	}
	if got := bounds[len(bounds)-1]; !bytes.Equal(got, keyFor(n-1)) {
		t.Fatalf("last bound = %v, want the true maximum %v", got, keyFor(n-1))
	}
}

func TestPartitionKeysZero(t *testing.T) {
	s := newTestStore(t)
	bounds, err := s.PartitionKeys(0)
	if err != nil {
		t.Fatalf("PartitionKeys(0): %v", err)
	}
	if len(bounds) != 0 {
		t.Fatalf("expected zero bounds, got %d", len(bounds))
	}
}

func TestPartitionKeysNegativeRejected(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.PartitionKeys(-1); err == nil {
		t.Fatalf("expected an error for a negative partition count")
	}
}

func TestCloseIsIdempotentAndRejectsFurtherUse(t *testing.T) {
	s := newTestStore(t)
	if err := s.Put(keyFor(1), rowFor(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Put(keyFor(2), rowFor(2)); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestMergeAcrossManyFlushes(t *testing.T) {
	s := newTestStore(t, WithFlushThreshold(64), WithMergeThreshold(2))
	const n = 2000
	for i := 0; i < n; i++ {
		if err := s.Put(keyFor(i), rowFor(i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	// Background merges may still be running here. Range reads a
	// consistent snapshot of the runs under the Store's lock, so all n
	// entries must be visible whether or not a merge has finished.
	cur, err := s.Range(keyFor(0), true, keyFor(n-1), true)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	defer cur.Close()
	count := 0
	for {
		_, _, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != n {
		t.Fatalf("expected %d entries after merges, got %d", n, count)
	}
}
