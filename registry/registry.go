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

// Package registry implements the process-wide table mapping a
// shuffle identifier to its live Store (spec.md §4.4): a bijection
// maintained under a lock discipline that permits many concurrent
// readers and exclusive mutation on insert/remove (spec.md §5).
//
// The donor codebase's tenant.Manager keeps an analogous live map
// (tenant/manager.go: "live map[tnproto.ID]*child") behind a single
// sync.Mutex; this generalizes that to a small set of independently
// locked shards, each an RWMutex, selected by hashing the identifier
// with siphash (the donor's own tenant.go already depends on
// dchest/siphash to hash a cache key). Sharding spreads reader
// contention across shuffles without weakening the per-identifier
// exclusivity spec.md requires.
package registry

import (
	"sync"

	"github.com/dchest/siphash"

	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/store"
)

const shardCount = 16

// siphash keys; fixed and unexported since the registry only needs a
// good distribution across shards, not an adversary-resistant hash.
const (
	k0 = 0x9ae16a3b2f90404f
	k1 = 0xc2b2ae3d27d4eb4f
)

type shard struct {
	mu    sync.RWMutex
	table map[shuffleid.ID]*store.Store
}

// Registry is the process-wide shuffle table.
type Registry struct {
	shards [shardCount]*shard
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{table: make(map[shuffleid.ID]*store.Store)}
	}
	return r
}

func (r *Registry) shardFor(id shuffleid.ID) *shard {
	h := siphash.Hash(k0, k1, id[:])
	return r.shards[h%uint64(shardCount)]
}

// Insert adds id -> s to the registry. It is an error to insert an
// identifier that already exists; callers only ever insert freshly
// generated identifiers (see shuffleid.New), so a collision indicates
// a caller bug, not a wire-visible condition.
func (r *Registry) Insert(id shuffleid.ID, s *store.Store) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.table[id] = s
}

// Get looks up id, returning ok=false if no live shuffle has that
// identifier (spec.md §4.4: callers translate that into
// wire.ErrUnknownShuffle).
func (r *Registry) Get(id shuffleid.ID) (s *store.Store, ok bool) {
	sh := r.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok = sh.table[id]
	return s, ok
}

// Remove deletes id from the registry, if present, and closes its
// Store before returning (spec.md §4.4). Remove is safe to call twice
// for the same identifier: the second call is a no-op that reports
// ok=false, giving STOP its idempotent semantics (spec.md §8).
func (r *Registry) Remove(id shuffleid.ID) (ok bool) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	s, ok := sh.table[id]
	if ok {
		delete(sh.table, id)
	}
	sh.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of live shuffles, for diagnostics.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.table)
		sh.mu.RUnlock()
	}
	return n
}

// CloseAll removes and closes every live shuffle, for server shutdown
// (spec.md §4.5: shuffle state "survives... destroyed by STOP or by
// server shutdown").
func (r *Registry) CloseAll() {
	for _, sh := range r.shards {
		sh.mu.Lock()
		stores := make([]*store.Store, 0, len(sh.table))
		for id, s := range sh.table {
			stores = append(stores, s)
			delete(sh.table, id)
		}
		sh.mu.Unlock()
		for _, s := range stores {
			s.Close()
		}
	}
}
