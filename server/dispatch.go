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

package server

import (
	"net"
	"time"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/typedesc"
	"github.com/hail-is/shuffler/wire"
)

// handleStart implements START (spec.md §4.3, §4.5): read the type
// descriptor, validate the key-is-a-prefix-of-row invariant (spec.md
// §3), allocate a fresh identifier, Store, and Codec, register them,
// and reply with the identifier. START carries no identifier of its
// own in the request.
func (s *Server) handleStart(conn net.Conn, connID [16]byte) error {
	payload, err := wire.ReadStart(conn)
	if err != nil {
		return err
	}
	st := typedesc.ShuffleType{Row: payload.Row, Key: payload.Key}
	if err := st.Validate(); err != nil {
		return err
	}

	id, err := shuffleid.New()
	if err != nil {
		return err
	}
	c := codec.New(st)
	sto, err := s.openStore(id, c)
	if err != nil {
		return err
	}
	s.Registry.Insert(id, sto)
	s.putState(id, &shuffleState{typ: st, codec: c, created: time.Now()})

	s.logf("server: connection %x: START: allocated shuffle %s", connID, id)
	return wire.WriteID(conn, id)
}

// handlePut implements PUT: a stream of encoded rows, each of which is
// decoded in full to re-derive its encoded key (the row itself is
// stored exactly as transmitted), answered by a single ack byte.
func (s *Server) handlePut(conn net.Conn, id shuffleid.ID) error {
	sto, ok := s.Registry.Get(id)
	if !ok {
		return wire.ErrUnknownShuffle
	}
	state, ok := s.getState(id)
	if !ok {
		return wire.ErrUnknownShuffle
	}

	for {
		rowBytes, more, err := wire.ReadStreamElement(conn)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		row, err := state.codec.DecodeRow(rowBytes)
		if err != nil {
			return err
		}
		keyBytes, err := state.codec.EncodeKey(row)
		if err != nil {
			return err
		}
		if err := sto.Put(keyBytes, rowBytes); err != nil {
			return err
		}
	}
	return wire.WriteAck(conn)
}

// handleGet implements GET: a half-open (or closed, per the
// inclusivity flags) range scan over already-encoded start/end keys,
// streamed back as encoded rows.
func (s *Server) handleGet(conn net.Conn, id shuffleid.ID) error {
	sto, ok := s.Registry.Get(id)
	if !ok {
		return wire.ErrUnknownShuffle
	}

	req, err := wire.ReadGetRequest(conn)
	if err != nil {
		return err
	}
	var end []byte
	if len(req.EndKey) > 0 {
		end = req.EndKey
	}

	cur, err := sto.Range(req.StartKey, req.StartIncl, end, req.EndIncl)
	if err != nil {
		return err
	}
	defer cur.Close()

	for {
		_, row, ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := wire.WriteContinuedBlob(conn, row); err != nil {
			return err
		}
	}
	return wire.WriteStreamEnd(conn)
}

// handleStop implements STOP. A second STOP for an identifier already
// removed is accepted with no effect (spec.md §8's idempotent-STOP
// property allows this or UnknownShuffle; this service chooses the
// no-effect branch so STOP never has to close a connection that is
// about to issue EOS on its own).
func (s *Server) handleStop(conn net.Conn, id shuffleid.ID) error {
	s.Registry.Remove(id)
	s.dropState(id)
	return wire.WriteAck(conn)
}

// handlePartitionBounds implements PARTITION_BOUNDS: n+1 (or, for
// n == 0, zero) boundary keys, already in the Store's order-preserving
// byte form, streamed back directly.
func (s *Server) handlePartitionBounds(conn net.Conn, id shuffleid.ID) error {
	sto, ok := s.Registry.Get(id)
	if !ok {
		return wire.ErrUnknownShuffle
	}

	n, err := wire.ReadPartitionBoundsRequest(conn)
	if err != nil {
		return err
	}
	bounds, err := sto.PartitionKeys(int(n))
	if err != nil {
		return err
	}
	for _, b := range bounds {
		if err := wire.WriteContinuedBlob(conn, b); err != nil {
			return err
		}
	}
	return wire.WriteStreamEnd(conn)
}
