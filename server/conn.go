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

	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/transport"
	"github.com/hail-is/shuffler/wire"
)

// handleConn runs the per-connection state machine of spec.md §4.5:
//
//	AwaitOp -> (ReadPayload -> Dispatch -> WriteResponse -> AwaitOp)*
//
// with EOS transitioning to Terminating, which writes the echo and
// closes. Any parse or I/O error terminates the connection with a log
// entry naming the connection UUID the transport handshake minted, so
// traces across a single connection's messages are correlatable.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	session, err := transport.Accept(conn, s.validate)
	if err != nil {
		s.logf("server: handshake failed from %s: %v", conn.RemoteAddr(), err)
		return
	}
	connID := session.UUID
	s.logf("server: connection %x established from %s", connID, conn.RemoteAddr())

	for {
		conn.SetReadDeadline(time.Now().Add(s.idleTimeout))

		op, err := wire.ReadOp(conn)
		if err != nil {
			s.logf("server: connection %x: reading opcode: %v", connID, err)
			return
		}

		if op == wire.OpEOS {
			if err := wire.WriteEOSAck(conn); err != nil {
				s.logf("server: connection %x: writing EOS ack: %v", connID, err)
			}
			s.logf("server: connection %x: EOS, closing", connID)
			return
		}

		if op == wire.OpStart {
			if err := s.handleStart(conn, connID); err != nil {
				s.logf("server: connection %x: START: %v", connID, err)
				return
			}
			continue
		}

		if !op.HasIdentifier() {
			s.logf("server: connection %x: unknown opcode %d", connID, op)
			return
		}

		id, err := wire.ReadID(conn)
		if err != nil {
			s.logf("server: connection %x: reading shuffle id: %v", connID, err)
			return
		}

		if err := s.dispatch(conn, op, id); err != nil {
			s.logf("server: connection %x: shuffle %s: %s: %v", connID, id, op, err)
			return
		}
	}
}

// dispatch routes a request whose opcode carries an identifier (every
// opcode but START and EOS, both handled directly in handleConn) to
// the matching shuffle operation.
func (s *Server) dispatch(conn net.Conn, op wire.Op, id shuffleid.ID) error {
	switch op {
	case wire.OpPut:
		return s.handlePut(conn, id)
	case wire.OpGet:
		return s.handleGet(conn, id)
	case wire.OpStop:
		return s.handleStop(conn, id)
	case wire.OpPartitionBounds:
		return s.handlePartitionBounds(conn, id)
	default:
		return wire.ErrMalformedRequest
	}
}
