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

package transport

import (
	"io"
	"net"

	"github.com/google/uuid"
)

// Validator decides whether a pair of presented session tokens
// authenticates the connection. Token issuance and the policy for
// validating them are external to this design (spec.md §1); a nil
// Validator accepts every connection, which is adequate for this
// service's own test harness and for deployments that terminate
// authentication upstream of the shuffle port.
type Validator func(defaultToken, serviceToken Token) bool

// Accept performs the server side of the direct-mode handshake
// (spec.md §4.7): read the two 32-byte tokens, optionally reject via
// validate, mint a UUID, and write the 1-byte ack and 16-byte UUID.
//
// On success it returns the established Session; the caller owns conn
// either way (Accept never closes it).
func Accept(conn net.Conn, validate Validator) (*Session, error) {
	var defaultToken, serviceToken Token
	if _, err := io.ReadFull(conn, defaultToken[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(conn, serviceToken[:]); err != nil {
		return nil, err
	}
	if validate != nil && !validate(defaultToken, serviceToken) {
		conn.Write([]byte{0})
		return nil, ErrProxyDeclined
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte{1}); err != nil {
		return nil, err
	}
	if _, err := conn.Write(id[:]); err != nil {
		return nil, err
	}
	return &Session{Conn: conn, UUID: [16]byte(id)}, nil
}
