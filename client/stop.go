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

package client

import (
	"net"

	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/wire"
)

// Stop releases the shuffle's server-side resources (spec.md §4.6).
// Stop is safe to call more than once: the server's STOP handler is
// idempotent (spec.md §8's idempotent-STOP property).
func (c *Client) Stop() error {
	return c.withRetry(func(conn net.Conn, id shuffleid.ID) error {
		if err := wire.WriteByte(conn, byte(wire.OpStop)); err != nil {
			return err
		}
		if err := wire.WriteID(conn, id); err != nil {
			return err
		}
		return wire.ReadAck(conn)
	})
}
