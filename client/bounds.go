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

// PartitionBounds asks for n+1 (or, for n == 0, zero) approximately
// equi-depth boundary keys over the shuffle's current contents
// (spec.md §4.6's partition_bounds(n)). The returned keys are opaque
// encoded key bytes in the shuffle's order, suitable for passing to a
// downstream consumer's Get as its own start/end boundary.
func (c *Client) PartitionBounds(n int) ([][]byte, error) {
	if n < 0 {
		return nil, errInvalidPartitionCount
	}

	var bounds [][]byte
	err := c.withRetry(func(conn net.Conn, id shuffleid.ID) error {
		bounds = nil
		if err := wire.WriteByte(conn, byte(wire.OpPartitionBounds)); err != nil {
			return err
		}
		if err := wire.WriteID(conn, id); err != nil {
			return err
		}
		if err := wire.WritePartitionBoundsRequest(conn, uint32(n)); err != nil {
			return err
		}
		for {
			blob, more, err := wire.ReadStreamElement(conn)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			bounds = append(bounds, blob)
		}
	})
	if err != nil {
		return nil, err
	}
	return bounds, nil
}
