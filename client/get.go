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
	"fmt"
	"net"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/wire"
)

// Get performs a range scan over [start, end] per startIncl/endIncl
// (spec.md §4.6's get(start,end,inclusivity)). start and end are key
// rows: a Row holding only the shuffle's key fields, in key order (see
// codec.Codec.EncodeKeyOnly). A GET is a pure read, so the whole
// operation is safely retried in full on a transient disconnect
// (spec.md §8 scenario 6).
func (c *Client) Get(start codec.Row, startIncl bool, end codec.Row, endIncl bool) ([]codec.Row, error) {
	c.mu.Lock()
	cdc := c.codec
	c.mu.Unlock()
	if cdc == nil {
		return nil, errClientNotStarted
	}
	if n := cdc.KeyFieldCount(); len(start) != n || len(end) != n {
		return nil, fmt.Errorf("client: start/end key rows must have %d field(s), got %d and %d", n, len(start), len(end))
	}

	startKey, err := cdc.EncodeKeyOnly(start)
	if err != nil {
		return nil, err
	}
	endKey, err := cdc.EncodeKeyOnly(end)
	if err != nil {
		return nil, err
	}

	var rows []codec.Row
	err = c.withRetry(func(conn net.Conn, id shuffleid.ID) error {
		rows = nil // discard any partial result from a failed prior attempt
		if err := wire.WriteByte(conn, byte(wire.OpGet)); err != nil {
			return err
		}
		if err := wire.WriteID(conn, id); err != nil {
			return err
		}
		if err := wire.WriteGetRequest(conn, startKey, startIncl, endKey, endIncl); err != nil {
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
			row, err := cdc.DecodeRow(blob)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
