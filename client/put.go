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

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/wire"
)

// PutRow buffers one row for the next EndPut. It does not touch the
// network: spec.md §4.6 sends PUT "as a byte-at-a-time continue flag"
// per record-batch, so rows accumulate here until EndPut flushes them
// as a single retryable unit.
func (c *Client) PutRow(row codec.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	if !c.started {
		return errClientNotStarted
	}
	encoded, err := c.codec.EncodeRow(row)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, encoded)
	return nil
}

// EndPut flushes every row buffered since the last EndPut as one PUT
// request: a stream of continued blobs terminated by the stop byte,
// waiting for the server's single-byte ack. If the connection is lost
// before the ack arrives, the whole batch is resent in full against
// the new connection (spec.md §4.6's batch-at-a-time retry unit); the
// server may or may not have durably applied the previous attempt's
// rows, matching the either/or allowance of spec.md §8 scenario 5.
func (c *Client) EndPut() error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := c.withRetry(func(conn net.Conn, id shuffleid.ID) error {
		if err := wire.WriteByte(conn, byte(wire.OpPut)); err != nil {
			return err
		}
		if err := wire.WriteID(conn, id); err != nil {
			return err
		}
		for _, row := range batch {
			if err := wire.WriteContinuedBlob(conn, row); err != nil {
				return err
			}
		}
		if err := wire.WriteStreamEnd(conn); err != nil {
			return err
		}
		return wire.ReadAck(conn)
	})
	if err != nil {
		// Restore the batch so a caller that retries EndPut itself
		// (rather than treating this as fatal) does not lose rows.
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
	}
	return err
}
