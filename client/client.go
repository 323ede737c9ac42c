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

// Package client implements the compiler-side driver of a shuffle
// (spec.md §4.6): start a shuffle, stream rows in, ask for partition
// bounds, scan ranges back out, and stop — all over a single
// connection that reconnects transparently on transient disconnect.
package client

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/transport"
	"github.com/hail-is/shuffler/typedesc"
	"github.com/hail-is/shuffler/wire"
)

// errClosed is the one non-protocol condition classify treats as
// outcomeFatal rather than retryable (protocol errors are fatal too;
// see isProtocolError): the caller asked this Client to stop, so a
// reconnect loop spinning on its own cancellation would never
// terminate.
var errClosed = errors.New("client: closed")

// errClientNotStarted is returned by any operation issued before
// Start, or after Start itself failed.
var errClientNotStarted = errors.New("client: not started")

func isTransient(err error) bool {
	return !errors.Is(err, errClosed)
}

// Dialer establishes one fresh, handshaken connection, hiding whether
// it reached the server directly or through a proxy (spec.md §4.7).
// client.Close never touches this function; it is called once per
// reconnect attempt.
type Dialer func() (*transport.Session, error)

// Client is a single reconnectable connection driving one shuffle.
type Client struct {
	dial   Dialer
	logger *log.Logger
	backOf func() backoff.BackOff

	mu      sync.Mutex
	conn    net.Conn
	started bool
	id      shuffleid.ID
	typ     typedesc.ShuffleType
	codec   *codec.Codec
	pending [][]byte
	closed  bool
}

// Option configures a Client at construction.
type Option func(*Client)

// WithLogger directs reconnect/error diagnostics to l.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBackOff overrides the default unbounded exponential backoff
// (spec.md §4.6: "Retries are unbounded with bounded exponential
// backoff"). factory must return a fresh, unstarted BackOff each time
// it is called, since a BackOff is stateful and single-use.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) { c.backOf = factory }
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // unbounded, per spec.md §4.6
	b.MaxInterval = 30 * time.Second
	return b
}

// New builds a Client that reconnects using dial.
func New(dial Dialer, opts ...Option) *Client {
	c := &Client{dial: dial, backOf: defaultBackOff}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Start opens the shuffle. Unlike every other operation, START is
// never retried: a retry after a transient failure would make the
// server allocate a second, orphaned shuffle, so a failed START
// surfaces immediately (spec.md §4.6).
func (c *Client) Start(typ typedesc.ShuffleType) (shuffleid.ID, error) {
	if err := typ.Validate(); err != nil {
		return shuffleid.ID{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return shuffleid.ID{}, errClosed
	}
	if c.started {
		return shuffleid.ID{}, errors.New("client: already started")
	}

	session, err := c.dial()
	if err != nil {
		return shuffleid.ID{}, err
	}
	c.conn = session.Conn

	id, err := c.doStart(typ)
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return shuffleid.ID{}, err
	}

	c.id = id
	c.typ = typ
	c.codec = codec.New(typ)
	c.started = true
	return id, nil
}

func (c *Client) doStart(typ typedesc.ShuffleType) (shuffleid.ID, error) {
	if err := wire.WriteByte(c.conn, byte(wire.OpStart)); err != nil {
		return shuffleid.ID{}, err
	}
	payload := wire.StartPayload{
		Row:       typ.Row,
		RowScheme: wire.SchemeTagStream,
		Key:       typ.Key,
		KeyScheme: wire.SchemeTagStream,
	}
	if err := wire.WriteStart(c.conn, payload); err != nil {
		return shuffleid.ID{}, err
	}
	return wire.ReadID(c.conn)
}

// Close sends EOS on a best-effort basis and releases the underlying
// connection. Any operation racing with Close observes errClosed
// rather than retrying forever.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		wire.WriteByte(c.conn, byte(wire.OpEOS))
		wire.ReadEOSAck(c.conn)
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// withRetry runs attempt, reconnecting and retrying on every
// classify()-transient failure, forever, with exponential backoff
// between attempts (spec.md §4.6). attempt receives the live
// connection and the shuffle id to reissue its request against.
func (c *Client) withRetry(attempt func(conn net.Conn, id shuffleid.ID) error) error {
	b := c.backOf()
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return errClosed
		}
		if !c.started {
			c.mu.Unlock()
			return errClientNotStarted
		}
		if c.conn == nil {
			session, err := c.dial()
			if err != nil {
				c.mu.Unlock()
				if isTransient(err) {
					time.Sleep(b.NextBackOff())
					continue
				}
				return err
			}
			c.conn = session.Conn
		}
		conn := c.conn
		id := c.id
		c.mu.Unlock()

		err := attempt(conn, id)
		switch classify(err) {
		case outcomeOK:
			return nil
		case outcomeFatal:
			return err
		default:
			c.logf("client: shuffle %s: transient error, reconnecting: %v", id, err)
			c.mu.Lock()
			if c.conn == conn {
				conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			time.Sleep(b.NextBackOff())
		}
	}
}
