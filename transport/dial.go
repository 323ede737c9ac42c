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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/hail-is/shuffler/wire"
)

// ErrProxyDeclined is returned when a proxy's ack byte is not 1
// (spec.md §4.7, §7: TransportAck).
var ErrProxyDeclined = errors.New("transport: proxy declined connection")

// Session is an established, authenticated connection: the
// underlying TLS conn, plus the per-connection UUID the server side
// minted during the handshake.
type Session struct {
	Conn net.Conn
	UUID [16]byte
}

// DirectDial resolves "<service>.<namespace>" and connects on port,
// performing the direct-mode handshake: after the TLS handshake, write
// the default-namespace token and the service's own namespace token
// (or 32 zero bytes if the service is in the default namespace), then
// read the 1-byte ack and the 16-byte server-assigned connection UUID.
func DirectDial(tlsConf *tls.Config, service, namespace string, port int, defaultToken, serviceToken Token) (*Session, error) {
	addr := fmt.Sprintf("%s.%s:%d", service, namespace, port)
	return Dial(tlsConf, addr, defaultToken, serviceToken)
}

// Dial performs the direct-mode handshake against an already-resolved
// address, for callers (tests, or a config that already knows a fixed
// host:port) that do not need DirectDial's <service>.<namespace>
// naming convention.
func Dial(tlsConf *tls.Config, addr string, defaultToken, serviceToken Token) (*Session, error) {
	conn, err := tls.Dial("tcp", addr, tlsConf)
	if err != nil {
		return nil, err
	}
	if err := handshakeTokens(conn, defaultToken, serviceToken); err != nil {
		conn.Close()
		return nil, err
	}
	return finishClientHandshake(conn)
}

// ProxiedDial connects to a fixed proxy at proxyAddr and asks it to
// forward to <service>.<namespace>:port, performing the proxied-mode
// handshake of spec.md §4.7.
func ProxiedDial(tlsConf *tls.Config, proxyAddr, namespace, service string, port uint16, defaultToken, serviceToken Token) (*Session, error) {
	conn, err := tls.Dial("tcp", proxyAddr, tlsConf)
	if err != nil {
		return nil, err
	}
	if err := handshakeTokens(conn, defaultToken, serviceToken); err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteString(conn, namespace); err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteString(conn, service); err != nil {
		conn.Close()
		return nil, err
	}
	var portBuf [2]byte
	portBuf[0] = byte(port >> 8)
	portBuf[1] = byte(port)
	if _, err := conn.Write(portBuf[:]); err != nil {
		conn.Close()
		return nil, err
	}
	return finishClientHandshake(conn)
}

func handshakeTokens(conn net.Conn, defaultToken, serviceToken Token) error {
	if _, err := conn.Write(defaultToken[:]); err != nil {
		return err
	}
	_, err := conn.Write(serviceToken[:])
	return err
}

func finishClientHandshake(conn net.Conn) (*Session, error) {
	var ack [1]byte
	if _, err := io.ReadFull(conn, ack[:]); err != nil {
		conn.Close()
		return nil, err
	}
	if ack[0] != 1 {
		conn.Close()
		return nil, ErrProxyDeclined
	}
	var uuid [16]byte
	if _, err := io.ReadFull(conn, uuid[:]); err != nil {
		conn.Close()
		return nil, err
	}
	return &Session{Conn: conn, UUID: uuid}, nil
}
