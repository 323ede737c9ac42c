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

// Package transport establishes the mutually-authenticated TLS
// sessions described in spec.md §4.7, in direct and proxied
// reachability modes, and mirrors the server side of that handshake.
//
// Issuing the underlying pre-shared secret a Token is derived from is
// explicitly out of scope (spec.md §1: "authentication token
// issuance" is an external collaborator); Token only fixes the shape
// and derivation of the 32-byte values the handshake exchanges.
package transport

import (
	"golang.org/x/crypto/blake2b"
)

// TokenSize is the wire length of a session token.
const TokenSize = 32

// Token is a 32-byte pre-shared value that authenticates a client to
// the server (or proxy) at transport time (spec.md GLOSSARY: "Session
// token").
type Token [TokenSize]byte

// DeriveToken computes a namespace's session token as
// blake2b-256(secret || namespace). The donor codebase already
// depends on golang.org/x/crypto/blake2b (fsenv.go, for content
// hashing); reusing it here gives Token a concrete, testable
// derivation while leaving actual secret provisioning external.
func DeriveToken(secret []byte, namespace string) Token {
	h, _ := blake2b.New256(nil)
	h.Write(secret)
	h.Write([]byte(namespace))
	var t Token
	copy(t[:], h.Sum(nil))
	return t
}

// ZeroToken is used in place of a service's namespace token when the
// service being reached is in the default namespace (spec.md §4.7).
var ZeroToken Token
