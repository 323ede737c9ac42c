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

// Package shuffleid defines the opaque 16-byte identifier that names a
// live shuffle within a server process (spec.md §3).
package shuffleid

import (
	"bytes"

	"github.com/google/uuid"
)

// Size is the wire length of an ID, in bytes.
const Size = 16

// ID opaquely names one live shuffle. It is generated by New on START
// and travels on the wire as 16 raw bytes (spec.md §4.3); it carries no
// structure a client or server may rely on beyond equality.
type ID [Size]byte

// New generates a fresh ID from a cryptographically secure random
// source. The donor codebase already depends on google/uuid for its
// own per-connection/per-query identifiers (cmd/snellerd's query IDs,
// tnproto's connection UUIDs); a random (v4) UUID is exactly the
// "opaque 16-byte value" spec.md §3 asks for, so New is built on it
// rather than hand-rolling a crypto/rand wrapper.
func New() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ID{}, err
	}
	return ID(u), nil
}

var zero ID

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return bytes.Equal(id[:], zero[:])
}

// String renders id using the standard UUID text form.
func (id ID) String() string {
	return uuid.UUID(id).String()
}
