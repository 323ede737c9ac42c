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

package wire

import "errors"

// Wire-visible error kinds (spec.md §7). The protocol has no error
// response frame, so these classify why a connection was closed for
// logging (server side) and reconnect decisions (client side); they
// are never serialized onto the wire themselves, except where the
// framing table in spec.md §4.3 already encodes the outcome (e.g. the
// PARTITION_BOUNDS terminator).
var (
	// ErrUnknownShuffle means the identifier in a request does not
	// resolve in the registry.
	ErrUnknownShuffle = errors.New("wire: unknown shuffle identifier")

	// ErrMalformedRequest means an opcode or a framing rule was
	// violated.
	ErrMalformedRequest = errors.New("wire: malformed request")

	// ErrTruncated means the connection ended mid-record.
	ErrTruncated = errors.New("wire: truncated stream")
)

// TypeMismatchError describes a START whose key field list is not a
// structural prefix of the row type (spec.md §3, §7). Nothing in this
// module returns it: the server's START handler and Client.Start both
// report such descriptors with *typedesc.TypeMismatchError from
// typedesc.ShuffleType.Validate.
type TypeMismatchError struct {
	Reason string
}

func (e *TypeMismatchError) Error() string {
	return "wire: type mismatch: " + e.Reason
}
