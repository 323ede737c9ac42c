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

// Package wire implements the framing of the six shuffle operations
// described in spec.md §4.3: one opcode byte, the 16-byte shuffle
// identifier (for every opcode but START and EOS), then an
// opcode-specific payload. All multi-byte integers are big-endian;
// strings and byte arrays (including encoded rows and keys, which this
// package treats as opaque byte arrays) are length-prefixed with a
// 4-byte big-endian length.
package wire

// Op is one of the six shuffle operation opcodes.
type Op byte

const (
	OpStart           Op = 1
	OpPut             Op = 2
	OpGet             Op = 3
	OpStop            Op = 4
	OpPartitionBounds Op = 5
	OpEOS             Op = 255
)

func (o Op) String() string {
	switch o {
	case OpStart:
		return "START"
	case OpPut:
		return "PUT"
	case OpGet:
		return "GET"
	case OpStop:
		return "STOP"
	case OpPartitionBounds:
		return "PARTITION_BOUNDS"
	case OpEOS:
		return "EOS"
	default:
		return "UNKNOWN"
	}
}

// HasIdentifier reports whether op carries the 16-byte shuffle
// identifier immediately after the opcode byte. Only START and EOS do
// not (spec.md §4.3).
func (o Op) HasIdentifier() bool {
	return o != OpStart && o != OpEOS
}

// EncodingScheme identifies the concrete row/key byte layout a START
// request asks for. This service implements exactly one, but the wire
// format carries it explicitly (as "row encoded type" / "key encoded
// type" in spec.md §4.3) so a future scheme can be introduced without
// changing the opcode table.
type EncodingScheme byte

// SchemeTagStream is the only EncodingScheme this server understands:
// the self-describing, order-preserving layout implemented by package
// codec.
const SchemeTagStream EncodingScheme = 1
