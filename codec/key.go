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

package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hail-is/shuffler/typedesc"
)

// encodeKeyFields produces the order-preserving byte layout described
// in spec.md §4.1: one fixed-width or escape-terminated block per key
// field, concatenated in key order, each block bitwise-inverted when
// its field sorts descending. bytes.Compare over the result (wrapped
// by Order) then agrees with the logical lexicographic order.
func encodeKeyFields(t typedesc.RowType, dirs []typedesc.Direction, row Row) ([]byte, error) {
	if len(row) != len(t.Fields) {
		return nil, fmt.Errorf("codec: key row has %d fields, key type has %d", len(row), len(t.Fields))
	}
	var out []byte
	for i, f := range t.Fields {
		block, err := encodeKeyField(f, row[i])
		if err != nil {
			return nil, err
		}
		if dirs[i] == typedesc.Descending {
			invert(block)
		}
		out = append(out, block...)
	}
	return out, nil
}

// encodeKeyField encodes one key field as an ascending-order,
// self-terminating byte block:
//
//	[presence byte: 0x00 missing, 0x01 present][value bytes, if present]
//
// Fixed-width kinds (ints, floats, bool) need no further framing: the
// block length is constant so no terminator is required to keep
// concatenation order-preserving. Variable-width kinds (string, bytes)
// are NUL-escaped and NUL-NUL terminated (a standard memcomparable
// encoding) so that neither the block's own length nor the fields that
// follow it can perturb the comparison.
func encodeKeyField(f typedesc.Field, v Value) ([]byte, error) {
	presence := byte(0x01)
	if f.Nullable && v.Null {
		presence = 0x00
	}
	if presence == 0x00 {
		// Still emit a value-shaped placeholder of the same width as
		// the present case would use, so every key field contributes a
		// block of predictable shape to the concatenation; for
		// variable-width kinds a missing value contributes only the
		// presence byte and the terminator.
		switch f.Kind {
		case typedesc.Int32:
			return append([]byte{presence}, make([]byte, 4)...), nil
		case typedesc.Int64, typedesc.Float64:
			return append([]byte{presence}, make([]byte, 8)...), nil
		case typedesc.Bool:
			return []byte{presence, 0}, nil
		case typedesc.String, typedesc.Bytes:
			return []byte{presence, 0x00, 0x00}, nil
		default:
			return nil, fmt.Errorf("codec: unknown key field kind %v for %q", f.Kind, f.Name)
		}
	}

	switch f.Kind {
	case typedesc.Int32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.I32)^0x80000000)
		return append([]byte{presence}, b[:]...), nil
	case typedesc.Int64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.I64)^0x8000000000000000)
		return append([]byte{presence}, b[:]...), nil
	case typedesc.Float64:
		bits := math.Float64bits(v.F64)
		if bits&0x8000000000000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x8000000000000000
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		return append([]byte{presence}, b[:]...), nil
	case typedesc.Bool:
		if v.Bool {
			return []byte{presence, 1}, nil
		}
		return []byte{presence, 0}, nil
	case typedesc.String:
		return append([]byte{presence}, escapeTerminate([]byte(v.Str))...), nil
	case typedesc.Bytes:
		return append([]byte{presence}, escapeTerminate(v.Bytes)...), nil
	default:
		return nil, fmt.Errorf("codec: unknown key field kind %v for %q", f.Kind, f.Name)
	}
}

// escapeTerminate encodes b so that 0x00 bytes within b are escaped as
// 0x00 0xFF and the block is terminated by 0x00 0x00. This makes
// bytes.Compare over the result agree with bytes.Compare over b itself,
// for any two byte strings, regardless of what bytes follow in a larger
// concatenated key.
func escapeTerminate(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

func invert(b []byte) {
	for i := range b {
		b[i] = ^b[i]
	}
}
