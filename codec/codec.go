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

// Package codec implements the row/key (de)serialization and the total
// key ordering described in spec.md §4.1.
//
// A Codec is parameterized, once, by a typedesc.ShuffleType at
// construction (mirroring START in spec.md §4.3, which carries the type
// descriptor and nothing else). It is deliberately not self-describing
// the way a general-purpose columnar format would be: the type
// descriptor is known in full before a single row is encoded, so a
// Codec precompiles a fixed per-field tag layout rather than
// interning a symbol table per connection. Field tags are still
// written so a decoder can detect drift between what a producer wrote
// and what this descriptor expects (MalformedRecordError).
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hail-is/shuffler/typedesc"
)

// Codec encodes and decodes rows and keys for one shuffle's type
// descriptor, and orders encoded keys consistently with PUT-time
// placement (spec.md §3 invariant).
type Codec struct {
	rowType typedesc.RowType
	keyType typedesc.RowType
	keyDirs []typedesc.Direction
}

// New builds a Codec for st. st must already satisfy
// st.Validate() == nil; New does not re-validate it.
func New(st typedesc.ShuffleType) *Codec {
	dirs := make([]typedesc.Direction, len(st.Key))
	for i, kf := range st.Key {
		dirs[i] = kf.Direction
	}
	return &Codec{
		rowType: st.Row,
		keyType: st.KeyRowType(),
		keyDirs: dirs,
	}
}

func tagFor(k typedesc.Kind) byte { return byte(k) }

// EncodeRow serializes row, which must have one Value per field of the
// codec's row type, in order.
func (c *Codec) EncodeRow(row Row) ([]byte, error) {
	return encodeFields(c.rowType, row)
}

// DecodeRow is the inverse of EncodeRow: decode(encode(r)) == r.
func (c *Codec) DecodeRow(b []byte) (Row, error) {
	return decodeFields(c.rowType, b)
}

// EncodeKey produces the order-preserving key bytes for row, a row of
// the codec's full row type. The key portion is projected according to
// the key fields given at construction.
func (c *Codec) EncodeKey(row Row) ([]byte, error) {
	key := make(Row, len(c.keyType.Fields))
	for i, kf := range c.keyType.Fields {
		_, idx, ok := c.rowType.ByName(kf.Name)
		if !ok {
			return nil, fmt.Errorf("codec: key field %q missing from row type", kf.Name)
		}
		key[i] = row[idx]
	}
	return encodeKeyFields(c.keyType, c.keyDirs, key)
}

// EncodeKeyOnly produces the order-preserving key bytes for keyRow, a
// row already restricted to just the key fields in key order (unlike
// EncodeKey, which projects them out of a full row). Callers that only
// ever construct key bounds, such as the client's Get, use this to
// avoid building a placeholder full row just to satisfy EncodeKey's
// projection step.
func (c *Codec) EncodeKeyOnly(keyRow Row) ([]byte, error) {
	return encodeKeyFields(c.keyType, c.keyDirs, keyRow)
}

// KeyFieldCount reports how many fields a key row passed to
// EncodeKeyOnly must have.
func (c *Codec) KeyFieldCount() int {
	return len(c.keyType.Fields)
}

// Relation is the result of comparing two encoded keys.
type Relation int

const (
	Less Relation = -1
	Equal Relation = 0
	Greater Relation = 1
)

// Order compares two encoded keys produced by EncodeKey and returns
// their relation under the shuffle type's sort directions. Because
// EncodeKey already produces an order-preserving byte layout, Order is
// simply a lexicographic byte comparison.
func Order(a, b []byte) Relation {
	switch {
	case len(a) < len(b):
		for i := range a {
			if a[i] != b[i] {
				return cmpByte(a[i], b[i])
			}
		}
		return Less
	case len(a) > len(b):
		for i := range b {
			if a[i] != b[i] {
				return cmpByte(a[i], b[i])
			}
		}
		return Greater
	default:
		for i := range a {
			if a[i] != b[i] {
				return cmpByte(a[i], b[i])
			}
		}
		return Equal
	}
}

func cmpByte(a, b byte) Relation {
	if a < b {
		return Less
	}
	return Greater
}

func encodeFields(t typedesc.RowType, row Row) ([]byte, error) {
	if len(row) != len(t.Fields) {
		return nil, fmt.Errorf("codec: row has %d fields, type has %d", len(row), len(t.Fields))
	}
	var out []byte
	if t.HasNullable() {
		out = append(out, bitmap(t, row)...)
	}
	var tmp [binary.MaxVarintLen64]byte
	for i, f := range t.Fields {
		v := row[i]
		if f.Nullable && v.Null {
			continue
		}
		out = append(out, tagFor(f.Kind))
		switch f.Kind {
		case typedesc.Int32:
			n := binary.PutUvarint(tmp[:], zigzag(int64(v.I32)))
			out = append(out, tmp[:n]...)
		case typedesc.Int64:
			n := binary.PutUvarint(tmp[:], zigzag(v.I64))
			out = append(out, tmp[:n]...)
		case typedesc.Float64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], floatBits(v.F64))
			out = append(out, b[:]...)
		case typedesc.Bool:
			if v.Bool {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case typedesc.String:
			n := binary.PutUvarint(tmp[:], uint64(len(v.Str)))
			out = append(out, tmp[:n]...)
			out = append(out, v.Str...)
		case typedesc.Bytes:
			n := binary.PutUvarint(tmp[:], uint64(len(v.Bytes)))
			out = append(out, tmp[:n]...)
			out = append(out, v.Bytes...)
		default:
			return nil, fmt.Errorf("codec: unknown field kind %v for %q", f.Kind, f.Name)
		}
	}
	return out, nil
}

func decodeFields(t typedesc.RowType, b []byte) (Row, error) {
	row := make(Row, len(t.Fields))
	var bm []byte
	if t.HasNullable() {
		n := bitmapLen(len(t.Fields))
		if len(b) < n {
			return nil, ErrTruncated
		}
		bm, b = b[:n], b[n:]
	}
	for i, f := range t.Fields {
		if f.Nullable && bitSet(bm, i) {
			row[i] = Value{Null: true}
			continue
		}
		if len(b) < 1 {
			return nil, ErrTruncated
		}
		tag := b[0]
		b = b[1:]
		if tag != tagFor(f.Kind) {
			return nil, &MalformedRecordError{Field: f.Name, Want: tagFor(f.Kind), Got: tag}
		}
		var v Value
		var err error
		switch f.Kind {
		case typedesc.Int32:
			var zz uint64
			zz, b, err = readUvarint(b)
			v.I32 = int32(unzigzag(zz))
		case typedesc.Int64:
			var zz uint64
			zz, b, err = readUvarint(b)
			v.I64 = unzigzag(zz)
		case typedesc.Float64:
			if len(b) < 8 {
				return nil, ErrTruncated
			}
			v.F64 = unfloatBits(binary.BigEndian.Uint64(b[:8]))
			b = b[8:]
		case typedesc.Bool:
			if len(b) < 1 {
				return nil, ErrTruncated
			}
			v.Bool = b[0] != 0
			b = b[1:]
		case typedesc.String:
			var raw []byte
			raw, b, err = readLenPrefixed(b)
			if err == nil {
				v.Str = string(raw)
			}
		case typedesc.Bytes:
			v.Bytes, b, err = readLenPrefixed(b)
		default:
			return nil, fmt.Errorf("codec: unknown field kind %v for %q", f.Kind, f.Name)
		}
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func readUvarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, ErrTruncated
	}
	return v, b[n:], nil
}

func readLenPrefixed(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, ErrTruncated
	}
	return rest[:n], rest[n:], nil
}

func zigzag(n int64) uint64   { return uint64((n << 1) ^ (n >> 63)) }
func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

func floatBits(f float64) uint64   { return math.Float64bits(f) }
func unfloatBits(u uint64) float64 { return math.Float64frombits(u) }

func bitmapLen(nfields int) int { return (nfields + 7) / 8 }

func bitmap(t typedesc.RowType, row Row) []byte {
	bm := make([]byte, bitmapLen(len(t.Fields)))
	for i, f := range t.Fields {
		if f.Nullable && row[i].Null {
			bm[i/8] |= 1 << uint(i%8)
		}
	}
	return bm
}

func bitSet(bm []byte, i int) bool {
	if i/8 >= len(bm) {
		return false
	}
	return bm[i/8]&(1<<uint(i%8)) != 0
}
