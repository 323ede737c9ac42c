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
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/hail-is/shuffler/typedesc"
)

func fullType() typedesc.ShuffleType {
	return typedesc.ShuffleType{
		Row: typedesc.RowType{Fields: []typedesc.Field{
			{Name: "locus", Kind: typedesc.Int32},
			{Name: "pos", Kind: typedesc.Int64},
			{Name: "qual", Kind: typedesc.Float64, Nullable: true},
			{Name: "pass", Kind: typedesc.Bool},
			{Name: "contig", Kind: typedesc.String},
			{Name: "tags", Kind: typedesc.Bytes, Nullable: true},
		}},
		Key: []typedesc.KeyField{
			{Name: "locus", Direction: typedesc.Ascending},
			{Name: "pos", Direction: typedesc.Descending},
		},
	}
}

func TestRowRoundTrip(t *testing.T) {
	c := New(fullType())
	rows := []Row{
		{{I32: 1}, {I64: 100}, {F64: 3.25}, {Bool: true}, {Str: "chr1"}, {Bytes: []byte("xy")}},
		{{I32: -5}, {I64: -100}, {Null: true}, {Bool: false}, {Str: ""}, {Null: true}},
		{{I32: math.MaxInt32}, {I64: math.MinInt64}, {F64: math.Inf(1)}, {Bool: true}, {Str: "chrX"}, {Bytes: nil}},
	}
	for i, row := range rows {
		enc, err := c.EncodeRow(row)
		if err != nil {
			t.Fatalf("row %d: EncodeRow: %v", i, err)
		}
		dec, err := c.DecodeRow(enc)
		if err != nil {
			t.Fatalf("row %d: DecodeRow: %v", i, err)
		}
		for j := range row {
			if !valueEqual(row[j], dec[j]) {
				t.Fatalf("row %d field %d: want %+v, got %+v", i, j, row[j], dec[j])
			}
		}
	}
}

func valueEqual(a, b Value) bool {
	if a.Null != b.Null {
		return false
	}
	if a.Null {
		return true
	}
	return a.I32 == b.I32 && a.I64 == b.I64 && a.F64 == b.F64 &&
		a.Bool == b.Bool && a.Str == b.Str && bytes.Equal(a.Bytes, b.Bytes)
}

// logicalLess reproduces, independently of the codec, the order
// (locus asc, pos desc) should produce, so Order can be checked
// against a ground truth rather than against itself.
func logicalLess(a, b Row) bool {
	if a[0].I32 != b[0].I32 {
		return a[0].I32 < b[0].I32
	}
	return a[1].I64 > b[1].I64
}

func TestOrderAgreement(t *testing.T) {
	c := New(fullType())
	rng := rand.New(rand.NewSource(1))
	rows := make([]Row, 200)
	for i := range rows {
		rows[i] = Row{
			{I32: int32(rng.Intn(20) - 10)},
			{I64: int64(rng.Intn(20) - 10)},
			{F64: rng.Float64()},
			{Bool: rng.Intn(2) == 0},
			{Str: "x"},
			{Bytes: []byte{byte(rng.Intn(255))}},
		}
	}

	keys := make([][]byte, len(rows))
	for i, r := range rows {
		k, err := c.EncodeKey(r)
		if err != nil {
			t.Fatalf("EncodeKey: %v", err)
		}
		keys[i] = k
	}

	for i := range rows {
		for j := range rows {
			want := Equal
			if logicalLess(rows[i], rows[j]) {
				want = Less
			} else if logicalLess(rows[j], rows[i]) {
				want = Greater
			}
			got := Order(keys[i], keys[j])
			if got != want {
				t.Fatalf("Order(%v, %v) = %v, want %v", rows[i], rows[j], got, want)
			}
		}
	}
}

func TestOrderNullsSortFirstAscending(t *testing.T) {
	typ := typedesc.ShuffleType{
		Row: typedesc.RowType{Fields: []typedesc.Field{{Name: "a", Kind: typedesc.Int32, Nullable: true}}},
		Key: []typedesc.KeyField{{Name: "a", Direction: typedesc.Ascending}},
	}
	c := New(typ)
	nullKey, err := c.EncodeKey(Row{{Null: true}})
	if err != nil {
		t.Fatalf("EncodeKey(null): %v", err)
	}
	presentKey, err := c.EncodeKey(Row{{I32: math.MinInt32}})
	if err != nil {
		t.Fatalf("EncodeKey(present): %v", err)
	}
	if Order(nullKey, presentKey) != Less {
		t.Fatalf("expected missing to sort before present, even MinInt32")
	}
}

func TestDecodeRowTagMismatch(t *testing.T) {
	c := New(fullType())
	row := Row{{I32: 1}, {I64: 2}, {F64: 1}, {Bool: true}, {Str: "a"}, {Bytes: []byte("b")}}
	enc, err := c.EncodeRow(row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	enc[1] ^= 0xFF // corrupt the first field's tag byte
	if _, err := c.DecodeRow(enc); err == nil {
		t.Fatalf("expected a malformed-record error from a corrupted tag")
	}
}

func TestDecodeRowTruncated(t *testing.T) {
	c := New(fullType())
	row := Row{{I32: 1}, {I64: 2}, {F64: 1}, {Bool: true}, {Str: "a"}, {Bytes: []byte("b")}}
	enc, err := c.EncodeRow(row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	if _, err := c.DecodeRow(enc[:len(enc)-3]); err == nil {
		t.Fatalf("expected a truncation error from a short buffer")
	}
}
