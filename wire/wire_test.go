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

import (
	"bytes"
	"testing"

	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/typedesc"
)

func TestBlobRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("the quick brown fox")
	if err := WriteBlob(&buf, want); err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := ReadBlob(&buf)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBlobRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	WriteUint32(&buf, MaxBlobSize+1)
	if _, err := ReadBlob(&buf); err != ErrMalformedRequest {
		t.Fatalf("expected ErrMalformedRequest, got %v", err)
	}
}

func TestIDRoundTrip(t *testing.T) {
	id, err := shuffleid.New()
	if err != nil {
		t.Fatalf("shuffleid.New: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteID(&buf, id); err != nil {
		t.Fatalf("WriteID: %v", err)
	}
	got, err := ReadID(&buf)
	if err != nil {
		t.Fatalf("ReadID: %v", err)
	}
	if got != id {
		t.Fatalf("got %s, want %s", got, id)
	}
}

func TestStreamElementRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	elems := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	for _, e := range elems {
		if err := WriteContinuedBlob(&buf, e); err != nil {
			t.Fatalf("WriteContinuedBlob: %v", err)
		}
	}
	if err := WriteStreamEnd(&buf); err != nil {
		t.Fatalf("WriteStreamEnd: %v", err)
	}

	var got [][]byte
	for {
		b, ok, err := ReadStreamElement(&buf)
		if err != nil {
			t.Fatalf("ReadStreamElement: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, b)
	}
	if len(got) != len(elems) {
		t.Fatalf("got %d elements, want %d", len(got), len(elems))
	}
	for i := range elems {
		if !bytes.Equal(got[i], elems[i]) {
			t.Fatalf("element %d: got %q, want %q", i, got[i], elems[i])
		}
	}
}

func TestStartRoundTrip(t *testing.T) {
	payload := StartPayload{
		Row: typedesc.RowType{Fields: []typedesc.Field{
			{Name: "a", Kind: typedesc.Int32},
			{Name: "b", Kind: typedesc.String, Nullable: true},
		}},
		RowScheme: SchemeTagStream,
		Key:       []typedesc.KeyField{{Name: "a", Direction: typedesc.Descending}},
		KeyScheme: SchemeTagStream,
	}
	var buf bytes.Buffer
	if err := WriteStart(&buf, payload); err != nil {
		t.Fatalf("WriteStart: %v", err)
	}
	got, err := ReadStart(&buf)
	if err != nil {
		t.Fatalf("ReadStart: %v", err)
	}
	if len(got.Row.Fields) != len(payload.Row.Fields) {
		t.Fatalf("field count mismatch: got %d, want %d", len(got.Row.Fields), len(payload.Row.Fields))
	}
	for i := range payload.Row.Fields {
		if got.Row.Fields[i] != payload.Row.Fields[i] {
			t.Fatalf("field %d mismatch: got %+v, want %+v", i, got.Row.Fields[i], payload.Row.Fields[i])
		}
	}
	if len(got.Key) != 1 || got.Key[0] != payload.Key[0] {
		t.Fatalf("key mismatch: got %+v, want %+v", got.Key, payload.Key)
	}
}

func TestReadStartRejectsUnsupportedScheme(t *testing.T) {
	payload := StartPayload{
		Row:       typedesc.RowType{Fields: []typedesc.Field{{Name: "a", Kind: typedesc.Int32}}},
		RowScheme: SchemeTagStream,
		Key:       []typedesc.KeyField{{Name: "a"}},
		KeyScheme: SchemeTagStream,
	}
	var buf bytes.Buffer
	WriteStart(&buf, payload)
	corrupted := append([]byte(nil), buf.Bytes()...)
	// The row type for a single field "a" (Int32, non-nullable) is 11
	// bytes: a 4-byte field count, a length-prefixed name (4+1 bytes),
	// a kind byte, and a nullable byte. The row scheme byte follows
	// immediately after.
	const rowSchemeOffset = 11
	if corrupted[rowSchemeOffset] != byte(SchemeTagStream) {
		t.Fatalf("test assumption broken: offset %d is %d, not the row scheme byte", rowSchemeOffset, corrupted[rowSchemeOffset])
	}
	corrupted[rowSchemeOffset] = 0x7F
	if _, err := ReadStart(bytes.NewReader(corrupted)); err == nil {
		t.Fatalf("expected an error for an unsupported encoding scheme")
	}
}

func TestGetRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := GetRequest{StartKey: []byte{1, 2}, StartIncl: true, EndKey: []byte{3, 4, 5}, EndIncl: false}
	if err := WriteGetRequest(&buf, want.StartKey, want.StartIncl, want.EndKey, want.EndIncl); err != nil {
		t.Fatalf("WriteGetRequest: %v", err)
	}
	got, err := ReadGetRequest(&buf)
	if err != nil {
		t.Fatalf("ReadGetRequest: %v", err)
	}
	if !bytes.Equal(got.StartKey, want.StartKey) || got.StartIncl != want.StartIncl ||
		!bytes.Equal(got.EndKey, want.EndKey) || got.EndIncl != want.EndIncl {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestOpHasIdentifier(t *testing.T) {
	cases := map[Op]bool{
		OpStart:           false,
		OpPut:             true,
		OpGet:             true,
		OpStop:            true,
		OpPartitionBounds: true,
		OpEOS:             false,
	}
	for op, want := range cases {
		if got := op.HasIdentifier(); got != want {
			t.Fatalf("%s.HasIdentifier() = %v, want %v", op, got, want)
		}
	}
}
