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

package typedesc

import "testing"

func sampleRowType() RowType {
	return RowType{Fields: []Field{
		{Name: "chrom", Kind: String},
		{Name: "pos", Kind: Int64},
		{Name: "qual", Kind: Float64, Nullable: true},
	}}
}

func TestByName(t *testing.T) {
	rt := sampleRowType()
	f, idx, ok := rt.ByName("pos")
	if !ok || idx != 1 || f.Kind != Int64 {
		t.Fatalf("ByName(pos) = %+v, %d, %v", f, idx, ok)
	}
	if _, _, ok := rt.ByName("missing"); ok {
		t.Fatalf("expected ByName to miss on an absent field")
	}
}

func TestHasNullable(t *testing.T) {
	if !sampleRowType().HasNullable() {
		t.Fatalf("expected HasNullable to be true")
	}
	noNulls := RowType{Fields: []Field{{Name: "a", Kind: Int32}}}
	if noNulls.HasNullable() {
		t.Fatalf("expected HasNullable to be false")
	}
}

func TestValidateAcceptsStructuralPrefix(t *testing.T) {
	st := ShuffleType{
		Row: sampleRowType(),
		Key: []KeyField{{Name: "chrom", Direction: Ascending}, {Name: "pos", Direction: Descending}},
	}
	if err := st.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownKeyField(t *testing.T) {
	st := ShuffleType{
		Row: sampleRowType(),
		Key: []KeyField{{Name: "nonexistent"}},
	}
	if err := st.Validate(); err == nil {
		t.Fatalf("expected an error for a key field absent from the row type")
	}
}

func TestValidateRejectsRepeatedKeyField(t *testing.T) {
	st := ShuffleType{
		Row: sampleRowType(),
		Key: []KeyField{{Name: "pos"}, {Name: "pos"}},
	}
	if err := st.Validate(); err == nil {
		t.Fatalf("expected an error for a repeated key field")
	}
}

func TestKeyRowTypeProjectsInKeyOrder(t *testing.T) {
	st := ShuffleType{
		Row: sampleRowType(),
		Key: []KeyField{{Name: "pos", Direction: Descending}, {Name: "chrom", Direction: Ascending}},
	}
	kt := st.KeyRowType()
	if len(kt.Fields) != 2 || kt.Fields[0].Name != "pos" || kt.Fields[1].Name != "chrom" {
		t.Fatalf("unexpected key row type: %+v", kt)
	}
}

func TestDirectionString(t *testing.T) {
	if Ascending.String() != "asc" || Descending.String() != "desc" {
		t.Fatalf("unexpected Direction.String() output")
	}
}
