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

// Value is a single decoded field. Exactly one of the typed members is
// meaningful, selected by the field's typedesc.Kind; Null overrides all
// of them when the field is nullable and missing.
type Value struct {
	Null  bool
	I32   int32
	I64   int64
	F64   float64
	Bool  bool
	Str   string
	Bytes []byte
}

// Row is a decoded record: one Value per field of the RowType the Codec
// was constructed with, in field order.
type Row []Value
