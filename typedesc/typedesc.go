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

// Package typedesc describes the row and key type descriptors that
// accompany a shuffle's START request.
//
// A descriptor is fixed for the lifetime of a shuffle: it is sent once
// by the producer that opens the shuffle and is used both to build the
// Codec that (de)serializes rows and to derive the comparator the Store
// uses for ordering. See codec.New and store.New.
package typedesc

import "fmt"

// Kind identifies the logical type of a single row field.
type Kind uint8

const (
	Int32 Kind = iota
	Int64
	Float64
	Bool
	String
	Bytes
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is one named, kinded column of a row type.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// RowType is the ordered list of fields that make up a row.
//
// Field order is significant: it is the order fields are written to and
// read from the wire by codec.Codec.
type RowType struct {
	Fields []Field
}

// ByName returns the field named n and its index, or ok=false if no
// such field exists.
func (t RowType) ByName(n string) (f Field, index int, ok bool) {
	for i, fld := range t.Fields {
		if fld.Name == n {
			return fld, i, true
		}
	}
	return Field{}, -1, false
}

// HasNullable reports whether any field of t may be missing, which
// determines whether encoded rows carry a missingness bitmap.
func (t RowType) HasNullable() bool {
	for _, f := range t.Fields {
		if f.Nullable {
			return true
		}
	}
	return false
}

// Direction is the sort direction of one key field.
type Direction uint8

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// KeyField names one field of the row type that participates in the
// shuffle's sort key, along with the direction it sorts in.
type KeyField struct {
	Name      string
	Direction Direction
}

// ShuffleType is the complete type descriptor sent at START: the row
// type plus the ordered list of key fields that derive the row's key.
type ShuffleType struct {
	Row RowType
	Key []KeyField
}

// KeyRowType projects the subset (and order) of Row's fields named by
// Key, in key order. It is the RowType a codec uses to encode just the
// key portion of a row.
func (t ShuffleType) KeyRowType() RowType {
	out := RowType{Fields: make([]Field, len(t.Key))}
	for i, kf := range t.Key {
		f, _, ok := t.Row.ByName(kf.Name)
		if !ok {
			// Validate should have been called first; this is a
			// programmer error, not a wire error.
			panic(fmt.Sprintf("typedesc: key field %q not found in row type", kf.Name))
		}
		out.Fields[i] = f
	}
	return out
}

// Validate checks the structural-prefix invariant from spec.md §3: every
// key field name must exist in the row type with the same logical kind.
// It returns a *TypeMismatchError otherwise.
func (t ShuffleType) Validate() error {
	seen := make(map[string]bool, len(t.Key))
	for _, kf := range t.Key {
		if seen[kf.Name] {
			return &TypeMismatchError{Reason: fmt.Sprintf("key field %q repeated", kf.Name)}
		}
		seen[kf.Name] = true
		f, _, ok := t.Row.ByName(kf.Name)
		if !ok {
			return &TypeMismatchError{Reason: fmt.Sprintf("key field %q not present in row type", kf.Name)}
		}
		_ = f // kind is carried structurally; no further coercion is permitted
	}
	return nil
}

// TypeMismatchError is returned by Validate when a shuffle type
// descriptor's key is not a structural prefix of its row type.
type TypeMismatchError struct {
	Reason string
}

func (e *TypeMismatchError) Error() string {
	return "typedesc: type mismatch: " + e.Reason
}
