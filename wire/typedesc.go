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
	"fmt"
	"io"

	"github.com/hail-is/shuffler/typedesc"
)

// WriteRowType writes a row type descriptor: a 4-byte field count
// followed by, per field, a length-prefixed name, a 1-byte kind tag,
// and a 1-byte nullable flag.
func WriteRowType(w io.Writer, t typedesc.RowType) error {
	if err := WriteUint32(w, uint32(len(t.Fields))); err != nil {
		return err
	}
	for _, f := range t.Fields {
		if err := WriteString(w, f.Name); err != nil {
			return err
		}
		if err := WriteByte(w, byte(f.Kind)); err != nil {
			return err
		}
		nullable := byte(0)
		if f.Nullable {
			nullable = 1
		}
		if err := WriteByte(w, nullable); err != nil {
			return err
		}
	}
	return nil
}

// ReadRowType is the inverse of WriteRowType.
func ReadRowType(r io.Reader) (typedesc.RowType, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return typedesc.RowType{}, err
	}
	t := typedesc.RowType{Fields: make([]typedesc.Field, n)}
	for i := range t.Fields {
		name, err := ReadString(r)
		if err != nil {
			return typedesc.RowType{}, err
		}
		kindByte, err := ReadByte(r)
		if err != nil {
			return typedesc.RowType{}, err
		}
		if kindByte > byte(typedesc.Bytes) {
			return typedesc.RowType{}, ErrMalformedRequest
		}
		nullableByte, err := ReadByte(r)
		if err != nil {
			return typedesc.RowType{}, err
		}
		t.Fields[i] = typedesc.Field{
			Name:     name,
			Kind:     typedesc.Kind(kindByte),
			Nullable: nullableByte != 0,
		}
	}
	return t, nil
}

// WriteKeyFields writes the key field array: a 4-byte count followed
// by, per field, a length-prefixed name and a 1-byte direction.
func WriteKeyFields(w io.Writer, fields []typedesc.KeyField) error {
	if err := WriteUint32(w, uint32(len(fields))); err != nil {
		return err
	}
	for _, f := range fields {
		if err := WriteString(w, f.Name); err != nil {
			return err
		}
		if err := WriteByte(w, byte(f.Direction)); err != nil {
			return err
		}
	}
	return nil
}

// ReadKeyFields is the inverse of WriteKeyFields.
func ReadKeyFields(r io.Reader) ([]typedesc.KeyField, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]typedesc.KeyField, n)
	for i := range out {
		name, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		dirByte, err := ReadByte(r)
		if err != nil {
			return nil, err
		}
		if dirByte > byte(typedesc.Descending) {
			return nil, ErrMalformedRequest
		}
		out[i] = typedesc.KeyField{Name: name, Direction: typedesc.Direction(dirByte)}
	}
	return out, nil
}

// StartPayload is the decoded payload of a START request.
type StartPayload struct {
	Row         typedesc.RowType
	RowScheme   EncodingScheme
	Key         []typedesc.KeyField
	KeyScheme   EncodingScheme
}

// WriteStart writes a START request payload (the opcode byte and the
// absent identifier are handled by the caller; see spec.md §4.3).
func WriteStart(w io.Writer, p StartPayload) error {
	if err := WriteRowType(w, p.Row); err != nil {
		return err
	}
	if err := WriteByte(w, byte(p.RowScheme)); err != nil {
		return err
	}
	if err := WriteKeyFields(w, p.Key); err != nil {
		return err
	}
	return WriteByte(w, byte(p.KeyScheme))
}

// ReadStart is the inverse of WriteStart.
func ReadStart(r io.Reader) (StartPayload, error) {
	row, err := ReadRowType(r)
	if err != nil {
		return StartPayload{}, err
	}
	rowScheme, err := ReadByte(r)
	if err != nil {
		return StartPayload{}, err
	}
	key, err := ReadKeyFields(r)
	if err != nil {
		return StartPayload{}, err
	}
	keyScheme, err := ReadByte(r)
	if err != nil {
		return StartPayload{}, err
	}
	if rowScheme != byte(SchemeTagStream) || keyScheme != byte(SchemeTagStream) {
		return StartPayload{}, fmt.Errorf("%w: unsupported encoding scheme", ErrMalformedRequest)
	}
	return StartPayload{
		Row:       row,
		RowScheme: EncodingScheme(rowScheme),
		Key:       key,
		KeyScheme: EncodingScheme(keyScheme),
	}, nil
}
