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
	"encoding/binary"
	"io"

	"github.com/hail-is/shuffler/shuffleid"
)

// MaxBlobSize bounds a single length-prefixed blob (string, row, or
// key) to guard against a corrupt or hostile length field forcing an
// enormous allocation.
const MaxBlobSize = 256 << 20

func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func WriteByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteBlob writes a 4-byte big-endian length followed by b's bytes.
// Strings, encoded rows, and encoded keys are all framed this way.
func WriteBlob(w io.Writer, b []byte) error {
	if err := WriteUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBlob is the inverse of WriteBlob.
func ReadBlob(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxBlobSize {
		return nil, ErrMalformedRequest
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func WriteString(w io.Writer, s string) error {
	return WriteBlob(w, []byte(s))
}

func ReadString(r io.Reader) (string, error) {
	b, err := ReadBlob(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteID writes a shuffle identifier's 16 raw bytes.
func WriteID(w io.Writer, id shuffleid.ID) error {
	_, err := w.Write(id[:])
	return err
}

// ReadID reads a shuffle identifier's 16 raw bytes.
func ReadID(r io.Reader) (shuffleid.ID, error) {
	var id shuffleid.ID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return shuffleid.ID{}, err
	}
	return id, nil
}

// ReadOp reads the single opcode byte that begins every request.
func ReadOp(r io.Reader) (Op, error) {
	b, err := ReadByte(r)
	return Op(b), err
}
