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

import "errors"

// ErrTruncated is returned when a row or key byte stream ends before a
// complete field could be decoded. It is fatal for the connection on
// which it occurs (spec.md §4.1, §7).
var ErrTruncated = errors.New("codec: truncated record")

// MalformedRecordError is returned when a decoded tag byte does not
// match the kind the type descriptor declared for that field position.
// Like ErrTruncated, it is fatal for the connection on which it occurs.
type MalformedRecordError struct {
	Field string
	Want  byte
	Got   byte
}

func (e *MalformedRecordError) Error() string {
	return "codec: malformed record: field " + e.Field + ": unexpected tag"
}
