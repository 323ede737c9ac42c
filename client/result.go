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

package client

import (
	"errors"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/wire"
)

// outcome classifies the result of one attempt at an operation, per
// the redesign direction of spec.md §9: replace exception-driven
// reconnect control flow with an explicit discriminator rather than
// distinguishing retryable from fatal conditions by error type at each
// call site.
type outcome int

const (
	// outcomeOK means the operation completed; its result (if any) is
	// valid.
	outcomeOK outcome = iota
	// outcomeTransientIO means the connection was lost or refused;
	// the caller should reconnect and retry.
	outcomeTransientIO
	// outcomeFatal means the operation itself failed for a reason a
	// reconnect cannot fix (e.g. TypeMismatch, UnknownShuffle against
	// a shuffle this client did not create).
	outcomeFatal
)

func classify(err error) outcome {
	if err == nil {
		return outcomeOK
	}
	if isProtocolError(err) {
		return outcomeFatal
	}
	if isTransient(err) {
		return outcomeTransientIO
	}
	return outcomeFatal
}

// isProtocolError reports whether err reflects a problem with the
// request or the shuffle itself rather than with the connection: the
// bytes it sent were rejected, or a decoded record didn't match its
// own type descriptor. Reconnecting and resending changes nothing, so
// these must never be retried, unlike a genuine network I/O failure
// (a closed conn, io.EOF/io.ErrUnexpectedEOF) on the same attempt.
func isProtocolError(err error) bool {
	var typeMismatch *wire.TypeMismatchError
	var malformed *codec.MalformedRecordError
	switch {
	case errors.As(err, &typeMismatch):
		return true
	case errors.As(err, &malformed):
		return true
	case errors.Is(err, wire.ErrUnknownShuffle),
		errors.Is(err, wire.ErrMalformedRequest),
		errors.Is(err, codec.ErrTruncated):
		return true
	}
	return false
}
