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
	"io"
	"net"
	"testing"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/wire"
)

func TestClassifyOK(t *testing.T) {
	if got := classify(nil); got != outcomeOK {
		t.Fatalf("classify(nil) = %v, want outcomeOK", got)
	}
}

func TestClassifyTransientOnNetworkErrors(t *testing.T) {
	cases := []error{
		io.EOF,
		io.ErrUnexpectedEOF,
		&net.OpError{Op: "read", Err: errors.New("connection reset by peer")},
	}
	for _, err := range cases {
		if got := classify(err); got != outcomeTransientIO {
			t.Fatalf("classify(%v) = %v, want outcomeTransientIO", err, got)
		}
	}
}

func TestClassifyFatalOnProtocolErrors(t *testing.T) {
	cases := []error{
		wire.ErrUnknownShuffle,
		wire.ErrMalformedRequest,
		&wire.TypeMismatchError{Reason: "key field not in row type"},
		codec.ErrTruncated,
		&codec.MalformedRecordError{Field: "a", Want: 1, Got: 2},
	}
	for _, err := range cases {
		if got := classify(err); got != outcomeFatal {
			t.Fatalf("classify(%v) = %v, want outcomeFatal", err, got)
		}
	}
}

func TestClassifyFatalOnClosed(t *testing.T) {
	if got := classify(errClosed); got != outcomeFatal {
		t.Fatalf("classify(errClosed) = %v, want outcomeFatal", got)
	}
}
