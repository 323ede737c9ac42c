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

package store

import "errors"

// ErrIO wraps an underlying I/O failure on run files. When it comes
// from a flush (returned by Put) or a background merge, the Store is
// poisoned: all subsequent operations fail with ErrPoisoned until an
// explicit Close (spec.md §4.2, §7). An ErrIO from opening or reading
// runs in Range or PartitionKeys does not poison the Store.
type ErrIO struct {
	Op  string
	Err error
}

func (e *ErrIO) Error() string { return "store: I/O error during " + e.Op + ": " + e.Err.Error() }
func (e *ErrIO) Unwrap() error { return e.Err }

// ErrPoisoned is returned by every operation on a Store after it has
// recorded an ErrIO.
var ErrPoisoned = errors.New("store: poisoned by a prior I/O failure")

// ErrClosed is returned by operations on a Store after Close.
var ErrClosed = errors.New("store: closed")

var errInvalidPartitionCount = errors.New("store: partition count must be >= 0")
