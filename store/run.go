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

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"
)

// run is one sorted, flushed file on disk (spec.md GLOSSARY: "Run").
// Its entries are already in key order with ties broken by seq, so a
// run can be read back with a single forward pass.
type run struct {
	path string
	seq  int
	// min/max bound the run's keys. Range uses min to skip runs whose
	// smallest key lies past the end of its interval; max is recorded
	// but not consulted.
	min, max []byte
}

// writeRun writes entries (already sorted) to a new run file under dir
// named by seq, compressed with s2 block compression — the same
// library the donor codebase's compr package wraps for on-disk data.
func writeRun(dir string, seq int, entries []entry) (*run, error) {
	path := filepath.Join(dir, fmt.Sprintf("run-%08d.run", seq))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := s2.NewWriter(f)
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(entries)))
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, err
	}
	var lenbuf [4]byte
	var seqbuf [8]byte
	for _, e := range entries {
		binary.BigEndian.PutUint32(lenbuf[:], uint32(len(e.key)))
		if _, err := w.Write(lenbuf[:]); err != nil {
			return nil, err
		}
		if _, err := w.Write(e.key); err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(lenbuf[:], uint32(len(e.row)))
		if _, err := w.Write(lenbuf[:]); err != nil {
			return nil, err
		}
		if _, err := w.Write(e.row); err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint64(seqbuf[:], e.seq)
		if _, err := w.Write(seqbuf[:]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, err
	}

	r := &run{path: path, seq: seq}
	if len(entries) > 0 {
		r.min = entries[0].key
		r.max = entries[len(entries)-1].key
	}
	return r, nil
}

// runReader sequentially decodes a run file's entries in order.
type runReader struct {
	f    *os.File
	zr   *s2.Reader
	left uint32
}

func openRun(r *run) (*runReader, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	zr := s2.NewReader(f)
	var hdr [4]byte
	if _, err := io.ReadFull(zr, hdr[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &runReader{f: f, zr: zr, left: binary.BigEndian.Uint32(hdr[:])}, nil
}

// next returns the next entry in the run, or ok=false at end of file.
func (rr *runReader) next() (e entry, ok bool, err error) {
	if rr.left == 0 {
		return entry{}, false, nil
	}
	var lenbuf [4]byte
	if _, err := io.ReadFull(rr.zr, lenbuf[:]); err != nil {
		return entry{}, false, err
	}
	keylen := binary.BigEndian.Uint32(lenbuf[:])
	key := make([]byte, keylen)
	if _, err := io.ReadFull(rr.zr, key); err != nil {
		return entry{}, false, err
	}
	if _, err := io.ReadFull(rr.zr, lenbuf[:]); err != nil {
		return entry{}, false, err
	}
	rowlen := binary.BigEndian.Uint32(lenbuf[:])
	row := make([]byte, rowlen)
	if _, err := io.ReadFull(rr.zr, row); err != nil {
		return entry{}, false, err
	}
	var seqbuf [8]byte
	if _, err := io.ReadFull(rr.zr, seqbuf[:]); err != nil {
		return entry{}, false, err
	}
	rr.left--
	return entry{key: key, row: row, seq: binary.BigEndian.Uint64(seqbuf[:])}, true, nil
}

func (rr *runReader) close() error {
	return rr.f.Close()
}
