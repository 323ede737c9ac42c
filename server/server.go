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

// Package server implements the shuffle service's connection handler
// (spec.md §4.5): accept TLS connections, run the per-connection
// protocol loop, and dispatch each opcode to the Registry and the
// shuffle's Store.
package server

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/hail-is/shuffler/codec"
	"github.com/hail-is/shuffler/registry"
	"github.com/hail-is/shuffler/shuffleid"
	"github.com/hail-is/shuffler/store"
	"github.com/hail-is/shuffler/transport"
	"github.com/hail-is/shuffler/typedesc"
)

// idle connection timeout: the only application-level timeout this
// design has (spec.md §5): "only the TCP read timeout (60 s)".
const defaultIdleTimeout = 60 * time.Second

// Option configures a Server at construction, following the donor
// codebase's tenant.Option / store.Option convention.
type Option func(*Server)

// WithIdleTimeout overrides the 60-second idle read timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) { s.idleTimeout = d }
}

// WithValidator installs a transport.Validator consulted during the
// accept-time token handshake. A nil Validator (the default) accepts
// every connection, leaving token issuance and verification policy to
// an external collaborator (spec.md §1).
func WithValidator(v transport.Validator) Option {
	return func(s *Server) { s.validate = v }
}

// shuffleState is the server-side record described in spec.md §3:
// "{identifier, type descriptor, Store handle, creation timestamp}".
// The Registry (spec.md §4.4) only ever holds the Store half of this;
// the Server keeps the descriptor/codec half locally because no other
// component needs it.
type shuffleState struct {
	typ     typedesc.ShuffleType
	codec   *codec.Codec
	created time.Time
}

// Server owns a Registry and a logger, mirroring the donor codebase's
// cmd/snellerd server struct (manager *tenant.Manager, logger
// *log.Logger).
type Server struct {
	Registry *registry.Registry

	storeRoot   string
	logger      *log.Logger
	idleTimeout time.Duration
	validate    transport.Validator

	mu     sync.RWMutex
	states map[shuffleid.ID]*shuffleState
}

// New builds a Server that persists Store data under storeRoot.
func New(storeRoot string, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		Registry:    registry.New(),
		storeRoot:   storeRoot,
		logger:      logger,
		idleTimeout: defaultIdleTimeout,
		states:      make(map[shuffleid.ID]*shuffleState),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// Serve accepts connections on ln until it returns an error (typically
// because ln was closed by Shutdown), running one handler per
// connection (spec.md §5: "one lightweight task per accepted
// connection").
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Shutdown destroys every live shuffle. Closing the listener passed to
// Serve is the caller's responsibility. Shutdown does not close or
// signal open connections: each connection task keeps running until
// its client sends EOS, a read or write fails, a request names a
// shuffle that no longer exists (which every shuffle destroyed here
// then does), or the idle timeout expires.
func (s *Server) Shutdown() {
	s.Registry.CloseAll()
}

func (s *Server) putState(id shuffleid.ID, st *shuffleState) {
	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()
}

func (s *Server) getState(id shuffleid.ID) (*shuffleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	return st, ok
}

func (s *Server) dropState(id shuffleid.ID) {
	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
}

// openStore allocates the on-disk Store backing a freshly started
// shuffle, ordering encoded keys with the shuffle's own codec.
func (s *Server) openStore(id shuffleid.ID, c *codec.Codec) (*store.Store, error) {
	cmp := func(a, b []byte) int { return int(codec.Order(a, b)) }
	return store.New(s.storeRoot, id.String(), cmp, store.WithLogger(s.logger))
}
