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

// Command shufflerd runs the shuffle service. Per spec.md §6 it
// accepts no flags beyond the listening port and the path to a TLS
// material directory: everything else (token issuance, deploy
// discovery) is an external collaborator's responsibility.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hail-is/shuffler/server"
)

func main() {
	port := flag.Int("port", 4443, "TLS listen port")
	tlsDir := flag.String("tls-dir", "", "directory containing tls.crt and tls.key")
	flag.Parse()

	logger := log.New(os.Stderr, "shufflerd: ", log.LstdFlags|log.Lmicroseconds)

	if *tlsDir == "" {
		logger.Fatal("-tls-dir is required")
	}
	cert, err := tls.LoadX509KeyPair(filepath.Join(*tlsDir, "tls.crt"), filepath.Join(*tlsDir, "tls.key"))
	if err != nil {
		logger.Fatalf("loading TLS material from %s: %v", *tlsDir, err)
	}
	tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}}

	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", *port), tlsConf)
	if err != nil {
		logger.Fatalf("listen on port %d: %v", *port, err)
	}

	scratch := scratchRoot()
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		logger.Fatalf("creating scratch root %s: %v", scratch, err)
	}
	logger.Printf("persisting shuffle state under %s", scratch)

	srv := server.New(scratch, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Printf("shutting down")
		ln.Close()
		srv.Shutdown()
	}()

	if err := srv.Serve(ln); err != nil {
		logger.Printf("listener closed: %v", err)
	}
}

// scratchRoot is not a flag: spec.md §6 limits this command's flags to
// the port and the TLS material directory, so the per-shuffle scratch
// root is instead taken from the environment, with a sensible default.
func scratchRoot() string {
	if r := os.Getenv("SHUFFLER_SCRATCH_ROOT"); r != "" {
		return r
	}
	return filepath.Join(os.TempDir(), "shuffler")
}
