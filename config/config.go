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

// Package config loads the client's deploy-configuration document
// (spec.md §6): how to reach the shuffle service, and in which
// namespace. Discovery of the document's own location, and of the
// cluster's actual hostnames, is an external collaborator; this
// package only parses the recognized fields and applies the two
// environment overrides.
//
// sigs.k8s.io/yaml (already a donor dependency for its tenant manifest
// config) is used here rather than gopkg.in/yaml.v2 directly, so that
// struct tags stay the familiar `json:"..."` form YAML-via-JSON
// round-tripping requires.
package config

import (
	"fmt"
	"os"
	"strconv"

	"sigs.k8s.io/yaml"
)

// Location is the reachability mode this client should use to dial the
// shuffle service (spec.md §4.7).
type Location string

const (
	LocationDirect          Location = "direct"
	LocationProxiedInternal Location = "proxied-internal"
	LocationProxiedExternal Location = "proxied-external"
)

func (l Location) valid() bool {
	switch l {
	case LocationDirect, LocationProxiedInternal, LocationProxiedExternal:
		return true
	default:
		return false
	}
}

// Document is the recognized subset of the deploy-configuration
// document (spec.md §6).
type Document struct {
	Location         Location `json:"location"`
	DefaultNamespace string   `json:"default_namespace"`
	Domain           string   `json:"domain"`

	// Host and Port are not document fields; they are populated from
	// SHUFFLER_HOST / SHUFFLER_PORT by ApplyEnv, which Load already
	// calls after parsing (see Load's doc comment).
	Host string `json:"-"`
	Port int    `json:"-"`
}

// Load parses a deploy-configuration document from path and applies
// the SHUFFLER_HOST / SHUFFLER_PORT environment overrides on top of
// it, matching spec.md §6's "Environment: SHUFFLER_HOST, SHUFFLER_PORT
// override discovery."
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if doc.Location == "" {
		doc.Location = LocationDirect
	}
	if !doc.Location.valid() {
		return nil, fmt.Errorf("config: %s: unrecognized location %q", path, doc.Location)
	}
	doc.ApplyEnv()
	return &doc, nil
}

// ApplyEnv overwrites Host/Port from SHUFFLER_HOST/SHUFFLER_PORT when
// they are set, regardless of what Load parsed.
func (d *Document) ApplyEnv() {
	if h := os.Getenv("SHUFFLER_HOST"); h != "" {
		d.Host = h
	}
	if p := os.Getenv("SHUFFLER_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			d.Port = n
		}
	}
}
