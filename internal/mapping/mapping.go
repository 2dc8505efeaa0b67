// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package mapping persists the original↔obfuscated symbol table so that
// the holder of the document can symbolicate crash reports and reverse
// individual names.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/mod/semver"

	"github.com/symcloak/symcloak/internal/hasher"
	"github.com/symcloak/symcloak/internal/symbol"
)

// Version is the document format version written by this store.
const Version = "1.0"

// ErrVersion is returned when loading a document whose version is not a
// valid version string or whose major revision differs from Version.
var ErrVersion = errors.New("unsupported mapping version")

// Entry records one rename. Original and Obfuscated are always present;
// the rest is carried when the scanner knew it.
type Entry struct {
	Original   string         `json:"original"`
	Obfuscated string         `json:"obfuscated"`
	Kind       symbol.Kind    `json:"kind"`
	Linkage    symbol.Linkage `json:"linkage"`
	Address    uint64         `json:"address,omitempty"`
	Size       uint64         `json:"size,omitempty"`
	SourceFile string         `json:"source_file,omitempty"`
	Line       int            `json:"line,omitempty"`
}

// Document is the serialized form of one obfuscation run.
type Document struct {
	Version       string           `json:"version"`
	Salt          string           `json:"salt"`
	HashAlgorithm hasher.Algorithm `json:"hash_algorithm"`
	Symbols       []Entry          `json:"symbols"`
}

// New returns an empty document stamped with the current version.
func New(salt string, algo hasher.Algorithm) *Document {
	return &Document{Version: Version, Salt: salt, HashAlgorithm: algo}
}

// Add appends one rename entry.
func (d *Document) Add(e Entry) { d.Symbols = append(d.Symbols, e) }

// Lookup returns the obfuscated name for an original, if recorded.
func (d *Document) Lookup(original string) (string, bool) {
	for _, e := range d.Symbols {
		if e.Original == original {
			return e.Obfuscated, true
		}
	}
	return "", false
}

// Reverse returns the original name for an obfuscated one, if recorded.
func (d *Document) Reverse(obfuscated string) (string, bool) {
	for _, e := range d.Symbols {
		if e.Obfuscated == obfuscated {
			return e.Original, true
		}
	}
	return "", false
}

// Marshal renders the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	buf, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// Save writes the document to path. Drivers running in parallel may
// share a salt and a map path, so the write is guarded by a file lock
// next to the target.
func (d *Document) Save(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cannot lock mapping file: %w", err)
	}
	defer lock.Unlock()

	buf, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o666); err != nil {
		return fmt.Errorf("cannot write mapping file: %w", err)
	}
	return nil
}

// Load reads and validates a mapping document from path. Documents from
// a newer major format revision are rejected rather than misread.
func Load(path string) (*Document, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read mapping file: %w", err)
	}
	return Unmarshal(buf)
}

// Unmarshal parses a document and checks its version.
func Unmarshal(buf []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(buf, &d); err != nil {
		return nil, fmt.Errorf("cannot parse mapping file: %w", err)
	}
	if !semver.IsValid("v" + d.Version) {
		return nil, fmt.Errorf("%w: %q", ErrVersion, d.Version)
	}
	if semver.Major("v"+d.Version) != semver.Major("v"+Version) {
		return nil, fmt.Errorf("%w: %q", ErrVersion, d.Version)
	}
	return &d, nil
}
