// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package hasher produces deterministic, collision-checked identifiers
// from symbol names and salts.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// Algorithm selects the keyed hashing primitive. The integer values are
// part of the mapping document format.
type Algorithm int

const (
	SHA256 Algorithm = iota
	BLAKE2b
	SipHash
)

func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case BLAKE2b:
		return "blake2b"
	case SipHash:
		return "siphash"
	}
	return "unknown"
}

// ParseAlgorithm maps the CLI spelling to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "sha256":
		return SHA256, nil
	case "blake2b":
		return BLAKE2b, nil
	case "siphash":
		return SipHash, nil
	}
	return 0, fmt.Errorf("%w: unknown hash algorithm %q", ErrInvalidConfig, s)
}

// PrefixStyle controls what is prepended to a hash to form the final
// identifier.
type PrefixStyle int

const (
	// PrefixNone emits the bare hash, with an "s_" escape only when the
	// hash would otherwise start with a digit.
	PrefixNone PrefixStyle = iota
	// PrefixTyped prepends a per-kind marker: f_, v_, C_, N_, a_.
	PrefixTyped
	// PrefixUnderscore prepends a single underscore.
	PrefixUnderscore
)

// ParsePrefixStyle maps the CLI spelling to a PrefixStyle.
func ParsePrefixStyle(s string) (PrefixStyle, error) {
	switch s {
	case "none":
		return PrefixNone, nil
	case "typed":
		return PrefixTyped, nil
	case "underscore":
		return PrefixUnderscore, nil
	}
	return 0, fmt.Errorf("%w: unknown prefix style %q", ErrInvalidConfig, s)
}

// Hash lengths below four characters collide almost immediately, and
// SHA-256 gives us 64 hex characters at most.
const (
	minLength = 4
	maxLength = 64
)

// collisionRetries bounds the unique-hash loop. Exhausting it means the
// configured length is far too short for the symbol corpus, which is a
// configuration problem rather than bad luck.
const collisionRetries = 10000

var (
	ErrInvalidConfig      = errors.New("invalid hasher config")
	ErrCollisionExhausted = errors.New("too many hash collisions")
)

// Config carries the knobs that determine every hash output. Two hashers
// built from equal configs produce identical names for identical inputs.
type Config struct {
	Algorithm Algorithm
	Prefix    PrefixStyle
	// Length is the number of hex characters kept from each digest,
	// between 4 and 64. A SipHash digest has only 16, so SipHash output
	// is never longer than that.
	Length int
	Salt   string
	// Deterministic is recorded for the mapping document; the hasher
	// itself has no nondeterministic mode.
	Deterministic bool
}

// DefaultConfig matches the tool's defaults: sha256, typed prefixes,
// twelve characters.
func DefaultConfig() Config {
	return Config{Algorithm: SHA256, Prefix: PrefixTyped, Length: 12, Deterministic: true}
}

// Hasher turns names into fixed-width identifiers and enforces uniqueness
// across everything it has handed out. Not safe for concurrent use; each
// driver owns one.
type Hasher struct {
	cfg  Config
	used map[string]bool
}

// New validates cfg and returns a ready hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.Length < minLength || cfg.Length > maxLength {
		return nil, fmt.Errorf("%w: hash length %d outside [%d, %d]",
			ErrInvalidConfig, cfg.Length, minLength, maxLength)
	}
	switch cfg.Algorithm {
	case SHA256, BLAKE2b, SipHash:
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %d", ErrInvalidConfig, cfg.Algorithm)
	}
	return &Hasher{cfg: cfg, used: make(map[string]bool)}, nil
}

// Salt returns the configured global salt.
func (h *Hasher) Salt() string { return h.cfg.Salt }

// SetSalt replaces the global salt. The driver calls this once, before
// any hashing, when deriving a module salt.
func (h *Hasher) SetSalt(salt string) { h.cfg.Salt = salt }

// Algorithm returns the configured algorithm.
func (h *Hasher) Algorithm() Algorithm { return h.cfg.Algorithm }

// Hash returns the truncated digest of globalSalt || contextSalt || name.
// It performs no uniqueness checking and applies no prefix; use Unique or
// the per-kind entry points for final identifiers.
func (h *Hasher) Hash(name, contextSalt string) string {
	input := h.cfg.Salt + contextSalt + name
	var digest string
	switch h.cfg.Algorithm {
	case BLAKE2b:
		sum := blake2b.Sum512([]byte(input))
		digest = hex.EncodeToString(sum[:])
	case SipHash:
		digest = fmt.Sprintf("%016x", h.sipHash(input))
	default:
		sum := sha256.Sum256([]byte(input))
		digest = hex.EncodeToString(sum[:])
	}
	if len(digest) > h.cfg.Length {
		digest = digest[:h.cfg.Length]
	}
	return digest
}

// SipHash-2-4 test vector keys, used when no salt is configured.
const (
	sipK0 = 0x0706050403020100
	sipK1 = 0x0f0e0d0c0b0a0908
)

func (h *Hasher) sipHash(input string) uint64 {
	k0, k1 := uint64(sipK0), uint64(sipK1)
	if h.cfg.Salt != "" {
		// Derive the keys from the salt by self-hashing under the
		// fixed constants, keeping the whole construction
		// deterministic in the salt alone.
		k0 = siphash.Hash(sipK0, sipK1, []byte(h.cfg.Salt+"k0"))
		k1 = siphash.Hash(sipK0, sipK1, []byte(h.cfg.Salt+"k1"))
	}
	return siphash.Hash(k0, k1, []byte(input))
}

// applyPrefix turns a raw hash into an identifier according to the
// configured style. typedPrefix is only honoured under PrefixTyped.
func (h *Hasher) applyPrefix(hash, typedPrefix string) string {
	switch h.cfg.Prefix {
	case PrefixTyped:
		if typedPrefix != "" {
			return typedPrefix + hash
		}
	case PrefixUnderscore:
		return "_" + hash
	case PrefixNone:
		// A hex hash may start with a digit, which is not a valid
		// identifier start in C.
		if hash != "" && hash[0] >= '0' && hash[0] <= '9' {
			return "s_" + hash
		}
	}
	return hash
}

// Unique returns a prefixed hash of name that has not been handed out
// before. On collision it re-hashes name with an appended counter until a
// free identifier appears, failing with ErrCollisionExhausted after
// collisionRetries attempts.
func (h *Hasher) Unique(name, typedPrefix string) (string, error) {
	full := h.applyPrefix(h.Hash(name, ""), typedPrefix)
	for counter := 0; h.used[full]; counter++ {
		if counter >= collisionRetries {
			return "", fmt.Errorf("%w for %q; increase the hash length", ErrCollisionExhausted, name)
		}
		full = h.applyPrefix(h.Hash(name+"_"+strconv.Itoa(counter), ""), typedPrefix)
	}
	h.used[full] = true
	return full, nil
}

// MarkUsed reserves an identifier in the collision namespace without
// deriving it. The driver uses this to keep codec-produced mangled names
// and flat names from ever colliding.
func (h *Hasher) MarkUsed(name string) { h.used[name] = true }

// Used reports whether an identifier has been handed out or reserved.
func (h *Hasher) Used(name string) bool { return h.used[name] }

// Per-kind entry points. Under PrefixTyped each kind gets its marker;
// under the other styles they all behave like Unique with no marker.

func (h *Hasher) Function(name string) (string, error)  { return h.Unique(name, "f_") }
func (h *Hasher) Variable(name string) (string, error)  { return h.Unique(name, "v_") }
func (h *Hasher) Class(name string) (string, error)     { return h.Unique(name, "C_") }
func (h *Hasher) Namespace(name string) (string, error) { return h.Unique(name, "N_") }
func (h *Hasher) Alias(name string) (string, error)     { return h.Unique(name, "a_") }
