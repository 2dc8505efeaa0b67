// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

package mangle

import (
	"strconv"

	"github.com/ianlancetaylor/demangle"

	"github.com/symcloak/symcloak/internal/hasher"
)

// Component hash widths. Namespaces get a slightly shorter token than
// classes and methods so nested identifiers stay a reasonable length.
const (
	nsHashLen     = 8
	classHashLen  = 10
	methodHashLen = 10
)

// Codec renames the components of Itanium mangled symbols. Component
// caches guarantee that a class used in several symbols renames to the
// same token across a translation unit. Not safe for concurrent use.
type Codec struct {
	hasher *hasher.Hasher

	namespaces map[string]string
	classes    map[string]string
	methods    map[string]string
	memo       map[string]string
}

// New returns a codec hashing components through h.
func New(h *hasher.Hasher) *Codec {
	return &Codec{
		hasher:     h,
		namespaces: make(map[string]string),
		classes:    make(map[string]string),
		methods:    make(map[string]string),
		memo:       make(map[string]string),
	}
}

// Obfuscate renames every component of a mangled symbol and reassembles
// it in ABI shape. A non-mangled name comes back unchanged. Malformed
// input is recovered with a whole-name fallback hash that still starts
// with _Z; the wrapped ErrMalformedMangling is returned alongside the
// fallback so the caller can log it.
func (c *Codec) Obfuscate(name string) (string, error) {
	if out, ok := c.memo[name]; ok {
		return out, nil
	}

	comps, err := Parse(name)
	if err != nil {
		out := "_Z" + lengthPrefix(c.hasher.Hash(name, "symbol"))
		c.memo[name] = out
		return out, err
	}
	if !comps.IsMangled {
		return name, nil
	}

	var out string
	switch {
	case comps.IsVTable:
		out = c.obfuscateVTable(name)
	case comps.IsTypeinfo, comps.IsTypeinfoName:
		out = c.obfuscateTypeinfo(name)
	default:
		out = c.reconstruct(comps)
	}
	c.memo[name] = out
	return out, nil
}

// reconstruct rebuilds the mangled form with each component renamed. The
// trailing parameter bytes are carried over verbatim so overload
// resolution shape survives; a missing trailer becomes the void arity v.
func (c *Codec) reconstruct(comps Components) string {
	out := "_Z"
	if comps.IsNested {
		out += "N"
		if comps.IsConst {
			out += "K"
		}
		n := len(comps.Nested)
		classAt := n - 2
		if comps.CtorDtor != "" {
			classAt = n - 1
		}
		for i, tok := range comps.Nested {
			var obf string
			switch {
			case i < classAt:
				obf = c.obfuscateNamespace(tok.Name)
			case i == classAt:
				obf = c.obfuscateClass(tok.Name)
			default:
				obf = c.obfuscateMethod(tok.Name)
			}
			out += lengthPrefix(obf) + tok.Template
		}
		out += comps.CtorDtor
		out += "E"
	} else {
		out += lengthPrefix(c.hasher.Hash(comps.Nested[0].Name, "")) + comps.Nested[0].Template
	}

	if comps.Params == "" {
		return out + "v"
	}
	return out + comps.Params
}

// obfuscateVTable renames the class inside _ZTV<class>, reusing the
// shared class cache so the vtable tracks its class. Anything it cannot
// parse (nested vtables included) falls back to a whole-symbol hash.
func (c *Codec) obfuscateVTable(name string) string {
	tok, next, err := readToken(name, 4)
	if err == nil && next == len(name) {
		return "_ZTV" + lengthPrefix(c.obfuscateClass(tok.Name))
	}
	return "_ZTV" + c.hasher.Hash(name, "vtable")
}

// obfuscateTypeinfo handles both _ZTI and _ZTS symbols.
func (c *Codec) obfuscateTypeinfo(name string) string {
	return name[:4] + clamp(c.hasher.Hash(name, "typeinfo"), methodHashLen)
}

func (c *Codec) obfuscateNamespace(ns string) string {
	if obf, ok := c.namespaces[ns]; ok {
		return obf
	}
	obf := "N" + clamp(c.hasher.Hash(ns, "ns"), nsHashLen)
	c.namespaces[ns] = obf
	return obf
}

func (c *Codec) obfuscateClass(class string) string {
	if obf, ok := c.classes[class]; ok {
		return obf
	}
	obf := "C" + clamp(c.hasher.Hash(class, "class"), classHashLen)
	c.classes[class] = obf
	return obf
}

func (c *Codec) obfuscateMethod(method string) string {
	if obf, ok := c.methods[method]; ok {
		return obf
	}
	obf := "M" + clamp(c.hasher.Hash(method, "method"), methodHashLen)
	c.methods[method] = obf
	return obf
}

// Demangle returns the human-readable pre-obfuscation form for verbose
// diagnostics. It never influences the rename; an undemanglable name
// comes back unchanged.
func (c *Codec) Demangle(name string) string {
	return demangle.Filter(name, demangle.NoParams, demangle.NoTemplateParams)
}

func lengthPrefix(s string) string {
	return strconv.Itoa(len(s)) + s
}

func clamp(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
