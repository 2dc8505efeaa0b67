// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package mangle parses and reconstructs the subset of the Itanium C++
// ABI mangled-name grammar needed for symbol renaming. Components are
// renamed individually while the ABI-level shape (length prefixes, N…E
// nesting, template markers, parameter encodings) is preserved so a host
// demangler can still parse the output.
package mangle

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedMangling = errors.New("malformed mangled name")

// IsMangled reports whether name looks like an Itanium mangled symbol.
func IsMangled(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "_Z")
}

// Token is one length-prefixed component inside N…E, together with a
// template argument group (I…E) that immediately follows it, kept verbatim.
type Token struct {
	Name     string
	Template string
}

// Components is the parsed form of a mangled symbol.
type Components struct {
	IsMangled      bool
	HasNamespace   bool
	HasClass       bool
	IsVTable       bool
	IsTypeinfo     bool
	IsTypeinfoName bool
	IsConstructor  bool
	IsDestructor   bool
	IsConst        bool
	IsVirtual      bool
	IsStatic       bool

	// IsNested records whether the name used the N…E form, which must
	// survive reconstruction even for a single nested component.
	IsNested bool

	// Nested holds every length-prefixed token inside N…E, in order.
	// Deeper nesting than ns::Class::method keeps all its components.
	Nested []Token

	// CtorDtor is the constructor/destructor discriminator (C1, C2, C3,
	// D0, D1, D2) when the nested name ends in one, kept verbatim.
	CtorDtor string

	// Params is the trailing parameter-type encoding, byte-for-byte.
	Params string

	// TemplateParams lists the raw I…E groups seen, for diagnostics only.
	TemplateParams []string
}

// Namespace returns the outermost namespace component, if any.
func (c Components) Namespace() string {
	if c.HasNamespace {
		return c.Nested[0].Name
	}
	return ""
}

// Class returns the class component, if any.
func (c Components) Class() string {
	if !c.HasClass {
		return ""
	}
	if c.CtorDtor != "" {
		return c.Nested[len(c.Nested)-1].Name
	}
	return c.Nested[len(c.Nested)-2].Name
}

// Method returns the method (or free function) component, if any.
func (c Components) Method() string {
	if c.CtorDtor != "" || len(c.Nested) == 0 {
		return ""
	}
	return c.Nested[len(c.Nested)-1].Name
}

// Parse decodes a mangled name into its components. Special symbols
// (vtable, typeinfo, typeinfo-name) are flagged and not decomposed
// further; the codec handles them separately. A name that does not start
// with _Z comes back with IsMangled unset and no error.
func Parse(name string) (Components, error) {
	var c Components
	if !IsMangled(name) {
		return c, nil
	}
	c.IsMangled = true

	switch {
	case strings.HasPrefix(name, "_ZTV"):
		c.IsVTable = true
		return c, nil
	case strings.HasPrefix(name, "_ZTI"):
		c.IsTypeinfo = true
		return c, nil
	case strings.HasPrefix(name, "_ZTS"):
		c.IsTypeinfoName = true
		return c, nil
	}

	pos := 2
	if name[pos] == 'N' {
		c.IsNested = true
		pos++
		if pos < len(name) && name[pos] == 'K' {
			c.IsConst = true
			pos++
		}
		end := -1
	loop:
		for pos < len(name) {
			switch b := name[pos]; {
			case b == 'E':
				end = pos
				pos++
				break loop
			case b >= '1' && b <= '9':
				tok, next, err := readToken(name, pos)
				if err != nil {
					return c, err
				}
				pos = next
				if pos < len(name) && name[pos] == 'I' {
					tmpl, next, err := readTemplate(name, pos)
					if err != nil {
						return c, err
					}
					tok.Template = tmpl
					c.TemplateParams = append(c.TemplateParams, tmpl)
					pos = next
				}
				c.Nested = append(c.Nested, tok)
			case (b == 'C' || b == 'D') && pos+1 < len(name) && name[pos+1] >= '0' && name[pos+1] <= '3':
				c.CtorDtor = name[pos : pos+2]
				c.IsConstructor = b == 'C'
				c.IsDestructor = b == 'D'
				pos += 2
			default:
				return c, fmt.Errorf("%w: unsupported token %q at %d in %q", ErrMalformedMangling, b, pos, name)
			}
		}
		if end < 0 {
			return c, fmt.Errorf("%w: unterminated nested name in %q", ErrMalformedMangling, name)
		}
		if len(c.Nested) == 0 {
			return c, fmt.Errorf("%w: empty nested name in %q", ErrMalformedMangling, name)
		}
	} else {
		tok, next, err := readToken(name, pos)
		if err != nil {
			return c, err
		}
		c.Nested = append(c.Nested, tok)
		pos = next
	}

	// Classified from the tail: the last token is the method, the one
	// before it the class, anything earlier a namespace. A constructor
	// or destructor has no method token of its own; the whole nested
	// path names the class.
	n := len(c.Nested)
	if c.CtorDtor != "" {
		c.HasClass = true
		c.HasNamespace = n >= 2
	} else if c.IsNested {
		c.HasClass = n >= 2
		c.HasNamespace = n >= 3
	}

	c.Params = name[pos:]
	if tmpl := leadingTemplate(c.Params); tmpl != "" {
		c.TemplateParams = append(c.TemplateParams, tmpl)
	}
	return c, nil
}

// readToken reads one <decimal-length><bytes> token starting at pos.
func readToken(name string, pos int) (Token, int, error) {
	n := 0
	digits := 0
	for pos < len(name) && name[pos] >= '0' && name[pos] <= '9' {
		n = n*10 + int(name[pos]-'0')
		pos++
		digits++
		if n > len(name) {
			return Token{}, 0, fmt.Errorf("%w: length overflows input in %q", ErrMalformedMangling, name)
		}
	}
	if digits == 0 || n == 0 {
		return Token{}, 0, fmt.Errorf("%w: missing length prefix at %d in %q", ErrMalformedMangling, pos, name)
	}
	if pos+n > len(name) {
		return Token{}, 0, fmt.Errorf("%w: length %d exceeds remaining input in %q", ErrMalformedMangling, n, name)
	}
	return Token{Name: name[pos : pos+n]}, pos + n, nil
}

// readTemplate scans a balanced I…E group starting at an 'I'. Template
// argument grammars with literal E markers inside (expression arguments)
// are beyond the supported subset and come back as malformed, which the
// codec turns into a whole-name fallback hash.
func readTemplate(name string, pos int) (string, int, error) {
	start := pos
	depth := 0
	for pos < len(name) {
		switch name[pos] {
		case 'I':
			depth++
		case 'E':
			depth--
			if depth == 0 {
				return name[start : pos+1], pos + 1, nil
			}
		}
		pos++
	}
	return "", 0, fmt.Errorf("%w: unterminated template arguments in %q", ErrMalformedMangling, name)
}

// leadingTemplate returns the I…E group at the start of a parameter
// trailer, if one is present and balanced.
func leadingTemplate(trailer string) string {
	if !strings.HasPrefix(trailer, "I") {
		return ""
	}
	tmpl, _, err := readTemplate(trailer, 0)
	if err != nil {
		return ""
	}
	return tmpl
}
