// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package scan enumerates declared symbols from C/C++ source text. It is
// a lexical recogniser, not a parser: it must never report a name that is
// not really declared in the unit (a false positive would cause a
// miss-rename), while missed declarations merely leave a symbol with its
// original name.
package scan

import (
	"regexp"
	"strings"

	"github.com/symcloak/symcloak/internal/preserve"
	"github.com/symcloak/symcloak/internal/symbol"
)

// rxFunc matches a function definition: a type word, the function name,
// a parameter list, and an opening brace. Matching against the masked
// buffer keeps comments, literals, and preprocessor lines out.
var rxFunc = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s+\**([A-Za-z_][A-Za-z0-9_]*)\s*\([^)]*\)\s*\{`)

// rxVar matches a global declaration of the primitive, pointer, and
// size-type keyword family, terminated by ; or =.
var rxVar = regexp.MustCompile(`\b(?:int|char|float|double|long|short|bool|size_t|ssize_t|u?int(?:8|16|32|64)_t)\s*\**\s*([A-Za-z_][A-Za-z0-9_]*)\s*[;=]`)

// Mask returns a copy of src in which comments, string and character
// literals, and preprocessor lines are blanked with spaces. Offsets and
// newlines are preserved, so positions in the mask map one-to-one onto
// the original buffer. Both the scanner and the text rewriter work
// against the mask so that neither ever touches those ranges.
func Mask(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)

	const (
		code = iota
		lineComment
		blockComment
		stringLit
		charLit
		preproc
	)
	state := code
	bol := true // at beginning of line, ignoring leading whitespace
	for i := 0; i < len(src); i++ {
		b := src[i]
		switch state {
		case code:
			switch {
			case b == '/' && i+1 < len(src) && src[i+1] == '/':
				state = lineComment
				out[i] = ' '
			case b == '/' && i+1 < len(src) && src[i+1] == '*':
				state = blockComment
				out[i] = ' '
			case b == '"':
				state = stringLit
				out[i] = ' '
			case b == '\'':
				state = charLit
				out[i] = ' '
			case b == '#' && bol:
				state = preproc
				out[i] = ' '
			}
		case lineComment:
			if b == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case blockComment:
			if b == '*' && i+1 < len(src) && src[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
			} else if b != '\n' {
				out[i] = ' '
			}
		case stringLit:
			switch b {
			case '\\':
				out[i] = ' '
				if i+1 < len(src) {
					i++
					if src[i] != '\n' {
						out[i] = ' '
					}
				}
			case '"', '\n':
				// An unterminated literal ends at the line break.
				state = code
				if b == '"' {
					out[i] = ' '
				}
			default:
				out[i] = ' '
			}
		case charLit:
			switch b {
			case '\\':
				out[i] = ' '
				if i+1 < len(src) {
					i++
					if src[i] != '\n' {
						out[i] = ' '
					}
				}
			case '\'', '\n':
				state = code
				if b == '\'' {
					out[i] = ' '
				}
			default:
				out[i] = ' '
			}
		case preproc:
			if b == '\\' && i+1 < len(src) && src[i+1] == '\n' {
				out[i] = ' '
				i++ // continuation line stays preprocessor
			} else if b == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		}
		if b == '\n' {
			bol = true
		} else if b != ' ' && b != '\t' {
			bol = false
		}
	}
	return out
}

// Symbols scans src and returns the declared functions, then the declared
// global variables, each group in document order, without duplicates. sourceFile is
// recorded on each descriptor for the mapping.
func Symbols(src []byte, sourceFile string) []symbol.Descriptor {
	masked := Mask(src)
	var syms []symbol.Descriptor
	seen := make(map[string]bool)

	type match struct {
		name string
		kind symbol.Kind
		off  int
	}
	var matches []match

	for _, m := range rxFunc.FindAllSubmatchIndex(masked, -1) {
		ret := string(masked[m[2]:m[3]])
		name := string(masked[m[4]:m[5]])
		// The "type word" before a control-flow statement's parentheses
		// is not a type; both words must be plausible identifiers.
		if preserve.Keyword(name) || isControlWord(ret) {
			continue
		}
		matches = append(matches, match{name, symbol.Function, m[4]})
	}
	for _, m := range rxVar.FindAllSubmatchIndex(masked, -1) {
		name := string(masked[m[2]:m[3]])
		if preserve.Keyword(name) {
			continue
		}
		matches = append(matches, match{name, symbol.GlobalVar, m[2]})
	}

	for _, m := range matches {
		if seen[m.name] {
			continue
		}
		seen[m.name] = true
		syms = append(syms, symbol.Descriptor{
			Name:       m.name,
			Kind:       m.kind,
			Linkage:    symbol.External,
			SourceFile: sourceFile,
			Line:       lineAt(src, m.off),
		})
	}
	return syms
}

// isControlWord reports words that precede a parenthesised expression
// without being a return type, so `else if (x) {` and friends never
// produce a declaration.
func isControlWord(w string) bool {
	switch w {
	case "if", "else", "for", "while", "switch", "return", "do", "case":
		return true
	}
	return false
}

func lineAt(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return 1 + strings.Count(string(src[:off]), "\n")
}
