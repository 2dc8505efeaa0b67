// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package rewrite substitutes renamed identifiers in source text. Matches
// count only as whole identifiers, and replacements never re-scan their
// own output, so one mapped name can never corrupt another.
package rewrite

import (
	"bytes"
	"sort"
)

// Apply returns src with every original identifier in renames replaced.
// mask, when non-nil, is the lexical mask of src (same length, comments
// and literals blanked); matches falling in blanked ranges are skipped,
// which keeps string literals and comments intact.
//
// Longer originals are substituted before shorter ones, so when both foo
// and foo_bar are mapped, foo_bar is replaced whole and its bytes are
// never re-scanned for foo.
func Apply(src []byte, renames map[string]string, mask []byte) []byte {
	originals := make([]string, 0, len(renames))
	for orig := range renames {
		originals = append(originals, orig)
	}
	// Descending length; ties by name to keep runs deterministic.
	sort.Slice(originals, func(i, j int) bool {
		if len(originals[i]) != len(originals[j]) {
			return len(originals[i]) > len(originals[j])
		}
		return originals[i] < originals[j]
	})

	// prot tracks which bytes must not be rewritten: the caller's
	// blanked ranges, plus every replacement already inserted. A byte
	// is protected wherever prot differs from the text.
	prot := mask
	if prot == nil {
		prot = make([]byte, len(src))
		copy(prot, src)
	}

	out := src
	for _, orig := range originals {
		out, prot = replaceWord(out, prot, orig, renames[orig])
	}
	return out
}

// replaceWord substitutes word for repl at every unprotected
// whole-identifier match, rebuilding prot alongside so later passes see
// accurate protected ranges at their shifted offsets. Inserted
// replacements are themselves protected, so no pass ever rewrites the
// output of another.
func replaceWord(src, prot []byte, word, repl string) ([]byte, []byte) {
	var out, outProt []byte
	wordBytes := []byte(word)
	pos := 0
	for {
		rel := bytes.Index(src[pos:], wordBytes)
		if rel < 0 {
			out = append(out, src[pos:]...)
			outProt = append(outProt, prot[pos:]...)
			break
		}
		idx := pos + rel
		end := idx + len(word)
		whole := (idx == 0 || !isIdentByte(src[idx-1])) &&
			(end == len(src) || !isIdentByte(src[end]))
		// A protected byte differs from the source byte; identifier
		// characters are never spaces, so blanking always differs.
		protected := prot[idx] != src[idx]
		if !whole || protected {
			// Advance one byte past the failed match start, not the
			// whole word, so overlapping candidates are still seen.
			out = append(out, src[pos:idx+1]...)
			outProt = append(outProt, prot[pos:idx+1]...)
			pos = idx + 1
			continue
		}
		out = append(out, src[pos:idx]...)
		out = append(out, repl...)
		outProt = append(outProt, prot[pos:idx]...)
		for range repl {
			outProt = append(outProt, ' ')
		}
		// The cursor lands after the inserted replacement, never
		// inside it.
		pos = end
	}
	return out, outProt
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
