// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package preserve decides whether a symbol must keep its original name.
// Renaming anything matched here would break linkage, ABI, or runtime
// contracts.
package preserve

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultSymbols are never renamed unless explicitly released. They cover
// the process entry points, the C runtime bring-up, and the C++ ABI
// personality symbols.
var defaultSymbols = []string{
	"main",
	"_start",
	"__libc_start_main",
	"_init",
	"_fini",
	"__cxa_atexit",
	"__cxa_finalize",
	"__dso_handle",
	"__gxx_personality_v0",
	"_GLOBAL__sub_I_",
}

// stdlibSymbols is the C library surface kept verbatim under
// PreserveStdlib. Renaming these would detach the program from libc.
var stdlibSymbols = map[string]bool{
	"malloc": true, "free": true, "calloc": true, "realloc": true,
	"printf": true, "scanf": true, "fprintf": true, "sprintf": true,
	"memcpy": true, "memset": true, "strlen": true, "strcmp": true,
	"exit": true, "abort": true, "signal": true, "sigaction": true,
}

// keywords is the C/C++ reserved-word set the source-text back end must
// never treat as a symbol.
var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true,
	"break": true, "continue": true, "return": true, "goto": true,
	"int": true, "char": true, "float": true, "double": true, "void": true,
	"long": true, "short": true, "signed": true, "unsigned": true,
	"const": true, "static": true, "extern": true, "register": true,
	"volatile": true, "auto": true,
	"struct": true, "union": true, "enum": true, "typedef": true,
	"sizeof": true, "typeof": true,
	"class": true, "public": true, "private": true, "protected": true,
	"virtual": true, "friend": true,
	"namespace": true, "using": true, "template": true, "typename": true,
	"new": true, "delete": true, "this": true, "operator": true,
	"try": true, "catch": true, "throw": true,
	"true": true, "false": true, "nullptr": true, "NULL": true,
	"and": true, "or": true, "not": true, "xor": true,
}

// Config selects which preservation rules apply.
type Config struct {
	PreserveMain   bool
	PreserveStdlib bool

	// Extra adds configuration-provided names to the preserve set.
	Extra []string

	// Patterns are user regexes; any match preserves the symbol.
	Patterns []string

	// Intrinsics preserves llvm.-prefixed names. Only the IR back end
	// sets this.
	Intrinsics bool

	// Keywords preserves reserved language keywords. Only the
	// source-text back end sets this.
	Keywords bool
}

// Oracle answers preservation queries for one driver run.
type Oracle struct {
	cfg      Config
	symbols  map[string]bool
	patterns []*regexp.Regexp
}

// New compiles the configured patterns and builds the preserve set.
// A pattern that does not compile is a configuration error.
func New(cfg Config) (*Oracle, error) {
	o := &Oracle{cfg: cfg, symbols: make(map[string]bool, len(defaultSymbols)+len(cfg.Extra))}
	for _, s := range defaultSymbols {
		o.symbols[s] = true
	}
	if !cfg.PreserveMain {
		delete(o.symbols, "main")
	}
	for _, s := range cfg.Extra {
		o.symbols[s] = true
	}
	for _, p := range cfg.Patterns {
		rx, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad preserve pattern %q: %w", p, err)
		}
		o.patterns = append(o.patterns, rx)
	}
	return o, nil
}

// Preserved reports whether name must keep its original spelling.
func (o *Oracle) Preserved(name string) bool {
	if o.symbols[name] {
		return true
	}
	// Static-initialization symbols carry a per-file suffix.
	if strings.HasPrefix(name, "_GLOBAL__sub_I_") {
		return true
	}
	// Reserved for the implementation.
	if strings.HasPrefix(name, "__") {
		return true
	}
	if strings.HasPrefix(name, "__cxa") {
		return true
	}
	if o.cfg.Intrinsics && strings.HasPrefix(name, "llvm.") {
		return true
	}
	if o.cfg.PreserveStdlib && stdlibSymbols[name] {
		return true
	}
	if o.cfg.Keywords && keywords[name] {
		return true
	}
	for _, rx := range o.patterns {
		if rx.MatchString(name) {
			return true
		}
	}
	return false
}

// Keyword reports whether name is a reserved C/C++ keyword, independently
// of the Keywords toggle. The source scanner uses this to reject false
// positives.
func Keyword(name string) bool { return keywords[name] }
