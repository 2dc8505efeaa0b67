// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package symbol holds the descriptor types shared by the scanners,
// the rename driver and the mapping store.
package symbol

// Kind categorizes a declared symbol. The integer values are part of the
// mapping document format and must not be reordered.
type Kind int

const (
	Function Kind = iota
	GlobalVar
	StaticVar
	LocalVar
	Typedef
	Struct
	Enum
	Alias
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "function"
	case GlobalVar:
		return "global"
	case StaticVar:
		return "static"
	case LocalVar:
		return "local"
	case Typedef:
		return "typedef"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Alias:
		return "alias"
	}
	return "unknown"
}

// Linkage mirrors the linkage classes the IR back end distinguishes.
// Like Kind, the values appear in mapping documents.
type Linkage int

const (
	External Linkage = iota
	Internal
	Weak
	Common
)

func (l Linkage) String() string {
	switch l {
	case External:
		return "external"
	case Internal:
		return "internal"
	case Weak:
		return "weak"
	case Common:
		return "common"
	}
	return "unknown"
}

// Descriptor describes one declared symbol found by a scanner.
// Descriptors live for a single driver invocation; the mapping entries
// derived from them outlive the run.
type Descriptor struct {
	Name       string
	Kind       Kind
	Linkage    Linkage
	SourceFile string
	Line       int
	Address    uint64
	Size       uint64
}
