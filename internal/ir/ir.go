// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package ir models the compiler IR view of a translation unit: a module
// of named functions, global variables, and aliases. Uses reference their
// definition by pointer, so renaming a definition is immediately visible
// at every use site, the way a compiler's symbol rename behaves.
package ir

import "github.com/symcloak/symcloak/internal/symbol"

// Value is anything an instruction operand can reference.
type Value interface {
	Name() string
}

// GlobalValue is the common core of every named module-level entity.
type GlobalValue struct {
	name    string
	Linkage symbol.Linkage

	// IsDeclaration marks an external declaration with no body or
	// initializer in this unit. Declarations are never renamed.
	IsDeclaration bool
}

func (g *GlobalValue) Name() string        { return g.name }
func (g *GlobalValue) SetName(name string) { g.name = name }

// Function is a function definition or declaration.
type Function struct {
	GlobalValue
	Blocks []*Block
}

// Block is a sequence of instructions.
type Block struct {
	Insts []*Inst
}

// Inst is an instruction with operands. Op is free-form mnemonic text;
// the renamer only cares about the operand references.
type Inst struct {
	Op       string
	Operands []Value
}

// Global is a global variable.
type Global struct {
	GlobalValue
	Init string
}

// Alias is a named alias for another global value.
type Alias struct {
	GlobalValue
	Aliasee Value
}

// Module is one translation unit in IR form.
type Module struct {
	Name           string
	SourceFileName string

	Funcs   []*Function
	Globals []*Global
	Aliases []*Alias
}

// NewModule returns an empty module.
func NewModule(name, sourceFileName string) *Module {
	return &Module{Name: name, SourceFileName: sourceFileName}
}

// NewFunc appends a function definition and returns it.
func (m *Module) NewFunc(name string) *Function {
	f := &Function{GlobalValue: GlobalValue{name: name}}
	m.Funcs = append(m.Funcs, f)
	return f
}

// NewFuncDecl appends an external function declaration and returns it.
func (m *Module) NewFuncDecl(name string) *Function {
	f := &Function{GlobalValue: GlobalValue{name: name, IsDeclaration: true}}
	m.Funcs = append(m.Funcs, f)
	return f
}

// NewGlobal appends a global variable definition and returns it.
func (m *Module) NewGlobal(name, init string) *Global {
	g := &Global{GlobalValue: GlobalValue{name: name}, Init: init}
	m.Globals = append(m.Globals, g)
	return g
}

// NewAlias appends an alias for aliasee and returns it.
func (m *Module) NewAlias(name string, aliasee Value) *Alias {
	a := &Alias{GlobalValue: GlobalValue{name: name}, Aliasee: aliasee}
	m.Aliases = append(m.Aliases, a)
	return a
}

// NewBlock appends an empty block to f and returns it.
func (f *Function) NewBlock() *Block {
	b := &Block{}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewInst appends an instruction to b and returns it.
func (b *Block) NewInst(op string, operands ...Value) *Inst {
	inst := &Inst{Op: op, Operands: operands}
	b.Insts = append(b.Insts, inst)
	return inst
}

// Uses returns every instruction in the module's function bodies that has
// v as an operand. Alias targets are not included. Tests use this to
// check that no stale reference remains after a rename.
func (m *Module) Uses(v Value) []*Inst {
	var uses []*Inst
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				for _, op := range inst.Operands {
					if op == v {
						uses = append(uses, inst)
						break
					}
				}
			}
		}
	}
	return uses
}
