// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Package driver orchestrates one obfuscation run: scan the translation
// unit, classify each symbol, rename what the preservation oracle
// releases, and keep every reference consistent. All state lives in the
// driver instance; nothing is process-wide.
package driver

import (
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/symcloak/symcloak/internal/hasher"
	"github.com/symcloak/symcloak/internal/ir"
	"github.com/symcloak/symcloak/internal/mangle"
	"github.com/symcloak/symcloak/internal/mapping"
	"github.com/symcloak/symcloak/internal/preserve"
	"github.com/symcloak/symcloak/internal/rewrite"
	"github.com/symcloak/symcloak/internal/scan"
	"github.com/symcloak/symcloak/internal/symbol"
)

// Name is the pipeline name the pass registers under when the driver is
// embedded in a compiler.
const Name = "symbol-obfuscation"

// Config selects the behaviour of one driver.
type Config struct {
	Hash     hasher.Config
	Preserve preserve.Config

	// Cpp routes mangled-looking names in source text through the
	// mangled-name codec. The IR back end always detects mangling.
	Cpp bool

	// ObfuscateGlobals includes global variables, not just functions.
	ObfuscateGlobals bool

	// GenerateMap persists the mapping document to MapPath after a run.
	GenerateMap bool
	MapPath     string
}

// Driver renames the symbols of one translation unit. Use a fresh driver
// per unit; drivers sharing a configured salt produce cross-unit stable
// renames.
type Driver struct {
	cfg    Config
	logger log.Logger

	hasher *hasher.Hasher
	codec  *mangle.Codec
	oracle *preserve.Oracle

	doc     *mapping.Document
	skipped int

	// source marks a source-text run, where the codec only engages
	// under the Cpp option.
	source bool
}

// New validates cfg and builds a driver. The zero logger is allowed.
func New(cfg Config, logger log.Logger) (*Driver, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	h, err := hasher.New(cfg.Hash)
	if err != nil {
		return nil, err
	}
	o, err := preserve.New(cfg.Preserve)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hasher.ErrInvalidConfig, err)
	}
	return &Driver{
		cfg:    cfg,
		logger: logger,
		hasher: h,
		codec:  mangle.New(h),
		oracle: o,
	}, nil
}

// Mapping returns the accumulated mapping document, valid after a run.
func (d *Driver) Mapping() *mapping.Document { return d.doc }

// Renamed returns how many symbols the last run renamed.
func (d *Driver) Renamed() int {
	if d.doc == nil {
		return 0
	}
	return len(d.doc.Symbols)
}

// deriveSalt fills in a module-specific salt when none was configured,
// hashing the module identity so that re-runs of the same unit stay
// deterministic while distinct units diverge.
func (d *Driver) deriveSalt(moduleName, sourceFile string) {
	if d.cfg.Hash.Salt != "" {
		return
	}
	salt := d.hasher.Hash(moduleName+sourceFile, "module_salt")
	d.hasher.SetSalt(salt)
	d.cfg.Hash.Salt = salt
}

// Run renames the definitions of an IR module in place: functions first,
// then globals if enabled, then aliases. The IR updates references on
// rename, so no fixup pass is needed. The mapping document is persisted
// when configured.
func (d *Driver) Run(m *ir.Module) error {
	d.deriveSalt(m.Name, m.SourceFileName)
	d.doc = mapping.New(d.hasher.Salt(), d.hasher.Algorithm())

	for _, f := range m.Funcs {
		if f.IsDeclaration {
			continue
		}
		desc := symbol.Descriptor{
			Name:       f.Name(),
			Kind:       symbol.Function,
			Linkage:    f.Linkage,
			SourceFile: m.SourceFileName,
		}
		if obf, ok, err := d.rename(desc); err != nil {
			return err
		} else if ok {
			f.SetName(obf)
		}
	}
	if d.cfg.ObfuscateGlobals {
		for _, g := range m.Globals {
			if g.IsDeclaration {
				continue
			}
			desc := symbol.Descriptor{
				Name:       g.Name(),
				Kind:       symbol.GlobalVar,
				Linkage:    g.Linkage,
				SourceFile: m.SourceFileName,
			}
			if obf, ok, err := d.rename(desc); err != nil {
				return err
			} else if ok {
				g.SetName(obf)
			}
		}
	}
	for _, a := range m.Aliases {
		desc := symbol.Descriptor{
			Name:       a.Name(),
			Kind:       symbol.Alias,
			Linkage:    a.Linkage,
			SourceFile: m.SourceFileName,
		}
		if obf, ok, err := d.rename(desc); err != nil {
			return err
		} else if ok {
			a.SetName(obf)
		}
	}

	return d.finish()
}

// Pass adapts the driver to a module-pass contract. The returned bool
// reports whether any analyses are preserved; renaming symbols preserves
// none.
func (d *Driver) Pass(m *ir.Module) (bool, error) {
	return false, d.Run(m)
}

// RunSource renames the symbols of C/C++ source text and returns the
// rewritten buffer. String literals, comments, and preprocessor lines
// are left untouched.
func (d *Driver) RunSource(src []byte, sourceFile string) ([]byte, error) {
	d.source = true
	d.deriveSalt(sourceFile, "")
	d.doc = mapping.New(d.hasher.Salt(), d.hasher.Algorithm())

	renames := make(map[string]string)
	for _, desc := range scan.Symbols(src, sourceFile) {
		if desc.Kind == symbol.GlobalVar && !d.cfg.ObfuscateGlobals {
			continue
		}
		obf, ok, err := d.rename(desc)
		if err != nil {
			return nil, err
		}
		if ok {
			renames[desc.Name] = obf
		}
	}

	out := rewrite.Apply(src, renames, scan.Mask(src))
	if err := d.finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// rename decides and performs the rename of one symbol, recording it in
// the mapping. ok reports whether the symbol was renamed; a false return
// with nil error means it was preserved or recovered in place. Only a
// hasher collision failure is fatal.
func (d *Driver) rename(desc symbol.Descriptor) (string, bool, error) {
	name := desc.Name
	if d.oracle.Preserved(name) {
		d.skipped++
		level.Debug(d.logger).Log("msg", "preserving", "symbol", name)
		return "", false, nil
	}

	var obf string
	if mangle.IsMangled(name) && (!d.source || d.cfg.Cpp) {
		var err error
		obf, err = d.obfuscateMangled(name)
		if err != nil {
			return "", false, err
		}
		if obf == "" {
			return "", false, nil
		}
	} else {
		var err error
		obf, err = d.obfuscateFlat(name, desc.Kind)
		if err != nil {
			return "", false, err
		}
	}

	d.doc.Add(mapping.Entry{
		Original:   name,
		Obfuscated: obf,
		Kind:       desc.Kind,
		Linkage:    desc.Linkage,
		Address:    desc.Address,
		Size:       desc.Size,
		SourceFile: desc.SourceFile,
		Line:       desc.Line,
	})
	level.Debug(d.logger).Log("msg", "renamed", "symbol", name, "to", obf, "kind", desc.Kind)
	return obf, true, nil
}

// obfuscateMangled routes a mangled name through the codec. It returns
// an empty name when the symbol must stay as-is: a component of the
// mangled name is itself preserved (a preservation conflict), or the
// codec failed outright.
func (d *Driver) obfuscateMangled(name string) (string, error) {
	if comp := d.preservedComponent(name); comp != "" {
		d.skipped++
		level.Warn(d.logger).Log("msg", "preservation conflict, keeping original",
			"symbol", name, "component", comp)
		return "", nil
	}

	obf, err := d.codec.Obfuscate(name)
	if errors.Is(err, mangle.ErrMalformedMangling) {
		// The codec recovered with a whole-name fallback hash; use it,
		// but tell the user the grammar was off.
		level.Warn(d.logger).Log("msg", "malformed mangled name, hashed whole",
			"symbol", name, "err", err)
	} else if err != nil {
		level.Warn(d.logger).Log("msg", "cannot obfuscate mangled name",
			"symbol", name, "err", err)
		d.skipped++
		return "", nil
	}
	// Mangled and flat names share one collision namespace.
	d.hasher.MarkUsed(obf)
	return obf, nil
}

// preservedComponent returns the first parsed component of a mangled
// name that the oracle preserves by name, if any. Renaming around a
// pinned namespace or class would tear the symbol apart, so the whole
// name is kept instead.
func (d *Driver) preservedComponent(name string) string {
	comps, err := mangle.Parse(name)
	if err != nil || !comps.IsMangled {
		return ""
	}
	for _, tok := range comps.Nested {
		if d.oracle.Preserved(tok.Name) {
			return tok.Name
		}
	}
	return ""
}

// obfuscateFlat hashes a C-style name through the kind's typed entry.
func (d *Driver) obfuscateFlat(name string, kind symbol.Kind) (string, error) {
	switch kind {
	case symbol.Function:
		return d.hasher.Function(name)
	case symbol.Struct, symbol.Enum, symbol.Typedef:
		return d.hasher.Class(name)
	case symbol.Alias:
		return d.hasher.Alias(name)
	default:
		return d.hasher.Variable(name)
	}
}

// finish logs the summary and persists the mapping when configured.
func (d *Driver) finish() error {
	level.Info(d.logger).Log("msg", "obfuscation complete",
		"renamed", len(d.doc.Symbols), "skipped", d.skipped)
	if !d.cfg.GenerateMap || d.cfg.MapPath == "" {
		return nil
	}
	if err := d.doc.Save(d.cfg.MapPath); err != nil {
		return err
	}
	level.Info(d.logger).Log("msg", "mapping saved", "path", d.cfg.MapPath)
	return nil
}
