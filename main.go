// Copyright (c) 2026, The Symcloak Authors.
// See LICENSE for licensing information.

// Command symcloak renames the externally visible symbols of a C/C++
// translation unit to deterministic cryptographic pseudonyms, emitting a
// mapping document for later symbolication.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/symcloak/symcloak/internal/driver"
	"github.com/symcloak/symcloak/internal/hasher"
	"github.com/symcloak/symcloak/internal/preserve"
)

var cli struct {
	Input  string `arg:"" help:"Input source file (.c, .cpp)." type:"existingfile"`
	Output string `short:"o" required:"" help:"Output file path." placeholder:"PATH"`
	Map    string `short:"m" default:"symbol_map.json" help:"Symbol mapping file." placeholder:"PATH"`

	Algorithm string `short:"a" default:"sha256" enum:"sha256,blake2b,siphash" help:"Hash algorithm: sha256, blake2b, siphash."`
	Prefix    string `short:"p" default:"typed" enum:"none,typed,underscore" help:"Prefix style: none, typed, underscore."`
	Length    int    `short:"l" default:"12" help:"Hash length in characters."`
	Salt      string `short:"s" help:"Custom salt for hashing; derived from the input when empty."`

	Preserve        []string `help:"Additional symbol names to preserve." placeholder:"NAME"`
	PreservePattern []string `help:"Preserve symbols matching a regex." placeholder:"REGEX"`

	NoPreserveMain   bool `help:"Don't preserve the main() function."`
	NoPreserveStdlib bool `help:"Don't preserve stdlib functions."`
	NoMap            bool `help:"Don't generate a mapping file."`
	Cpp              bool `help:"Treat the input as C++ and rename mangled-name components."`
	Verbose          bool `short:"v" help:"Log each rename and skip."`
}

func main() { os.Exit(main1()) }

func main1() int {
	kong.Parse(&cli,
		kong.Name("symcloak"),
		kong.Description("Symbol table cryptographic obfuscator."),
		kong.UsageOnError(),
	)

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if cli.Verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	if err := run(logger); err != nil {
		level.Error(logger).Log("msg", "obfuscation failed", "err", err)
		return 1
	}
	return 0
}

func run(logger log.Logger) error {
	algo, err := hasher.ParseAlgorithm(cli.Algorithm)
	if err != nil {
		return err
	}
	prefix, err := hasher.ParsePrefixStyle(cli.Prefix)
	if err != nil {
		return err
	}

	cfg := driver.Config{
		Hash: hasher.Config{
			Algorithm:     algo,
			Prefix:        prefix,
			Length:        cli.Length,
			Salt:          cli.Salt,
			Deterministic: true,
		},
		Preserve: preserve.Config{
			PreserveMain:   !cli.NoPreserveMain,
			PreserveStdlib: !cli.NoPreserveStdlib,
			Extra:          cli.Preserve,
			Patterns:       cli.PreservePattern,
			Keywords:       true,
		},
		Cpp:              cli.Cpp,
		ObfuscateGlobals: true,
		GenerateMap:      !cli.NoMap,
		MapPath:          cli.Map,
	}

	d, err := driver.New(cfg, logger)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(cli.Input)
	if err != nil {
		return err
	}
	out, err := d.RunSource(src, cli.Input)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cli.Output, out, 0o666); err != nil {
		return err
	}

	fmt.Printf("\n=== Symbol Obfuscation Summary ===\n")
	fmt.Printf("Input:           %s\n", cli.Input)
	fmt.Printf("Output:          %s\n", cli.Output)
	fmt.Printf("Symbols renamed: %d\n", d.Renamed())
	if !cli.NoMap {
		fmt.Printf("Mapping saved:   %s\n", cli.Map)
	}
	return nil
}
