// Command bscriptc compiles script modules and prints the bytecode.
//
// Files are given parent first: each module's parent is the module before it.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/xirelogy/go-bscript"
	"github.com/xirelogy/go-bscript/internal/config"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	asJSON := flag.Bool("json", false, "Print the last module as JSON instead of a listing")
	withParents := flag.Bool("parents", false, "Include the parent chain in the listing")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	strict := flag.Bool("strict", false, "Reject reads of undeclared variables")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] parent.bsl [child.bsl ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bscriptc: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *strict {
		cfg.Compiler.StrictReads = true
	}
	level, err := cfg.Log.ZerologLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bscriptc: %v\n", err)
		os.Exit(1)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	engine := bscript.New(bscript.WithConfig(cfg), bscript.WithLogger(logger))

	parent := ""
	var last string
	for _, path := range flag.Args() {
		b, err := engine.LoadFile(path, parent)
		if err != nil {
			logger.Error().Err(err).Str("file", path).Msg("compile failed")
			os.Exit(1)
		}
		logger.Debug().Str("file", path).Int("warnings", len(engine.Warnings(b.Module))).Msg("compiled")
		parent = b.Module
		last = b.Module
	}

	if *asJSON {
		err = engine.WriteJSON(os.Stdout, last)
	} else {
		err = engine.Disassemble(os.Stdout, last, *withParents)
	}
	if err != nil {
		logger.Error().Err(err).Msg("output failed")
		os.Exit(1)
	}
}
