// Package config loads compiler settings from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Compiler Compiler `yaml:"compiler"`
	Log      Log      `yaml:"log"`
}

// Compiler tunes symbol resolution and code generation.
type Compiler struct {
	// SoftDepth is the parent-chain depth at which a warning is raised; twice
	// this depth aborts compilation.
	SoftDepth int `yaml:"soft_depth"`
	// FunctionLocalsVisible is how many parent hops a function body may see
	// non-exported variables through. 1 exposes the module's own variables.
	FunctionLocalsVisible int `yaml:"function_locals_visible"`
	// StrictReads rejects reads of undeclared variables instead of declaring them.
	StrictReads bool `yaml:"strict_reads"`
	// Peephole enables folding of assignments into the preceding instruction.
	Peephole bool `yaml:"peephole"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Compiler: Compiler{
			SoftDepth:             64,
			FunctionLocalsVisible: 1,
			StrictReads:           false,
			Peephole:              true,
		},
		Log: Log{Level: "info"},
	}
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Compiler.SoftDepth <= 0 {
		return fmt.Errorf("compiler.soft_depth must be positive, got %d", c.Compiler.SoftDepth)
	}
	if c.Compiler.FunctionLocalsVisible < 0 {
		return fmt.Errorf("compiler.function_locals_visible must not be negative, got %d", c.Compiler.FunctionLocalsVisible)
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return err
	}
	return nil
}

// ZerologLevel converts the configured level name.
func (l Log) ZerologLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
