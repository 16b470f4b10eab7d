package config

import (
	"fmt"

	"github.com/muurk/fwbuildid/internal/buildid"
	"github.com/muurk/fwbuildid/internal/logging"
)

// CurrentVersion is the only config file version understood.
const CurrentVersion = 1

// Default symbol names and dump length.
const (
	DefaultRecordSymbol  = buildid.DefaultRecordSymbol
	DefaultDerivedSymbol = buildid.DefaultDerivedSymbol
	DefaultDumpChars     = 7
)

// Config holds the user's fw-build-id settings.
type Config struct {
	Version       int    `yaml:"version"`
	RecordSymbol  string `yaml:"record_symbol"`       // Build ID record, byte 0 selects the scheme
	DerivedSymbol string `yaml:"derived_symbol"`      // 20 byte target of the derived SHA-1
	DumpChars     int    `yaml:"dump_chars"`          // Characters printed by a bare --dump
	LogLevel      string `yaml:"log_level,omitempty"` // debug, info, warn or error; empty is silent
	Source        string `yaml:"-"`                   // Path the config was loaded from, "" for defaults
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version:       CurrentVersion,
		RecordSymbol:  DefaultRecordSymbol,
		DerivedSymbol: DefaultDerivedSymbol,
		DumpChars:     DefaultDumpChars,
	}
}

// applyDefaults fills fields left out of a config file.
func (c *Config) applyDefaults() {
	if c.RecordSymbol == "" {
		c.RecordSymbol = DefaultRecordSymbol
	}
	if c.DerivedSymbol == "" {
		c.DerivedSymbol = DefaultDerivedSymbol
	}
	if c.DumpChars == 0 {
		c.DumpChars = DefaultDumpChars
	}
}

// Validate checks the config for values the tool cannot use.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.RecordSymbol == "" {
		return fmt.Errorf("record_symbol cannot be empty")
	}
	if c.DerivedSymbol == "" {
		return fmt.Errorf("derived_symbol cannot be empty")
	}
	if c.RecordSymbol == c.DerivedSymbol {
		return fmt.Errorf("record_symbol and derived_symbol must differ (both %q)", c.RecordSymbol)
	}
	if c.DumpChars < 0 {
		return fmt.Errorf("dump_chars must be positive, got %d", c.DumpChars)
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}
