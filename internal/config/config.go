// Package config loads the process-wide server configuration. Values come
// from built-in defaults, an optional YAML file, and per-session overrides
// sent with the initialize request.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen string `yaml:"listen"`

	Xref struct {
		// MaxNum caps every location-list reply. Overloaded operators can
		// be referenced thousands of times; the cap keeps replies bounded.
		MaxNum int `yaml:"maxNum"`
	} `yaml:"xref"`

	Highlight Highlight `yaml:"highlight"`

	Client struct {
		LinkSupport bool `yaml:"linkSupport"`
	} `yaml:"client"`

	Index struct {
		DBPath       string   `yaml:"dbPath"`
		SearchPath   string   `yaml:"searchPath"`
		IncludeGlobs []string `yaml:"includeGlobs"`
		ExcludeGlobs []string `yaml:"excludeGlobs"`
		ScanAll      bool     `yaml:"scanAll"`
		Workers      int      `yaml:"workers"`
	} `yaml:"index"`
}

type Highlight struct {
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`

	// LargeFileSize disables highlighting entirely for buffers above this
	// many bytes; sweep and re-encoding costs scale with occurrence volume.
	LargeFileSize int `yaml:"largeFileSize"`

	// RangeFormat selects the published coordinate format:
	// "offset" for (begin, end) byte pairs, "lsRange" for line/column.
	RangeFormat string `yaml:"rangeFormat"`
}

const (
	RangeFormatOffset  = "offset"
	RangeFormatLSRange = "lsRange"
)

func Default() *Config {
	c := &Config{}
	c.Listen = "127.0.0.1:7461"
	c.Xref.MaxNum = 2000
	c.Highlight.LargeFileSize = 2 * 1024 * 1024
	c.Highlight.RangeFormat = RangeFormatOffset
	c.Index.Workers = 4
	return c
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Xref.MaxNum <= 0 {
		return fmt.Errorf("xref.maxNum must be positive")
	}
	if c.Highlight.LargeFileSize < 0 {
		return fmt.Errorf("highlight.largeFileSize must not be negative")
	}
	switch c.Highlight.RangeFormat {
	case RangeFormatOffset, RangeFormatLSRange:
	default:
		return fmt.Errorf("highlight.rangeFormat must be %q or %q",
			RangeFormatOffset, RangeFormatLSRange)
	}
	return nil
}
