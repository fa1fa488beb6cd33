package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/tagfs/internal/util"
)

// CLI verbosity values, mapped onto log levels by Merge.
const (
	ErrorVerbose = 1
	WarnVerbose  = 2
	InfoVerbose  = 3
	DebugVerbose = 4
	TraceVerbose = 5
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "tagfs"
	DefaultName   = "tagfs"
	DefaultDebug  = false

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultTreeFile is the tree snapshot filename inside the library
	// metadata directory
	DefaultTreeFile = "tree.json"

	DefaultLogLvl = util.InfoLevel
)

// Config contains runtime configuration values for a tagfs mount.
type Config struct {
	MountOptions MountOptions

	LogLvl util.LogLevel

	// AttrTimeout is the kernel attribute cache timeout in seconds.
	// Virtual directory attributes are cheap but tag-query contents shift
	// under the kernel's feet, so this stays short.
	AttrTimeout float64

	// EntryTimeout is the kernel directory entry cache timeout in seconds.
	EntryTimeout float64

	// TreeFile is the name of the tree snapshot file inside the library
	// metadata directory.
	TreeFile string
}

// ConfigOverride uses pointer fields to distinguish between unset and zero
// values when loading partial configuration. See [Config] for field
// descriptions.
type ConfigOverride struct {
	// LogLvl is CLI-style verbosity between 1 (error) and 5 (trace).
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug        *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	TreeFile     *string  `yaml:"tree_file,omitempty" json:"tree_file,omitempty"`
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields all defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
			Debug:  DefaultDebug,
		},
		LogLvl:       DefaultLogLvl,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
		TreeFile:     DefaultTreeFile,
	}
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		verbose := *override.LogLvl
		if verbose < ErrorVerbose {
			verbose = ErrorVerbose
		}
		if verbose > TraceVerbose {
			verbose = TraceVerbose
		}
		lvls := [...]util.LogLevel{
			util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel,
		}
		c.LogLvl = lvls[verbose-1]
	}
	if override.FsName != nil {
		c.MountOptions.FsName = *override.FsName
	}
	if override.Name != nil {
		c.MountOptions.Name = *override.Name
	}
	if override.Debug != nil {
		c.MountOptions.Debug = *override.Debug
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.TreeFile != nil {
		c.TreeFile = *override.TreeFile
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with
// defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
