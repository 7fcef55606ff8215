package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional isnapshot configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`

	// Unknown lists keys present in the file that isnapshot does not use.
	Unknown []string `toml:"-"`
}

// DefaultsConfig holds persistent flag defaults. A nil field means the key
// was absent and the built-in default applies.
type DefaultsConfig struct {
	DateFormat *string `toml:"date_format"`
	Exclude    *string `toml:"exclude"`
	Full       *bool   `toml:"full"`
	CountBytes *bool   `toml:"count_bytes"`
	Verify     *bool   `toml:"verify"`
	BWLimit    *string `toml:"bwlimit"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "isnapshot", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero
// Config and no error.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	for _, key := range md.Undecoded() {
		cfg.Unknown = append(cfg.Unknown, key.String())
	}
	return cfg, nil
}
