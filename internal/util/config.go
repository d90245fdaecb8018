package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Version   string `toml:"-" yaml:"-"`
	BuildDate string `toml:"-" yaml:"-"`
	Commit    string `toml:"-" yaml:"-"`

	// RootPath is the directory of the entry script; extension files are
	// looked up there first.
	RootPath string `toml:"root" yaml:"root"`
	// SomaHome holds the installation; $SOMA_HOME/lib is searched after
	// SomaLib.
	SomaHome string `toml:"home" yaml:"home"`
	// SomaLib is a list of extension directories separated by the OS list
	// separator.
	SomaLib string `toml:"lib" yaml:"lib"`

	MaxDepth int `toml:"max_depth" yaml:"max_depth"`
	// MaxThreads caps concurrently running spawned threads; 0 is unlimited.
	MaxThreads int    `toml:"max_threads" yaml:"max_threads"`
	NoPrelude  bool   `toml:"no_prelude" yaml:"no_prelude"`
	LogLevel   string `toml:"log_level" yaml:"log_level"`
	LogFile    string `toml:"log_file" yaml:"log_file"`

	StoreDriver string `toml:"store_driver" yaml:"store_driver"`
	StoreDSN    string `toml:"store_dsn" yaml:"store_dsn"`
}

// FromEnv fills SomaHome and SomaLib from the environment when unset.
func (c *Configuration) FromEnv() {
	if c.SomaHome == "" {
		c.SomaHome = os.Getenv("SOMA_HOME")
	}
	if c.SomaLib == "" {
		c.SomaLib = os.Getenv("SOMA_LIB")
	}
}

// SearchPath lists the directories extension files are resolved against, in
// lookup order.
func (c *Configuration) SearchPath() []string {
	var dirs []string
	if c.RootPath != "" {
		dirs = append(dirs, c.RootPath)
	}
	for _, dir := range filepath.SplitList(c.SomaLib) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if c.SomaHome != "" {
		dirs = append(dirs, filepath.Join(c.SomaHome, "lib"))
	}
	return dirs
}

// LoadFile decodes a TOML or YAML configuration file, chosen by extension,
// over the values already in c.
func (c *Configuration) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.NewDecoder(file).Decode(c)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config: %s: unknown key %s", path, undecoded[0])
		}
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: %s: unsupported format, use .toml or .yaml", path)
	}
	return nil
}
