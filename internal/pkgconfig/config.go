// Package pkgconfig reads the optional languageo.toml project file that
// tunes the compiler's build behavior (output directory, cache) without
// changing any source-language semantics. The trace_cleanup key is parsed
// into BuildConfig.TraceCleanup, but nothing reads it: no cleanup trace
// comments are emitted whatever its value.
package pkgconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the project file searched for next to the input source.
const ConfigFileName = "languageo.toml"

// BuildConfig is the [build] table of languageo.toml.
type BuildConfig struct {
	OutputDir    string `toml:"output_dir"`
	Cache        bool   `toml:"cache"`
	TraceCleanup bool   `toml:"trace_cleanup"`
}

// Config is the full contents of languageo.toml.
type Config struct {
	Build BuildConfig `toml:"build"`
}

// Default returns the configuration used when no languageo.toml is found.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			OutputDir: ".",
			Cache:     true,
		},
	}
}

// Load reads and parses a languageo.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Find looks for languageo.toml alongside startPath, walking up parent
// directories until it is found or the filesystem root is reached.
func Find(startPath string) string {
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadNearest finds and loads languageo.toml near startPath, falling back
// to Default if none exists. A malformed config file is a hard error.
func LoadNearest(startPath string) (*Config, error) {
	path := Find(startPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
