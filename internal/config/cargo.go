package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CargoHome returns $CARGO_HOME, defaulting to ~/.cargo.
func CargoHome() (string, error) {
	if dir := os.Getenv("CARGO_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cargo"), nil
}

// Registries reads the alternative registries Cargo knows about.
//
// Like Cargo, it probes <dir>/.cargo/config.toml (or the legacy
// extensionless config) in startDir and each of its parents, then
// <cargoHome>/config.toml, then CARGO_REGISTRIES_<NAME>_INDEX variables.
// Nearer files override farther ones per registry name and the environment
// overrides every file. Names are lowercased; values are index URLs as
// written, including any "sparse+" prefix.
func Registries(startDir, cargoHome string) (map[string]string, error) {
	out := make(map[string]string)

	dirs := cargoConfigDirs(startDir, cargoHome)
	for i := len(dirs) - 1; i >= 0; i-- {
		regs, err := readRegistries(dirs[i])
		if err != nil {
			return nil, err
		}
		for name, index := range regs {
			out[name] = index
		}
	}

	const prefix, suffix = "CARGO_REGISTRIES_", "_INDEX"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || len(key) <= len(prefix)+len(suffix) ||
			!strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
		if value == "" {
			continue
		}
		out[strings.ToLower(strings.ReplaceAll(name, "_", "-"))] = value
	}
	return out, nil
}

// cargoConfigDirs lists the directories holding Cargo config files, nearest
// first. cargoHome is appended unless the walk already visited it.
func cargoConfigDirs(startDir, cargoHome string) []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	if startDir != "" {
		if abs, err := filepath.Abs(startDir); err == nil {
			for dir := abs; ; {
				add(filepath.Join(dir, ".cargo"))
				parent := filepath.Dir(dir)
				if parent == dir {
					break
				}
				dir = parent
			}
		}
	}
	if cargoHome != "" {
		if abs, err := filepath.Abs(cargoHome); err == nil {
			cargoHome = abs
		}
		add(cargoHome)
	}
	return dirs
}

// readRegistries loads [registries] from the config file in dir, preferring
// config.toml over the legacy config. A dir without either yields nil.
func readRegistries(dir string) (map[string]string, error) {
	for _, name := range []string{"config.toml", "config"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, fmt.Errorf("failed to read cargo config %s: %w", path, err)
		}
		var regs map[string]struct {
			Index string `mapstructure:"index"`
		}
		if err := v.UnmarshalKey("registries", &regs); err != nil {
			return nil, fmt.Errorf("failed to parse registries in %s: %w", path, err)
		}
		out := make(map[string]string, len(regs))
		for name, r := range regs {
			if r.Index != "" {
				out[strings.ToLower(name)] = r.Index
			}
		}
		return out, nil
	}
	return nil, nil
}
