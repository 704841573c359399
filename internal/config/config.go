// Package config holds the immutable Config value passed into the
// engine and workers, replacing the original's global configuration
// singleton (spec.md §9). Config is built once in main: defaults, then
// an optional on-disk defaults file, then CLI flags (highest
// precedence), mirroring the teacher's LoadConfig merge order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// FileName is the optional on-disk defaults file ql-fstest looks for
// in the current working directory before applying CLI flags.
const FileName = ".fstest.jsonc"

// Config is the full set of tunables for one run, built once and
// passed by value from there on (spec.md §9, "replace the global
// singleton with an immutable value constructed in main").
type Config struct {
	Dir            string `json:"dir,omitempty"`
	Percent        int    `json:"percent,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Immediate      bool   `json:"immediate,omitempty"`
	MaxFiles       int    `json:"max_files,omitempty"`
	MinBits        int    `json:"min_bits,omitempty"`
	MaxBits        int    `json:"max_bits,omitempty"`
	ErrorStop      bool   `json:"error_stop,omitempty"`
}

// DefaultConfig returns the built-in defaults from spec.md §6's CLI
// flag table.
func DefaultConfig() Config {
	return Config{
		Percent:        90,
		TimeoutSeconds: -1,
		MinBits:        20,
		MaxBits:        30,
	}
}

// Load applies the on-disk defaults file (if present in workDir) over
// the built-in defaults, then cliOverrides over that, and validates
// the result. set reports, per flag, whether the CLI explicitly set it
// (so an unset bool flag does not stomp a true value from the file).
func Load(workDir string, cliOverrides Config, set FlagsSet) (Config, error) {
	cfg := DefaultConfig()

	fileCfg, loaded, err := loadFile(filepath.Join(workDir, FileName))
	if err != nil {
		return Config{}, err
	}
	if loaded {
		cfg = merge(cfg, fileCfg, FlagsSet{
			Dir: fileCfg.Dir != "", Percent: fileCfg.Percent != 0,
			TimeoutSeconds: fileCfg.TimeoutSeconds != 0, Immediate: fileCfg.Immediate,
			MaxFiles: fileCfg.MaxFiles != 0, MinBits: fileCfg.MinBits != 0,
			MaxBits: fileCfg.MaxBits != 0, ErrorStop: fileCfg.ErrorStop,
		})
	}

	cfg = merge(cfg, cliOverrides, set)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FlagsSet records which fields of a Config overlay were explicitly
// provided by its source (CLI flags or a config file), so merge can
// tell "zero value" apart from "not set".
type FlagsSet struct {
	Dir, Percent, TimeoutSeconds, Immediate, MaxFiles, MinBits, MaxBits, ErrorStop bool
}

func merge(base, overlay Config, set FlagsSet) Config {
	if set.Dir {
		base.Dir = overlay.Dir
	}
	if set.Percent {
		base.Percent = overlay.Percent
	}
	if set.TimeoutSeconds {
		base.TimeoutSeconds = overlay.TimeoutSeconds
	}
	if set.Immediate {
		base.Immediate = overlay.Immediate
	}
	if set.MaxFiles {
		base.MaxFiles = overlay.MaxFiles
	}
	if set.MinBits {
		base.MinBits = overlay.MinBits
	}
	if set.MaxBits {
		base.MaxBits = overlay.MaxBits
	}
	if set.ErrorStop {
		base.ErrorStop = overlay.ErrorStop
	}
	return base
}

func loadFile(path string) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("%w: %s: %v", errConfigFileRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w: %s: %v", errConfigFileParse, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w: %s: %v", errConfigFileParse, path, err)
	}
	return cfg, true, nil
}

func validate(cfg Config) error {
	if cfg.Dir == "" {
		return errDirEmpty
	}
	if cfg.Percent < 1 || cfg.Percent > 99 {
		return errPercentRange
	}
	if cfg.MinBits < 0 || cfg.MinBits > 63 || cfg.MaxBits < 0 || cfg.MaxBits > 63 {
		return errBitsRange
	}
	if cfg.MinBits > cfg.MaxBits {
		return errBitsOrder
	}
	return nil
}
