// Package config persists the user-facing settings of §4.4 (tap enable,
// button map, drag, drag-lock) across daemon restarts, adapted from
// NoiseTorch's TOML config file pattern.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

const fileName = "config.toml"

// Config is the on-disk shape. Map is stored as a string ("lrm"/"lmr")
// rather than the raw ButtonMap array so the file stays human-editable.
type Config struct {
	TapEnabled     bool   `toml:"tap_enabled"`
	Map            string `toml:"map"`
	DragEnabled    bool   `toml:"drag_enabled"`
	DragLockEnabled bool  `toml:"drag_lock_enabled"`
}

// Default returns the spec's §4.4 defaults, except TapEnabled which the
// caller must fill in from the device's physical-left-button query
// (tapstate.DefaultTapEnabled) since this package has no device access.
func Default(tapEnabled bool) Config {
	return Config{
		TapEnabled:      tapEnabled,
		Map:             mapName(tapstate.DefaultMap()),
		DragEnabled:     tapstate.DefaultDragEnabled(),
		DragLockEnabled: tapstate.DefaultDragLockEnabled(),
	}
}

// ButtonMap decodes the stored map name, falling back to LRM for an
// unrecognized or empty value rather than erroring — a corrupt map
// string is a cosmetic problem, not one that should block startup.
func (c Config) ButtonMap() tapstate.ButtonMap {
	switch c.Map {
	case "lmr":
		return tapstate.MapLMR
	default:
		return tapstate.MapLRM
	}
}

func mapName(bm tapstate.ButtonMap) string {
	if bm == tapstate.MapLMR {
		return "lmr"
	}
	return "lrm"
}

// Dir resolves the config directory: $XDG_CONFIG_HOME/tapd, falling back
// to $HOME/.config/tapd.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "tapd")
}

func path() string {
	return filepath.Join(Dir(), fileName)
}

// EnsureInitialized writes a default config file if one does not already
// exist, mirroring initializeConfigIfNot. defaultTapEnabled is the
// device-derived default for a first run.
func EnsureInitialized(defaultTapEnabled bool) error {
	dir := Dir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config dir %s: %w", dir, err)
		}
	}
	p := path()
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file %s: %w", p, err)
	}
	return Write(Default(defaultTapEnabled))
}

// Read loads the config file, returning an error the caller should log
// and fall back to in-memory defaults for — a missing or malformed
// config must never block the daemon from running (§7).
func Read() (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path(), &c); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path(), err)
	}
	return c, nil
}

// Write persists c, best-effort (§4.4's "persistence is best-effort; a
// write failure is logged, never surfaced as an FSM error").
func Write(c Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return fmt.Errorf("create config dir %s: %w", Dir(), err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path(), err)
	}
	return nil
}
