// Package config loads the boot-time, non-language knobs for a Mary kernel
// instance from an optional humanlogica.toml. Nothing in here is reachable
// from inside a Logica program — it governs process boot, not language
// semantics.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/user/humanlogica/internal/obs"
)

// Config is the parsed shape of humanlogica.toml.
type Config struct {
	Loop    LoopConfig    `toml:"loop"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Log     LogConfig     `toml:"log"`
	Boot    BootConfig    `toml:"boot"`
}

type LoopConfig struct {
	// MaxDefault is the loop bound used when the kernel boundary is driven
	// directly (not through the compiler, which requires an explicit max on
	// every `while`). spec.md §4.5 default: 10000.
	MaxDefault int `toml:"max_default"`
}

type LedgerConfig struct {
	// Digest names the hash used for entry_hash. "sha256" is the only value
	// this build implements (see SPEC_FULL.md Domain Stack); the field
	// exists so a future digest can be added without a schema break.
	Digest string `toml:"digest"`
}

type LogConfig struct {
	Level obs.Level `toml:"level"`
}

type BootConfig struct {
	// MintHelena creates speaker id 1, name "helena", during boot. The core
	// kernel does not require Helena (spec.md §4.3); this only exists so an
	// embedder that wants the OS-layer's expected second speaker doesn't
	// have to create it by hand.
	MintHelena bool `toml:"mint_helena"`
}

// Default returns the spec-mandated defaults for a bare kernel boot.
func Default() Config {
	return Config{
		Loop:   LoopConfig{MaxDefault: 10000},
		Ledger: LedgerConfig{Digest: "sha256"},
		Log:    LogConfig{Level: obs.LevelInfo},
		Boot:   BootConfig{MintHelena: false},
	}
}

// Load reads and parses path, overlaying onto Default() so a partial file is
// legal. A missing file is not an error — it just means Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
