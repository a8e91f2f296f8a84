// config.go - Static configuration for the mix key core.
// Copyright (C) 2017  Yawning Angel.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the handful of tunables the KeyRing needs from a
// TOML file. It deliberately does not own logging, CLI flags, or
// environment overlays: those belong to the server process embedding this
// module (spec section 1 treats CLI/packaging as out of scope).
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk representation of the keyring's tunables.
type Config struct {
	// DataDir is the base directory under which per-epoch
	// mix_key.<epoch> directories are created.
	DataDir string `toml:"data_dir"`

	// LineRate is the provisioned line rate in bytes/sec, used to size
	// the bloom filter and store capacity hints.
	LineRate uint64 `toml:"line_rate"`

	// NumMixKeys is the number of epochs, starting at the current one,
	// the ring keeps live at once (spec section 3's N).
	NumMixKeys int `toml:"num_mix_keys"`

	// HousekeepingInterval governs how often the ring's control loop
	// attempts a Generate+Prune pass absent an explicit Kick.
	HousekeepingInterval time.Duration `toml:"housekeeping_interval"`

	// UnlinkOnRetire controls whether pruned epoch directories are
	// deleted from disk (see spec section 9).
	UnlinkOnRetire bool `toml:"unlink_on_retire"`
}

// Default values used when a Config field is left unset.
const (
	DefaultNumMixKeys           = 3
	DefaultHousekeepingInterval = 30 * time.Second
)

// Load reads and validates a Config from path.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.NumMixKeys == 0 {
		c.NumMixKeys = DefaultNumMixKeys
	}
	if c.HousekeepingInterval == 0 {
		c.HousekeepingInterval = DefaultHousekeepingInterval
	}
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.LineRate == 0 {
		return fmt.Errorf("config: line_rate must be positive")
	}
	if c.NumMixKeys <= 0 {
		return fmt.Errorf("config: num_mix_keys must be positive")
	}
	return nil
}
