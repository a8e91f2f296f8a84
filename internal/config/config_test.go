// config_test.go - Config load tests.
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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mixkey.toml")

	const body = `
data_dir = "/var/lib/mixkey"
line_rate = 128974848
`
	require.NoError(os.WriteFile(path, []byte(body), 0600))

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("/var/lib/mixkey", cfg.DataDir)
	require.Equal(DefaultNumMixKeys, cfg.NumMixKeys)
	require.Equal(DefaultHousekeepingInterval, cfg.HousekeepingInterval)
}

func TestLoadRejectsMissingDataDir(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mixkey.toml")
	require.NoError(os.WriteFile(path, []byte("line_rate = 1\n"), 0600))

	_, err := Load(path)
	require.Error(err)
}
