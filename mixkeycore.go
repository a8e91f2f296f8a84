// mixkeycore.go - Public facade over the mix key and replay-detection core.
// Copyright (C) 2018  David Anthony Stainton.
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

// Package mixkeycore is the per-epoch mix key and replay-detection core of
// a Sphinx-style mix node. It owns durable generation and storage of the
// node's private mix key for each active epoch, and a two-tier
// replay-tag set supporting high-rate membership tests with durable
// persistence across restarts.
//
// The Sphinx unwrap itself, the ECDH primitive's internals, the epoch
// clock's tick generation, and peer descriptor distribution are all
// external collaborators; this package only consumes narrow interfaces
// for them (see the Clock type and the katzenpost/core/crypto/ecdh
// package this module builds on).
package mixkeycore

import (
	"github.com/katzenpost/mixkeycore/internal/keyring"
	"github.com/katzenpost/mixkeycore/internal/mixkey"
)

// Tag is a fixed-width, opaque Sphinx replay tag.
type Tag = mixkey.Tag

// NewTag copies b into a Tag.
func NewTag(b []byte) (Tag, error) {
	return mixkey.NewTag(b)
}

// Clock is the external epoch clock collaborator the KeyRing consumes.
type Clock = keyring.Clock

// SystemClock wraps the real Katzenpost epoch clock
// (github.com/katzenpost/core/epochtime).
type SystemClock = keyring.SystemClock

// MixKey is the per-epoch unit: an ECDH keypair plus the two-tier replay
// detector scoped to a single epoch's on-disk directory.
type MixKey = mixkey.MixKey

// KeyRing is the set of currently-live MixKeys keyed by epoch.
type KeyRing struct {
	*keyring.KeyRing
}

// NewKeyRing constructs a KeyRing and performs the initial Generate pass
// for the clock's current epoch.
//
//   - clock supplies the current epoch and its fixed duration.
//   - numMixKeys is how many upcoming epochs (inclusive of the current
//     one) the ring keeps live at once; 3 is the typical value.
//   - baseDir is the filesystem root under which mix_key.<epoch>
//     directories are created.
//   - lineRate is the provisioned line rate in bytes/sec, used to size
//     the bloom filter and store capacity hints.
func NewKeyRing(clock Clock, numMixKeys int, baseDir string, lineRate uint64) (*KeyRing, error) {
	r, err := keyring.New(clock, numMixKeys, baseDir, lineRate)
	if err != nil {
		return nil, err
	}
	return &KeyRing{KeyRing: r}, nil
}

// Handle is a shared, reference-counted handle to a MixKey, as returned
// by KeyRing.Snapshot.
type Handle = keyring.Handle

// PublicKey, Snapshot, Generate, Prune, StartHousekeeping, Kick, Halt, and
// SetUnlinkOnRetire are promoted from the embedded *keyring.KeyRing.
