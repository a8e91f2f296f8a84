// mixkeycore_test.go - End-to-end tests against the public facade.
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

package mixkeycore

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katzenpost/mixkeycore/internal/keyring"
)

func TestEndToEndReplayAcrossRingEpochs(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := keyring.NewFakeClock(7, time.Second)

	ring, err := NewKeyRing(clock, 3, dir, 128974848)
	require.NoError(err)
	defer ring.Halt()

	pub, ok := ring.PublicKey(7)
	require.True(ok)
	require.NotNil(pub)

	dst := make(map[uint64]*Handle)
	ring.Snapshot(dst)
	require.Len(dst, 3)

	mk := dst[7].Key()
	var raw [32]byte
	_, err = rand.Read(raw[:])
	require.NoError(err)
	tag, err := NewTag(raw[:])
	require.NoError(err)

	replay, err := mk.IsReplay(tag)
	require.NoError(err)
	require.False(replay)

	replay, err = mk.IsReplay(tag)
	require.NoError(err)
	require.True(replay)
}
