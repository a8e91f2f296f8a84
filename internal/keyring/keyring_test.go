// keyring_test.go - Key ring tests.
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

package keyring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testLineRate = 128974848

func TestRingPopulatesWindow(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 3, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	for _, e := range []uint64{100, 101, 102} {
		_, ok := r.PublicKey(e)
		require.True(ok, "epoch %d should be present", e)
	}
	_, ok := r.PublicKey(105)
	require.False(ok)
}

func TestPruneDropsOnlyStaleEpochs(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 3, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	clock.Advance(5) // current epoch is now 105
	_, err = r.Generate(104)
	require.NoError(err)

	didPrune := r.Prune()
	require.True(didPrune)

	for _, e := range []uint64{100, 101, 102, 103} {
		_, ok := r.PublicKey(e)
		require.Falsef(ok, "epoch %d must be pruned (< current-1)", e)
	}
	// Epoch 104 = current-1 is the grace epoch and must survive.
	_, ok := r.PublicKey(104)
	require.True(ok, "grace epoch 104 must survive prune")
}

func TestGenerateIsIdempotent(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 3, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	didGenerate, err := r.Generate(100)
	require.NoError(err)
	require.False(didGenerate, "all epochs in range already exist")
}

func TestSnapshotReconciliationAndIdempotence(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 3, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	dst := make(map[uint64]*Handle)
	r.Snapshot(dst)
	require.Len(dst, 3)
	for _, e := range []uint64{100, 101, 102} {
		h, ok := dst[e]
		require.True(ok)
		require.Same(r.keys[e].Key(), h.Key())
	}

	before := make(map[uint64]*Handle, len(dst))
	for k, v := range dst {
		before[k] = v
	}
	r.Snapshot(dst)
	require.Equal(before, dst)
}

func TestSnapshotDropsRetiredEpochs(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 3, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	dst := make(map[uint64]*Handle)
	r.Snapshot(dst)

	clock.Advance(5)
	r.Prune()
	r.Snapshot(dst)

	for _, e := range []uint64{100, 101, 102, 103} {
		_, ok := dst[e]
		require.Falsef(ok, "retired epoch %d must be dropped from snapshot", e)
	}
}

func TestKickDrivesHousekeeping(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	clock := NewFakeClock(100, time.Second)

	r, err := New(clock, 2, dir, testLineRate)
	require.NoError(err)
	defer r.Halt()

	r.StartHousekeeping(time.Hour) // rely on Kick, not the ticker
	clock.Advance(10)
	r.Kick()

	require.Eventually(func() bool {
		_, ok := r.PublicKey(110)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
