// mixkey_test.go - Mix key tests.
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

package mixkey

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testLineRate = 128974848 // 123 * 1024 * 1024, per the original rationale.

func randomTag(t *testing.T) Tag {
	var raw [32]byte
	_, err := rand.Read(raw[:])
	require.NoError(t, err)
	tag, err := NewTag(raw[:])
	require.NoError(t, err)
	return tag
}

func TestFreshThenReplay(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	k, err := New(dir, 1, testLineRate, 1)
	require.NoError(err)
	defer k.Close()

	tag := randomTag(t)

	replay, err := k.IsReplay(tag)
	require.NoError(err)
	require.False(replay)

	replay, err = k.IsReplay(tag)
	require.NoError(err)
	require.True(replay)

	replay, err = k.IsReplay(tag)
	require.NoError(err)
	require.True(replay)
}

func TestRestartPreservesObservationsAndKey(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	k, err := New(dir, 1, testLineRate, 1)
	require.NoError(err)

	tag := randomTag(t)
	replay, err := k.IsReplay(tag)
	require.NoError(err)
	require.False(replay)

	require.NoError(k.Flush())
	origPrivBytes := k.PrivateKey().Bytes()
	require.NoError(k.Close())

	k2, err := New(dir, 1, testLineRate, 1)
	require.NoError(err)
	defer k2.Close()

	require.Equal(origPrivBytes, k2.PrivateKey().Bytes())

	replay, err = k2.IsReplay(tag)
	require.NoError(err)
	require.True(replay)
}

func TestEpochMismatch(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	k, err := New(dir, 1, testLineRate, 1)
	require.NoError(err)
	require.NoError(k.Close())

	_, err = New(dir, 2, testLineRate, 1)
	require.Error(err)
	require.True(errors.Is(err, ErrLoadCacheFailed))
}

func TestBloomFalsePositiveFallsThroughToStore(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	k, err := New(dir, 1, testLineRate, 1)
	require.NoError(err)
	defer k.Close()

	// Force a bloom "hit" for a tag never inserted; the store lookup
	// must still correctly report it as absent and record it as fresh.
	unseen := randomTag(t)
	k.filter.Insert(unseen)

	replay, err := k.IsReplay(unseen)
	require.NoError(err)
	require.False(replay, "bloom false positive must fall through to the store, not be misreported as replay")

	replay, err = k.IsReplay(unseen)
	require.NoError(err)
	require.True(replay)
}

func TestMalformedTagLength(t *testing.T) {
	_, err := NewTag([]byte{1, 2, 3})
	require.Error(t, err)
}
