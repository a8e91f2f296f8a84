// handle.go - Reference-counted MixKey handles.
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

package keyring

import (
	"sync/atomic"

	"github.com/katzenpost/mixkeycore/internal/mixkey"
)

// Handle is a shared, reference-counted handle to a MixKey. The KeyRing
// holds the first reference at insertion time; Snapshot hands out
// additional references to external callers so a ring mutation (prune)
// doesn't yank storage out from under a packet worker mid-flight. The
// last Deref closes (and optionally unlinks) the underlying MixKey.
type Handle struct {
	key      *mixkey.MixKey
	baseDir  string
	refCount int32
	unlink   bool
}

func newHandle(k *mixkey.MixKey, baseDir string, unlinkOnRetire bool) *Handle {
	return &Handle{key: k, baseDir: baseDir, refCount: 1, unlink: unlinkOnRetire}
}

// Key returns the underlying MixKey.
func (h *Handle) Key() *mixkey.MixKey {
	return h.key
}

// Ref increments the reference count and returns the same handle, for
// chaining at call sites like `dst[epoch] = h.Ref()`.
func (h *Handle) Ref() *Handle {
	i := atomic.AddInt32(&h.refCount, 1)
	if i <= 1 {
		panic("BUG: keyring: Ref() on a handle with a non-positive refcount")
	}
	return h
}

// Deref decrements the reference count, closing the MixKey (and
// unlinking its directory, if the handle was retired with cleanup
// enabled) when the count reaches zero.
func (h *Handle) Deref() {
	i := atomic.AddInt32(&h.refCount, -1)
	switch {
	case i > 0:
		return
	case i < 0:
		panic("BUG: keyring: Deref() underflowed refcount")
	}
	if h.unlink {
		_ = h.key.Unlink(h.baseDir)
		return
	}
	_ = h.key.Close()
}
