// clock.go - Epoch clock collaborator.
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
	"sync"
	"time"

	"github.com/katzenpost/core/epochtime"
)

// Clock is the narrow external collaborator the KeyRing needs: the
// current epoch number and the epoch's fixed duration. The Sphinx unwrap,
// the PKI, and the rest of the server own the real epoch schedule; the
// KeyRing only ever asks this interface.
type Clock interface {
	// Now returns the current epoch number and the time remaining until
	// the next epoch transition.
	Now() (epoch uint64, till time.Duration)

	// Period returns the fixed epoch duration.
	Period() time.Duration
}

// SystemClock wraps github.com/katzenpost/core/epochtime, the real
// Katzenpost epoch clock (confirmed usage: epoch, _, _ := epochtime.Now()
// in the teacher's mix key loader).
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() (uint64, time.Duration) {
	epoch, _, till := epochtime.Now()
	return epoch, till
}

// Period implements Clock.
func (SystemClock) Period() time.Duration {
	return epochtime.Period
}

// FakeClock is a test double that lets tests advance epochs
// deterministically instead of waiting on wall-clock time.
type FakeClock struct {
	mu     sync.Mutex
	epoch  uint64
	till   time.Duration
	period time.Duration
}

// NewFakeClock constructs a FakeClock pinned at epoch, with the given
// period.
func NewFakeClock(epoch uint64, period time.Duration) *FakeClock {
	return &FakeClock{epoch: epoch, till: period, period: period}
}

// Now implements Clock.
func (c *FakeClock) Now() (uint64, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.till
}

// Period implements Clock.
func (c *FakeClock) Period() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// Advance moves the fake clock forward by n epochs.
func (c *FakeClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch += n
}
