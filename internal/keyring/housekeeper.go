// housekeeper.go - Periodic keyring rotation control loop.
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
	"time"

	"github.com/eapache/channels"
)

// Housekeeper drives KeyRing.Generate/Prune off either a periodic tick or
// a direct nudge from an external housekeeping task, per spec section
// 4.4. It fans both triggers through an unbounded channel so a burst of
// nudges (e.g. the owning server calling Kick on every PKI document
// fetch) never blocks the caller, mirroring how the teacher server feeds
// its inbound Sphinx packets through channels.NewInfiniteChannel.
type Housekeeper struct {
	ring *KeyRing

	signal  *channels.InfiniteChannel
	halted  chan struct{}
	done    chan struct{}
	started bool
}

func newHousekeeper(ring *KeyRing) *Housekeeper {
	return &Housekeeper{
		ring:   ring,
		signal: channels.NewInfiniteChannel(),
		halted: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the ticker and consumer goroutines. interval governs how
// often a rotation is attempted even absent an explicit Kick.
func (h *Housekeeper) Start(interval time.Duration) {
	h.started = true
	go h.tickLoop(interval)
	go h.consumeLoop()
}

// Kick requests a rotation pass (Generate followed by Prune) as soon as
// the consumer goroutine gets to it.
func (h *Housekeeper) Kick() {
	h.signal.In() <- struct{}{}
}

// Halt stops both goroutines and waits for the consumer to drain. If Start
// was never called there is no consumer to wait for.
func (h *Housekeeper) Halt() {
	close(h.halted)
	h.signal.Close()
	if h.started {
		<-h.done
	}
}

func (h *Housekeeper) tickLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			h.Kick()
		case <-h.halted:
			return
		}
	}
}

func (h *Housekeeper) consumeLoop() {
	defer close(h.done)
	out := h.signal.Out()
	for range out {
		epoch, _ := h.ring.clock.Now()
		if _, err := h.ring.Generate(epoch); err != nil {
			log.Errorf("keyring: housekeeper generate failed: %v", err)
		}
		h.ring.Prune()
	}
}
