// keyring.go - Epoch-rotating mix key ring.
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

// Package keyring coordinates the set of currently-live MixKeys keyed by
// epoch: generating upcoming epochs, pruning expired ones, and exporting
// read-mostly snapshots to the packet processor.
package keyring

import (
	"sync"
	"time"

	"github.com/katzenpost/core/crypto/ecdh"
	logging "github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/katzenpost/mixkeycore/internal/mixkey"
)

var log = logging.MustGetLogger("keyring")

var epochsActive = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "keyring_epochs_active",
	Help: "Number of epochs currently held by the key ring.",
})

func init() {
	prometheus.MustRegister(epochsActive)
}

// gracePeriodEpochs is the "-1" in spec section 4.4's prune predicate: one
// prior epoch is always kept around for packets that were unwrapped with
// the previous key just before rotation.
const gracePeriodEpochs = 1

// gracePeriodSeconds is reserved for future external coordination of
// stale-key deletion (spec section 6's GRACE_PERIOD_SEC). Nothing on the
// fast path consumes it today.
const gracePeriodSeconds = 120

// KeyRing is the set of currently-live MixKeys keyed by epoch. It owns
// every MixKey it holds; external callers receive shared Handles via
// Snapshot that outlive transient ring mutations.
type KeyRing struct {
	sync.Mutex

	keys map[uint64]*Handle

	clock        Clock
	numMixKeys   int
	baseDir      string
	lineRate     uint64
	unlinkRetire bool

	housekeeper *Housekeeper
}

// New constructs the ring and performs the initial Generate pass for the
// clock's current epoch, per spec section 4.4.
func New(clock Clock, numMixKeys int, baseDir string, lineRate uint64) (*KeyRing, error) {
	r := &KeyRing{
		keys:       make(map[uint64]*Handle),
		clock:      clock,
		numMixKeys: numMixKeys,
		baseDir:    baseDir,
		lineRate:   lineRate,
	}

	epoch, _ := clock.Now()
	if _, err := r.Generate(epoch); err != nil {
		return nil, err
	}

	r.housekeeper = newHousekeeper(r)
	return r, nil
}

// SetUnlinkOnRetire controls whether a pruned epoch's on-disk directory
// is removed (vs. merely closed). Defaults to false: spec section 9 notes
// stale-directory cleanup is a SHOULD, not a MUST, and leaves the policy
// to the caller.
func (r *KeyRing) SetUnlinkOnRetire(b bool) {
	r.Lock()
	defer r.Unlock()
	r.unlinkRetire = b
}

// StartHousekeeping launches the periodic control loop (spec section 4.4:
// "driven by a periodic control loop or by direct invocation from a
// housekeeping task"). Callers that prefer to drive rotation themselves
// can ignore this and call Generate/Prune directly, or call Kick() to
// nudge the same loop out of band.
func (r *KeyRing) StartHousekeeping(interval time.Duration) {
	r.housekeeper.Start(interval)
}

// Kick requests an out-of-band rotation pass from the housekeeping loop.
func (r *KeyRing) Kick() {
	r.housekeeper.Kick()
}

// Halt stops the housekeeping loop and closes every held MixKey.
func (r *KeyRing) Halt() {
	r.housekeeper.Halt()

	r.Lock()
	dropped := make([]*Handle, 0, len(r.keys))
	for epoch, h := range r.keys {
		dropped = append(dropped, h)
		delete(r.keys, epoch)
	}
	epochsActive.Set(0)
	r.Unlock()

	// Deref (and the MixKey I/O it triggers) happens after releasing the
	// ring mutex; see spec section 5.
	for _, h := range dropped {
		h.Deref()
	}
}

// Generate constructs and inserts a MixKey for every epoch in
// [baseEpoch, baseEpoch+numMixKeys) not already present. It returns
// whether any new MixKey was produced. A construction failure stops
// further generation in this call but leaves every epoch built before
// the failure inserted; the ring is never left holding a half-built
// MixKey. MixKey construction (directory creation, RNG, bbolt open) runs
// with the ring mutex released, per spec section 5 — it is taken only to
// snapshot the missing epochs beforehand and to insert the results after.
func (r *KeyRing) Generate(baseEpoch uint64) (bool, error) {
	r.Lock()
	var missing []uint64
	for e := baseEpoch; e < baseEpoch+uint64(r.numMixKeys); e++ {
		if _, ok := r.keys[e]; !ok {
			missing = append(missing, e)
		}
	}
	period, lineRate, baseDir := r.clock.Period(), r.lineRate, r.baseDir
	r.Unlock()

	type built struct {
		epoch uint64
		h     *Handle
	}
	var (
		builtList []built
		buildErr  error
	)
	for _, e := range missing {
		k, err := mixkey.New(baseDir, e, lineRate, uint64(period.Seconds()))
		if err != nil {
			buildErr = err
			break
		}
		// Unlinking is decided at retire time (Prune), so a handle that
		// is merely closed (Halt, a lost race) never removes its directory.
		builtList = append(builtList, built{e, newHandle(k, baseDir, false)})
	}

	r.Lock()
	var lostRace []*Handle
	didGenerate := false
	for _, b := range builtList {
		if _, ok := r.keys[b.epoch]; ok {
			// A concurrent Generate call already inserted this epoch.
			lostRace = append(lostRace, b.h)
			continue
		}
		r.keys[b.epoch] = b.h
		didGenerate = true
		log.Noticef("keyring: generated mix key for epoch %d", b.epoch)
	}
	epochsActive.Set(float64(len(r.keys)))
	r.Unlock()

	for _, h := range lostRace {
		h.Deref()
	}
	return didGenerate, buildErr
}

// Prune drops every entry whose epoch is strictly less than
// clock.Now().epoch - gracePeriodEpochs, returning whether anything was
// dropped.
func (r *KeyRing) Prune() bool {
	r.Lock()

	epoch, _ := r.clock.Now()
	var floor uint64
	if epoch > gracePeriodEpochs {
		floor = epoch - gracePeriodEpochs
	}

	var dropped []*Handle
	for e, h := range r.keys {
		if e < floor {
			h.unlink = r.unlinkRetire
			dropped = append(dropped, h)
			delete(r.keys, e)
			log.Debugf("keyring: pruned mix key for epoch %d", e)
		}
	}
	epochsActive.Set(float64(len(r.keys)))
	r.Unlock()

	// Deref (and the MixKey I/O it triggers) happens after releasing the
	// ring mutex; see spec section 5.
	for _, h := range dropped {
		h.Deref()
	}
	return len(dropped) > 0
}

// PublicKey returns the public key for epoch, if the ring currently holds
// it.
func (r *KeyRing) PublicKey(epoch uint64) (*ecdh.PublicKey, bool) {
	r.Lock()
	defer r.Unlock()

	h, ok := r.keys[epoch]
	if !ok {
		return nil, false
	}
	return h.Key().PublicKey(), true
}

// Snapshot reconciles dst to the ring's current contents: entries no
// longer in the ring are removed (and Deref'd) from dst, and entries
// present in the ring but missing from dst are added by shared handle
// (Ref'd, not copied). It lets the packet processor maintain a private
// read-mostly view without holding the ring lock on the fast path.
//
// Calling Snapshot twice with no intervening ring mutation is a no-op the
// second time: every entry in dst already matches the ring.
func (r *KeyRing) Snapshot(dst map[uint64]*Handle) {
	r.Lock()

	var dropped []*Handle
	for e, h := range dst {
		if _, ok := r.keys[e]; !ok {
			dropped = append(dropped, h)
			delete(dst, e)
		}
	}
	for e, h := range r.keys {
		if _, ok := dst[e]; !ok {
			dst[e] = h.Ref()
		}
	}
	r.Unlock()

	// Deref (and the MixKey I/O it triggers) happens after releasing the
	// ring mutex; see spec section 5.
	for _, h := range dropped {
		h.Deref()
	}
}
