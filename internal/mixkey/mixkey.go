// mixkey.go - Mix keys and associated utilities.
// Copyright (C) 2017  Yawning Angel.
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

// Package mixkey provides the per-epoch mix key and two-tier replay
// detector: a bloom filter fast path backed by a durable bbolt index, plus
// the ECDH keypair the epoch's Sphinx unwrap uses.
package mixkey

import (
	"fmt"
	"sync"

	"github.com/katzenpost/core/crypto/ecdh"
	"github.com/katzenpost/core/crypto/rand"
	logging "github.com/op/go-logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/katzenpost/mixkeycore/internal/sphinxconst"
)

var log = logging.MustGetLogger("mixkey")

var (
	replayTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mixkey_replay_total",
		Help: "Count of IsReplay verdicts, labeled fresh or replay.",
	}, []string{"verdict"})
	storeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mixkey_store_errors_total",
		Help: "Count of durable-store failures observed by IsReplay.",
	})
)

func init() {
	prometheus.MustRegister(replayTotal, storeErrorsTotal)
}

// MixKey is the per-epoch unit: an ECDH keypair plus a two-tier replay
// detector (bloom filter + durable bbolt index), both scoped to a single
// epoch's on-disk directory.
type MixKey struct {
	sync.Mutex

	epoch   uint64
	keypair *ecdh.PrivateKey
	filter  *ReplayFilter
	store   *tagStore
}

// Epoch returns the epoch this MixKey is valid for.
func (k *MixKey) Epoch() uint64 {
	return k.epoch
}

// PublicKey returns the public half of the epoch keypair.
func (k *MixKey) PublicKey() *ecdh.PublicKey {
	return k.keypair.PublicKey()
}

// PrivateKey returns the epoch's private key.
func (k *MixKey) PrivateKey() *ecdh.PrivateKey {
	return k.keypair
}

// IsReplay implements the algorithm of spec section 4.2: a bloom-filter
// fast path that absorbs the overwhelming majority of fresh traffic with a
// single in-memory check, falling back to the durable store only to
// resolve a suspected replay or a bloom false positive. It returns true
// iff tag has been observed before within this MixKey's lifetime,
// including previous process lifetimes backed by the same directory.
//
// The MixKey's own lock serializes concurrent callers, so two calls with
// the same tag can never both observe a bloom miss and both return false.
func (k *MixKey) IsReplay(tag Tag) (bool, error) {
	k.Lock()
	defer k.Unlock()

	if !k.filter.Contains(tag) {
		k.filter.Insert(tag)
		if err := k.store.putTag(tag); err != nil {
			storeErrorsTotal.Inc()
			return false, err
		}
		replayTotal.WithLabelValues("fresh").Inc()
		return false, nil
	}

	seen, err := k.store.hasTag(tag)
	if err != nil {
		storeErrorsTotal.Inc()
		return false, err
	}
	if seen {
		replayTotal.WithLabelValues("replay").Inc()
		return true, nil
	}

	// Bloom false positive: the tag is not actually in the store.
	k.filter.Insert(tag)
	if err := k.store.putTag(tag); err != nil {
		storeErrorsTotal.Inc()
		return false, err
	}
	replayTotal.WithLabelValues("fresh").Inc()
	return false, nil
}

// Flush forces the durable store to disk, bounding the crash window to
// zero at the moment it returns. Safe to call on the shutdown path; not
// intended for the packet fast path.
func (k *MixKey) Flush() error {
	if err := k.store.flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStoreError, err)
	}
	return nil
}

// Close releases the MixKey's durable store and zeroes its private key.
// It does not remove the on-disk directory; callers that want that use
// Unlink instead.
func (k *MixKey) Close() error {
	k.Lock()
	defer k.Unlock()
	err := k.store.close()
	k.keypair.Reset()
	return err
}

// Unlink closes the MixKey and then removes its on-disk directory
// entirely. Intended only for retired (pruned) epochs.
func (k *MixKey) Unlink(baseDir string) error {
	if err := k.Close(); err != nil {
		return err
	}
	return unlinkTagStoreDir(baseDir, k.epoch)
}

// New creates (or loads) the MixKey for epoch in baseDir, per spec
// section 4.3:
//
//  1. Derive cacheCapacity from lineRate and epochDuration.
//  2. Open the durable store rooted at baseDir/mix_key.<epoch>.
//  3. Reconcile the reserved epoch marker.
//  4. Load or generate the private key.
//  5. Construct an empty (process-local) ReplayFilter.
func New(baseDir string, epoch uint64, lineRate uint64, epochDuration uint64) (*MixKey, error) {
	cacheCapacity := int((epochDuration * lineRate / sphinxconst.PacketLength) * sphinxconst.ReplayTagLength / 2)

	store, err := openTagStore(baseDir, epoch, cacheCapacity)
	if err != nil {
		return nil, err
	}

	k := &MixKey{
		epoch: epoch,
		store: store,
	}

	if err := k.reconcileEpoch(epoch); err != nil {
		store.close()
		return nil, err
	}

	if err := k.loadOrGenerateKeypair(); err != nil {
		store.close()
		return nil, err
	}

	k.filter = newReplayFilter(lineRate, epochDuration)

	log.Debugf("mixkey: epoch %d ready", epoch)
	return k, nil
}

func (k *MixKey) reconcileEpoch(epoch uint64) error {
	stored, ok, err := k.store.readEpoch()
	if err != nil {
		return err
	}
	if ok {
		if stored != epoch {
			log.Warningf("mixkey: epoch mismatch on load: stored=%d requested=%d", stored, epoch)
			return ErrLoadCacheFailed
		}
		return nil
	}
	return k.store.writeEpoch(epoch)
}

func (k *MixKey) loadOrGenerateKeypair() error {
	raw, ok, err := k.store.readPrivateKey()
	if err != nil {
		return err
	}
	if ok {
		priv := new(ecdh.PrivateKey)
		if err := priv.FromBytes(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrKeyError, err)
		}
		k.keypair = priv
		return nil
	}

	priv, err := ecdh.NewKeypair(rand.Reader)
	if err != nil {
		return fmt.Errorf("%w: generate: %v", ErrKeyError, err)
	}
	if err := k.store.writePrivateKey(priv.Bytes()); err != nil {
		return fmt.Errorf("%w: %v", ErrCreateCacheFailed, err)
	}
	k.keypair = priv
	return nil
}
