// store.go - Durable tag store and key vault, backed by bbolt.
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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// flushInterval is FLUSH_MS: the background Sync period. A crash may
	// lose up to this much accepted-tag durability.
	flushInterval = 10 * time.Second

	// dataFile is the bbolt file living inside each per-epoch directory.
	dataFile = "tags.db"

	bucketName = "mixkey"
)

// Reserved, flat-namespace keys. Their lengths (5 and 11 bytes) must never
// collide with ReplayTagLength (32 bytes); see spec section 6.
var (
	epochKey      = []byte("epoch")
	privateKeyKey = []byte("private_key")
)

// tagStore is the durable exact-membership index and key vault for one
// epoch's MixKey. It owns a single bbolt database rooted at
// baseDir/mix_key.<epoch>/tags.db.
type tagStore struct {
	db   *bolt.DB
	path string

	flushOnce sync.Once
	stopFlush chan struct{}
	flushDone chan struct{}
}

// openTagStore opens (or creates) the per-epoch directory and its backing
// bbolt database. cacheCapacity is an upper bound hint on the tag bytes
// stored; bbolt sizes its own mmap dynamically, so the hint is accepted but
// not used or enforced.
func openTagStore(baseDir string, epoch uint64, cacheCapacity int) (*tagStore, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("mix_key.%d", epoch))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", ErrCreateCacheFailed, dir, err)
	}

	path := filepath.Join(dir, dataFile)
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCreateCacheFailed, path, err)
	}
	// Writes are batched and synced on our own FLUSH_MS ticker rather
	// than fsynced per transaction; see flush() and the periodic loop
	// started below.
	db.NoSync = true

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bucket: %v", ErrCreateCacheFailed, err)
	}

	s := &tagStore{
		db:        db,
		path:      path,
		stopFlush: make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	s.startPeriodicFlush()
	return s, nil
}

// readEpoch returns the stored epoch value, or ok=false if unset.
func (s *tagStore) readEpoch() (epoch uint64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName)).Get(epochKey)
		if b == nil {
			return nil
		}
		if len(b) != 8 {
			return fmt.Errorf("%w: corrupt epoch entry (%d bytes)", ErrLoadCacheFailed, len(b))
		}
		epoch = binary.LittleEndian.Uint64(b)
		ok = true
		return nil
	})
	return epoch, ok, err
}

// writeEpoch writes the little-endian epoch marker.
func (s *tagStore) writeEpoch(epoch uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], epoch)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(epochKey, buf[:])
	}); err != nil {
		return fmt.Errorf("%w: write epoch: %v", ErrStoreError, err)
	}
	return nil
}

// readPrivateKey returns the stored private-key bytes, or ok=false if
// unset.
func (s *tagStore) readPrivateKey() (raw []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName)).Get(privateKeyKey)
		if b == nil {
			return nil
		}
		raw = append([]byte(nil), b...)
		ok = true
		return nil
	})
	return raw, ok, err
}

// writePrivateKey persists the private key's serialized byte form.
func (s *tagStore) writePrivateKey(raw []byte) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(privateKeyKey, raw)
	}); err != nil {
		return fmt.Errorf("%w: write private key: %v", ErrStoreError, err)
	}
	return nil
}

// hasTag reports whether t has been durably recorded. It is the slow-path
// store lookup of MixKey.IsReplay.
func (s *tagStore) hasTag(t Tag) (bool, error) {
	var present bool
	err := s.db.View(func(tx *bolt.Tx) error {
		present = tx.Bucket([]byte(bucketName)).Get(t.Bytes()) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: get tag: %v", ErrStoreError, err)
	}
	return present, nil
}

// putTag durably records t as observed (empty value; presence is the
// signal).
func (s *tagStore) putTag(t Tag) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(t.Bytes(), []byte{})
	}); err != nil {
		return fmt.Errorf("%w: put tag: %v", ErrStoreError, err)
	}
	return nil
}

// flush forces the store to disk, bounding the crash window to zero at
// the moment it returns.
func (s *tagStore) flush() error {
	return s.db.Sync()
}

// startPeriodicFlush launches the FLUSH_MS background sync loop. It must
// be paired with a call to close(), which stops the loop.
func (s *tagStore) startPeriodicFlush() {
	go func() {
		defer close(s.flushDone)
		t := time.NewTicker(flushInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = s.db.Sync()
			case <-s.stopFlush:
				return
			}
		}
	}()
}

// close stops the background flush loop, flushes, and closes the
// database.
func (s *tagStore) close() error {
	s.flushOnce.Do(func() { close(s.stopFlush) })
	<-s.flushDone
	_ = s.db.Sync()
	return s.db.Close()
}

// unlinkTagStoreDir removes the per-epoch directory entirely. Must only be called
// after close().
func unlinkTagStoreDir(baseDir string, epoch uint64) error {
	dir := filepath.Join(baseDir, fmt.Sprintf("mix_key.%d", epoch))
	return os.RemoveAll(dir)
}
