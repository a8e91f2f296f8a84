// filter.go - Bloom filter tier of the replay detector.
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
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/katzenpost/mixkeycore/internal/sphinxconst"
)

// falsePositiveRate is the target false-positive probability when the
// filter is loaded to its expected item count. Zero false negatives is
// the bloom filter's entire reason for being here; false positives just
// fall through to the durable store (see MixKey.IsReplay).
const falsePositiveRate = 0.01

// ReplayFilter is the in-memory, probabilistic first tier of the replay
// detector. It is always a conservative approximation of the durable
// TagStore: a miss here is a guarantee of absence, a hit is merely a
// maybe.
type ReplayFilter struct {
	filter *bloom.BloomFilter
}

// newReplayFilter sizes a filter for the maximum plausible number of
// distinct tags observable in one epoch at lineRate bytes/sec.
func newReplayFilter(lineRate uint64, epochDuration uint64) *ReplayFilter {
	expectedItems := (lineRate / sphinxconst.PacketLength) * epochDuration
	if expectedItems == 0 {
		expectedItems = 1
	}
	return &ReplayFilter{
		filter: bloom.NewWithEstimates(uint(expectedItems), falsePositiveRate),
	}
}

// Contains reports whether t may have been inserted. A false return is
// authoritative; a true return may be a false positive.
func (f *ReplayFilter) Contains(t Tag) bool {
	return f.filter.Test(t.Bytes())
}

// Insert marks t as observed.
func (f *ReplayFilter) Insert(t Tag) {
	f.filter.Add(t.Bytes())
}
