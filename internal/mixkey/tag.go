// tag.go - Sphinx replay tag value type.
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

package mixkey

import (
	"fmt"

	"github.com/katzenpost/mixkeycore/internal/sphinxconst"
)

// Tag is an opaque, fixed-width Sphinx replay tag. The detector never
// interprets its contents; equality and hashing are byte-wise.
type Tag [sphinxconst.ReplayTagLength]byte

// NewTag copies b into a Tag, failing if b is not exactly ReplayTagLength
// bytes long.
func NewTag(b []byte) (Tag, error) {
	var t Tag
	if len(b) != len(t) {
		return t, fmt.Errorf("mixkey: tag must be %d bytes, got %d", len(t), len(b))
	}
	copy(t[:], b)
	return t, nil
}

// Bytes returns the tag's byte-slice view, suitable for use as a store key
// or a bloom filter member.
func (t Tag) Bytes() []byte {
	return t[:]
}
