// Package sphinxconst mirrors the handful of Sphinx packet-format constants
// that the mix key core needs from the Sphinx collaborator
// (github.com/katzenpost/core/sphinx/constants in the full server). The
// Sphinx wire format itself is out of scope for this module (see spec
// section 1); only the two sizes that drive bloom-filter and store sizing
// are reproduced here.
package sphinxconst

const (
	// ReplayTagLength is T_SZ, the fixed width of a Sphinx replay tag.
	ReplayTagLength = 32

	// PacketLength is PACKET_SIZE, the serialized size of one Sphinx packet.
	PacketLength = 32 * 1024
)
