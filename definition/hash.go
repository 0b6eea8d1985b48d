package definition

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// StableHash computes the binary-identity hash Bootstrap (spec §4.1)
// appends to the room name so peers running mismatched module binaries
// never share a room. xxhash is a non-cryptographic, content-addressing
// hash: appropriate here since §1's Non-goals explicitly exclude
// cryptographic authentication, and this hash only needs to distinguish
// binaries, not resist a deliberate forger.
func StableHash(binary []byte) string {
	sum := xxhash.Sum64(binary)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}
