package storage

import (
	"crypto/sha256"
	"sort"
)

// merkleRoot computes a deterministic root over a key/value set. Spec §4.1
// requires only that roots be "reproducible across nodes given identical
// sequences of write/delete operations" and explicitly places the real
// Merkle commitment scheme out of scope (spec §1 Non-goals); this is a
// domain-separated sorted-key hash chain, sufficient to satisfy that
// reproducibility requirement without inventing unverifiable commitment
// math.
func merkleRoot(data map[string][]byte) [32]byte {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte("empower1-storage-root-v1"))
	for _, k := range keys {
		writeLenPrefixed(h, []byte(k))
		writeLenPrefixed(h, data[k])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBytes [4]byte
	n := uint32(len(b))
	lenBytes[0] = byte(n >> 24)
	lenBytes[1] = byte(n >> 16)
	lenBytes[2] = byte(n >> 8)
	lenBytes[3] = byte(n)
	h.Write(lenBytes[:])
	h.Write(b)
}
