package dedup

import (
	"hash/fnv"
	"math/bits"
)

// simhash computes a 64-bit locality-sensitive fingerprint over the token
// stream: each token votes its FNV-1a hash bits up or down, and the sign of
// each column becomes the fingerprint bit. Near-identical texts land within
// a few bits of each other. Returns ok=false when there is nothing to hash.
func simhash(tokens []string) (uint64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}

	var counts [64]int
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		v := h.Sum64()
		for i := 0; i < 64; i++ {
			if v&(1<<uint(i)) != 0 {
				counts[i]++
			} else {
				counts[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if counts[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint, true
}

func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
