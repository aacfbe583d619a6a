package tester

import (
	"math/rand/v2"
	"time"
)

// Reserved byte values that never appear in the pattern.
const (
	// sentinelByte is written at the last offset of every test file to
	// detect truncation and resize failures.
	sentinelByte = 0xFE
)

// newPattern returns size bytes of pseudo-random fill content, each drawn
// uniformly from 1..254. Zero is excluded so freshly allocated (sparse)
// regions can never pass verification, and 255 never appears anywhere.
//
// The generator is seeded from the clock once per run. Reproducibility
// across runs is not a goal; the pattern is collision-resistant filler, not
// a verifiable-by-formula sequence. Every block in a run shares this one
// buffer, truncated to the block size and overlaid with the block's tag.
func newPattern(size int64) []byte {
	now := uint64(time.Now().UnixNano())
	rng := rand.New(rand.NewPCG(now, now>>32))

	pattern := make([]byte, size)
	for i := range pattern {
		pattern[i] = byte(rng.IntN(254) + 1)
	}

	return pattern
}
