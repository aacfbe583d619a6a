package tester

import "testing"

// TestNewPattern_SizeAndRange verifies the pattern is exactly the requested
// size and every byte stays inside 1..254: zero would match sparse regions.
func TestNewPattern_SizeAndRange(t *testing.T) {
	const size = 256 * 1024

	pattern := newPattern(size)

	if got, want := len(pattern), size; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}

	for i, b := range pattern {
		if b == 0 || b == 0xFF {
			t.Fatalf("pattern[%d]=%#x, want in 1..254", i, b)
		}
	}
}

// TestNewPattern_NotConstant guards against a degenerate generator. A
// uniform draw over 254 values repeating across 4 KiB is practically
// impossible.
func TestNewPattern_NotConstant(t *testing.T) {
	pattern := newPattern(4 * 1024)

	first := pattern[0]
	for _, b := range pattern {
		if b != first {
			return
		}
	}

	t.Fatalf("pattern is %d bytes of %#x", len(pattern), first)
}
