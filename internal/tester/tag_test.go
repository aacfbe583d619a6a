package tester

import (
	"bytes"
	"testing"
)

// TestFileTag_Format verifies the decimal-index-plus-terminator encoding.
func TestFileTag_Format(t *testing.T) {
	if got, want := fileTag(0), []byte{'0', tagTerminator}; !bytes.Equal(got, want) {
		t.Fatalf("fileTag(0)=%q, want=%q", got, want)
	}

	if got, want := fileTag(17), []byte{'1', '7', tagTerminator}; !bytes.Equal(got, want) {
		t.Fatalf("fileTag(17)=%q, want=%q", got, want)
	}
}

// TestBlockTag_Format verifies the "file:block" encoding.
func TestBlockTag_Format(t *testing.T) {
	if got, want := blockTag(2, 31), []byte{'2', ':', '3', '1', tagTerminator}; !bytes.Equal(got, want) {
		t.Fatalf("blockTag(2, 31)=%q, want=%q", got, want)
	}
}

// TestBlockTag_NoCrossIndexCollisions verifies that tags with swapped or
// concatenated indices stay distinct, e.g. (1, 23) vs (12, 3).
func TestBlockTag_NoCrossIndexCollisions(t *testing.T) {
	seen := map[string][2]int{}

	for i := 0; i < 25; i++ {
		for j := 0; j < 25; j++ {
			tag := string(blockTag(i, j))
			if prev, dup := seen[tag]; dup {
				t.Fatalf("blockTag(%d,%d) collides with blockTag(%d,%d)", i, j, prev[0], prev[1])
			}

			seen[tag] = [2]int{i, j}
		}
	}
}
