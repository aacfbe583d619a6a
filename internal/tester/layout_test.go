package tester

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// Plan Tests
//
// The layout is the contract everything else builds on: files and blocks must
// tile the space under test exactly, with only the last unit of each kind
// allowed to be undersized.
// =============================================================================

// TestPlan_ReferenceScenario verifies the 10 MiB / 4 MiB / 1 MiB partition:
// 3 files sized [4, 4, 2] MiB, and the last file split into 2 blocks.
func TestPlan_ReferenceScenario(t *testing.T) {
	layout, err := Plan(10*MiB, 4*MiB, 1*MiB, "/mnt/usb", "VOLTEST")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if got, want := layout.TotalBytes, int64(10*MiB); got != want {
		t.Fatalf("TotalBytes=%d, want=%d", got, want)
	}

	var sizes []int64
	for _, file := range layout.Files {
		sizes = append(sizes, file.Size)
	}

	if diff := cmp.Diff([]int64{4 * MiB, 4 * MiB, 2 * MiB}, sizes); diff != "" {
		t.Fatalf("file sizes mismatch (-want +got):\n%s", diff)
	}

	last := layout.Files[2]
	if got, want := len(last.Blocks), 2; got != want {
		t.Fatalf("last file blocks=%d, want=%d", got, want)
	}

	for _, block := range last.Blocks {
		if got, want := block.Size, int64(1*MiB); got != want {
			t.Fatalf("block size=%d, want=%d", got, want)
		}
	}

	if got, want := last.Path, filepath.Join("/mnt/usb", "VOLTEST2"); got != want {
		t.Fatalf("path=%q, want=%q", got, want)
	}
}

// TestPlan_SizesSumToTotal verifies the tiling laws across a spread of
// totals, including exact multiples and remainders.
func TestPlan_SizesSumToTotal(t *testing.T) {
	totals := []int64{
		1,
		MiB - 1,
		1 * MiB,
		3*MiB + 7,
		4 * MiB,
		4*MiB + 1,
		8 * MiB,
		10 * MiB,
		11*MiB + 12345,
	}

	for _, total := range totals {
		t.Run(fmt.Sprintf("total=%d", total), func(t *testing.T) {
			layout, err := Plan(total, 4*MiB, 1*MiB, "/m", "T")
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}

			var fileSum int64

			var nextAbs int64

			for i, file := range layout.Files {
				if got, want := file.Offset, nextAbs; got != want {
					t.Fatalf("file %d offset=%d, want=%d (gap or overlap)", i, got, want)
				}

				if got, want := file.End, file.Offset+file.Size; got != want {
					t.Fatalf("file %d end=%d, want=%d", i, got, want)
				}

				if file.Size <= 0 {
					t.Fatalf("file %d size=%d, want > 0", i, file.Size)
				}

				// Only the last file may be undersized.
				if i < len(layout.Files)-1 && file.Size != 4*MiB {
					t.Fatalf("file %d size=%d, want=%d", i, file.Size, 4*MiB)
				}

				var blockSum int64

				nextRel := int64(0)

				for j, block := range file.Blocks {
					if got, want := block.RelOffset, nextRel; got != want {
						t.Fatalf("file %d block %d rel=%d, want=%d", i, j, got, want)
					}

					if got, want := block.AbsOffset, file.Offset+block.RelOffset; got != want {
						t.Fatalf("file %d block %d abs=%d, want=%d", i, j, got, want)
					}

					if j < len(file.Blocks)-1 && block.Size != 1*MiB {
						t.Fatalf("file %d block %d size=%d, want=%d", i, j, block.Size, 1*MiB)
					}

					blockSum += block.Size
					nextRel += 1 * MiB
				}

				if got, want := blockSum, file.Size; got != want {
					t.Fatalf("file %d block sum=%d, want=%d", i, got, want)
				}

				fileSum += file.Size
				nextAbs += 4 * MiB
			}

			if got, want := fileSum, total; got != want {
				t.Fatalf("file sum=%d, want=%d", got, want)
			}

			// The union of all blocks must end exactly at total.
			lastFile := layout.Files[len(layout.Files)-1]
			lastBlock := lastFile.Blocks[len(lastFile.Blocks)-1]

			if got, want := lastBlock.AbsEnd, total; got != want {
				t.Fatalf("last block abs end=%d, want=%d", got, want)
			}
		})
	}
}

// TestPlan_ExactMultipleHasNoUndersizedUnit verifies that the remainder rule
// only fires when there is a remainder.
func TestPlan_ExactMultipleHasNoUndersizedUnit(t *testing.T) {
	layout, err := Plan(8*MiB, 4*MiB, 1*MiB, "/m", "T")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if got, want := len(layout.Files), 2; got != want {
		t.Fatalf("files=%d, want=%d", got, want)
	}

	for i, file := range layout.Files {
		if got, want := file.Size, int64(4*MiB); got != want {
			t.Fatalf("file %d size=%d, want=%d", i, got, want)
		}

		if got, want := len(file.Blocks), 4; got != want {
			t.Fatalf("file %d blocks=%d, want=%d", i, got, want)
		}
	}
}

// TestPlan_TagsUniqueAcrossRun verifies that no two files and no two blocks
// anywhere in the layout share a tag.
func TestPlan_TagsUniqueAcrossRun(t *testing.T) {
	layout, err := Plan(10*MiB, 4*MiB, 1*MiB, "/m", "T")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	seen := map[string]bool{}

	for _, file := range layout.Files {
		key := "file:" + string(file.Tag)
		if seen[key] {
			t.Fatalf("duplicate file tag %q", file.Tag)
		}

		seen[key] = true

		for _, block := range file.Blocks {
			key := "block:" + string(block.Tag)
			if seen[key] {
				t.Fatalf("duplicate block tag %q", block.Tag)
			}

			seen[key] = true
		}
	}
}

// TestPlan_RejectsInvalidInputs verifies the precondition checks.
func TestPlan_RejectsInvalidInputs(t *testing.T) {
	cases := []struct {
		name     string
		total    int64
		fileMax  int64
		blockMax int64
		wantErr  error
	}{
		{"zero total", 0, 4 * MiB, 1 * MiB, errTotalNotPositive},
		{"negative total", -1, 4 * MiB, 1 * MiB, errTotalNotPositive},
		{"unaligned file size", 10 * MiB, 4*MiB + 1, 1 * MiB, errFileSizeInvalid},
		{"zero file size", 10 * MiB, 0, 1 * MiB, errFileSizeInvalid},
		{"unaligned block size", 10 * MiB, 4 * MiB, 1*MiB - 1, errBlockSizeInvalid},
		{"zero block size", 10 * MiB, 4 * MiB, 0, errBlockSizeInvalid},
		{"file not larger than block", 10 * MiB, 4 * MiB, 4 * MiB, errFileNotOverBlock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.total, tc.fileMax, tc.blockMax, "/m", "T")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want=%v", err, tc.wantErr)
			}
		})
	}
}

// TestPlan_LargeVolumeOffsetsDoNotWrap verifies 64-bit offset arithmetic on
// a multi-terabyte layout. No I/O happens at plan time, so this is cheap.
func TestPlan_LargeVolumeOffsetsDoNotWrap(t *testing.T) {
	const fourTiB = int64(4) << 40

	layout, err := Plan(fourTiB, DefaultFileSizeMax, DefaultBlockSizeMax, "/m", "T")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	last := layout.Files[len(layout.Files)-1]

	if last.Offset <= 0 {
		t.Fatalf("last file offset=%d, want positive (overflow?)", last.Offset)
	}

	if got, want := last.End, fourTiB; got != want {
		t.Fatalf("last file end=%d, want=%d", got, want)
	}
}
