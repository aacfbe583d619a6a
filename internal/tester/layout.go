// Package tester implements the fill/verify engine that detects counterfeit
// or failing storage media.
//
// A [Tester] fills a mounted, otherwise-empty filesystem with test files,
// writes a synthetic pattern across all of them, and reads everything back.
// Counterfeit media advertises more capacity than it has and silently drops
// or aliases writes beyond the real limit; the readback exposes that.
//
// The main types are:
//   - [Layout], [FileSpec], [BlockSpec]: the partition of the space under test
//   - [Tester]: the three-phase engine (initialize, write, verify)
//   - [Listener]: receives progress and outcome events
//   - [Failure]: combinable flags describing why a run failed
package tester

import (
	"errors"
	"fmt"
	"path/filepath"
)

// MiB is the alignment unit for file and block sizes.
const MiB = 1 << 20

// Reference sizing. Sizes are multiples of [MiB]; a file holds many blocks.
const (
	DefaultFileSizeMax  = 512 * MiB
	DefaultBlockSizeMax = 16 * MiB
)

// DefaultFilePrefix is prepended to the sequential index to form test file
// names. Leftover files with this prefix indicate a crashed earlier run.
const DefaultFilePrefix = "VOLTEST"

var (
	errTotalNotPositive = errors.New("total bytes must be positive")
	errFileSizeInvalid  = errors.New("max file size must be a positive multiple of 1 MiB")
	errBlockSizeInvalid = errors.New("max block size must be a positive multiple of 1 MiB")
	errFileNotOverBlock = errors.New("max file size must be larger than max block size")
)

// BlockSpec is one write/verify unit within a test file.
type BlockSpec struct {
	// RelOffset is the block's offset relative to the start of its file.
	RelOffset int64
	// AbsOffset is the block's offset in the whole space under test.
	AbsOffset int64
	// Size is the block length in bytes.
	Size int64
	// AbsEnd is AbsOffset + Size.
	AbsEnd int64
	// Tag uniquely identifies this block's intended position.
	Tag []byte
}

// FileSpec is one test file: a contiguous slice of the space under test,
// subdivided into blocks.
type FileSpec struct {
	// Path is where the file is created (prefix + index under the test dir).
	Path string
	// Index is the file's position in the layout.
	Index int
	// Offset is the file's start in the whole space under test.
	Offset int64
	// Size is the file length in bytes.
	Size int64
	// End is Offset + Size.
	End int64
	// Tag uniquely identifies this file's intended position.
	Tag []byte
	// Blocks partition [0, Size) in ascending RelOffset order.
	Blocks []BlockSpec
}

// Layout is the full test plan: an ordered sequence of files covering
// [0, TotalBytes) exactly once.
//
// A Layout is created once per run by [Plan], is immutable afterwards, and is
// owned by a single [Tester] until cleanup discards it.
type Layout struct {
	// TotalBytes is the number of bytes the layout covers.
	TotalBytes int64
	// Files are ordered by ascending Offset, contiguous and non-overlapping.
	Files []FileSpec
}

// Plan partitions totalBytes into files of at most fileSizeMax bytes, each
// subdivided into blocks of at most blockSizeMax bytes. Every file and block
// gets the maximum size except the last one of its kind, which takes the
// remainder when the division is not exact.
//
// fileSizeMax and blockSizeMax must be positive multiples of [MiB] with
// fileSizeMax > blockSizeMax; violations are programming errors and reported
// as such. All offsets are computed in 64-bit arithmetic so multi-terabyte
// volumes cannot wrap.
func Plan(totalBytes, fileSizeMax, blockSizeMax int64, dir, prefix string) (Layout, error) {
	if totalBytes <= 0 {
		return Layout{}, fmt.Errorf("%w: %d", errTotalNotPositive, totalBytes)
	}

	if fileSizeMax <= 0 || fileSizeMax%MiB != 0 {
		return Layout{}, fmt.Errorf("%w: %d", errFileSizeInvalid, fileSizeMax)
	}

	if blockSizeMax <= 0 || blockSizeMax%MiB != 0 {
		return Layout{}, fmt.Errorf("%w: %d", errBlockSizeInvalid, blockSizeMax)
	}

	if fileSizeMax <= blockSizeMax {
		return Layout{}, fmt.Errorf("%w: %d <= %d", errFileNotOverBlock, fileSizeMax, blockSizeMax)
	}

	fileCount := totalBytes / fileSizeMax

	lastFileSize := totalBytes % fileSizeMax
	if lastFileSize != 0 {
		fileCount++
	}

	layout := Layout{
		TotalBytes: totalBytes,
		Files:      make([]FileSpec, 0, fileCount),
	}

	for i := int64(0); i < fileCount; i++ {
		size := fileSizeMax
		if i == fileCount-1 && lastFileSize != 0 {
			size = lastFileSize
		}

		// Offset from the maximum file size, not the current one: only the
		// last file may be undersized, so earlier files all span fileSizeMax.
		offset := i * fileSizeMax

		file := FileSpec{
			Path:   filepath.Join(dir, fmt.Sprintf("%s%d", prefix, i)),
			Index:  int(i),
			Offset: offset,
			Size:   size,
			End:    offset + size,
			Tag:    fileTag(int(i)),
		}

		file.Blocks = planBlocks(&file, blockSizeMax)

		layout.Files = append(layout.Files, file)
	}

	return layout, nil
}

// planBlocks partitions one file into blocks using the same remainder rule
// as the file partition.
func planBlocks(file *FileSpec, blockSizeMax int64) []BlockSpec {
	blockCount := file.Size / blockSizeMax

	lastBlockSize := file.Size % blockSizeMax
	if lastBlockSize != 0 {
		blockCount++
	}

	blocks := make([]BlockSpec, 0, blockCount)

	for j := int64(0); j < blockCount; j++ {
		size := blockSizeMax
		if j == blockCount-1 && lastBlockSize != 0 {
			size = lastBlockSize
		}

		rel := j * blockSizeMax

		blocks = append(blocks, BlockSpec{
			RelOffset: rel,
			AbsOffset: file.Offset + rel,
			Size:      size,
			AbsEnd:    file.Offset + rel + size,
			Tag:       blockTag(file.Index, int(j)),
		})
	}

	return blocks
}
