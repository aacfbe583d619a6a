package tester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"sync/atomic"
	"time"

	"voltest/internal/fs"
)

const testFilePerms = 0o644

var (
	// ErrFailed is returned by [Tester.Run] when the media failed the test.
	ErrFailed = errors.New("volume test failed")
	// ErrCanceled is returned by [Tester.Run] when the host canceled the run.
	ErrCanceled = errors.New("volume test canceled")
	// ErrVolumeFull is returned by [Tester.Run] when no space is available.
	ErrVolumeFull = errors.New("no space available to test")

	errRunInProgress = errors.New("a test run is already in progress")
)

// Options configures a [Tester].
type Options struct {
	// FileSizeMax caps test file sizes. Must be a positive multiple of
	// [MiB] and larger than BlockSizeMax. Defaults to [DefaultFileSizeMax].
	FileSizeMax int64

	// BlockSizeMax caps write/verify unit sizes. Must be a positive
	// multiple of [MiB]. Defaults to [DefaultBlockSizeMax].
	BlockSizeMax int64

	// Prefix names the test files (prefix + index).
	// Defaults to [DefaultFilePrefix].
	Prefix string

	// Listener receives progress and outcome events. Defaults to a no-op.
	Listener Listener
}

// Tester fills a directory's available space with test files, writes a
// pattern across them, and verifies the readback.
//
// A Tester supports one run at a time. The cancellation flag may be set from
// any goroutine via [Tester.Cancel]; everything else is owned by the
// goroutine inside [Tester.Run].
type Tester struct {
	fs       fs.FS
	dir      string
	fileMax  int64
	blockMax int64
	prefix   string
	listener Listener

	canceled atomic.Bool
	running  atomic.Bool

	// Run-scoped state below. Reset at the start of every run and touched
	// only by the worker goroutine.
	layout       Layout
	pattern      []byte
	failure      Failure
	bytesTotal   int64
	bytesWritten int64
	scratch      []byte
	readBuf      []byte
}

// New creates a Tester that operates on the root of dir through fsys.
func New(fsys fs.FS, dir string, opts Options) *Tester {
	if opts.FileSizeMax == 0 {
		opts.FileSizeMax = DefaultFileSizeMax
	}

	if opts.BlockSizeMax == 0 {
		opts.BlockSizeMax = DefaultBlockSizeMax
	}

	if opts.Prefix == "" {
		opts.Prefix = DefaultFilePrefix
	}

	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}

	return &Tester{
		fs:       fsys,
		dir:      dir,
		fileMax:  opts.FileSizeMax,
		blockMax: opts.BlockSizeMax,
		prefix:   opts.Prefix,
		listener: opts.Listener,
	}
}

// Cancel requests the current run to stop at its next checkpoint. Safe to
// call from any goroutine at any time. The run winds down gracefully: bytes
// already written are not rolled back, and test files are removed normally.
func (t *Tester) Cancel() {
	t.canceled.Store(true)
}

// Failure returns the accumulated failure flags of the last run. Only valid
// after [Tester.Run] has returned.
func (t *Tester) Failure() Failure {
	return t.failure
}

// Progress returns the bytes targeted and the bytes written so far by the
// write phase of the current or last run.
func (t *Tester) Progress() (total, written int64) {
	return t.bytesTotal, t.bytesWritten
}

// Run executes one full test over totalBytes of space: initialize all test
// files (with boundary quick test), write the pattern, verify the readback.
//
// Returns nil on success, [ErrVolumeFull] when totalBytes is not positive,
// [ErrCanceled] when the host canceled, and an error wrapping [ErrFailed]
// when the media failed. Created files are removed before Run returns, no
// matter the outcome. Cancellation via ctx and via [Tester.Cancel] are
// equivalent; both are observed at block and file checkpoints only, never
// mid-I/O-call.
func (t *Tester) Run(ctx context.Context, totalBytes int64) error {
	if !t.running.CompareAndSwap(false, true) {
		return errRunInProgress
	}
	defer t.running.Store(false)

	t.canceled.Store(false)
	t.failure = 0
	t.bytesTotal = totalBytes
	t.bytesWritten = 0

	if totalBytes <= 0 {
		t.failure |= FailFull
		t.listener.Failed(t.failure)
		t.listener.Finished()

		return ErrVolumeFull
	}

	layout, err := Plan(totalBytes, t.fileMax, t.blockMax, t.dir, t.prefix)
	if err != nil {
		// Precondition violation; not a media verdict, so no failure event.
		return err
	}

	t.layout = layout
	t.pattern = newPattern(t.blockMax)
	t.scratch = make([]byte, t.blockMax)
	t.readBuf = make([]byte, t.blockMax)

	// One handle per file for the whole run. Handles close before the files
	// are deleted, on every exit path.
	files := make([]fs.File, len(layout.Files))

	defer t.deleteFiles()
	defer closeAll(files)

	if t.initialize(ctx, files) && t.writeFull(ctx, files) && t.verifyFull(ctx, files) {
		t.listener.Succeeded()
		t.listener.Finished()

		return nil
	}

	t.listener.Failed(t.failure)
	t.listener.Finished()

	if t.failure == FailAborted {
		return ErrCanceled
	}

	return fmt.Errorf("%w (%s)", ErrFailed, t.failure)
}

// initialize creates every test file, writes its tag and sentinel byte, and
// re-reads both immediately: a lost file is cheaper to detect per-file than
// after the whole volume is queued. A second boundary-only pass over all
// files (the quick test) then catches media that only drops earlier writes
// once capacity pressure builds, or later files aliasing over earlier ones.
func (t *Tester) initialize(ctx context.Context, files []fs.File) bool {
	t.listener.InitializationStarted(t.bytesTotal)

	var initializedMB, initializedSec float64

	for i := range t.layout.Files {
		spec := &t.layout.Files[i]

		file, err := t.fs.OpenFile(spec.Path, os.O_RDWR|os.O_CREATE, testFilePerms)
		if err != nil {
			t.failure |= FailCreate
			if errors.Is(err, iofs.ErrPermission) {
				t.failure |= FailPermissions
			}

			t.listener.CreateFailed(i, spec.Offset)

			return false
		}

		files[i] = file

		start := time.Now()

		// File tag at the start.
		if !writeAt(file, 0, spec.Tag) {
			t.failure |= FailWrite
			t.listener.WriteFailed(spec.Offset, spec.Size)

			return false
		}

		// Grow to the planned size. Whether the filesystem allocates
		// eagerly or sparsely is its business; verification does not care.
		if err := file.Truncate(spec.Size); err != nil {
			t.failure |= FailWrite | FailResize
			t.listener.WriteFailed(spec.Offset, spec.Size)

			return false
		}

		// Sentinel byte at the last offset.
		if !writeAt(file, spec.Size-1, []byte{sentinelByte}) {
			t.failure |= FailWrite
			t.listener.WriteFailed(spec.Offset, spec.Size)

			return false
		}

		initializedSec += time.Since(start).Seconds()
		initializedMB += float64(spec.Size) / MiB
		t.listener.Initialized(spec.End, avgSpeed(initializedMB, initializedSec))

		if !t.checkBoundaries(file, spec) {
			return false
		}

		if t.cancelRequested(ctx) {
			return false
		}
	}

	// Quick test.
	for i := range t.layout.Files {
		if !t.checkBoundaries(files[i], &t.layout.Files[i]) {
			return false
		}

		if t.cancelRequested(ctx) {
			return false
		}
	}

	return true
}

// writeFull writes the pattern to every block of every file, in order.
func (t *Tester) writeFull(ctx context.Context, files []fs.File) bool {
	t.listener.WriteStarted()

	var writtenMB, writtenSec float64

	for i := range t.layout.Files {
		spec := &t.layout.Files[i]
		file := files[i]

		// Push initialization leftovers out of the cache. Best effort: a
		// flush failure is not a media verdict, the verify phase re-reads
		// everything independently.
		_ = file.Sync()

		for j := range spec.Blocks {
			block := &spec.Blocks[j]
			data := t.blockData(i, j)

			start := time.Now()

			if !writeAt(file, block.RelOffset, data) {
				t.failure |= FailWrite
				t.listener.WriteFailed(block.AbsOffset, block.Size)

				return false
			}

			_ = file.Sync()

			writtenSec += time.Since(start).Seconds()
			writtenMB += float64(block.Size) / MiB
			t.bytesWritten += block.Size
			t.listener.Written(block.AbsEnd, avgSpeed(writtenMB, writtenSec))

			if t.cancelRequested(ctx) {
				return false
			}
		}
	}

	return true
}

// verifyFull reads every block back and compares it byte-for-byte against
// the content the write phase derived.
func (t *Tester) verifyFull(ctx context.Context, files []fs.File) bool {
	t.listener.VerifyStarted()

	var verifiedMB, verifiedSec float64

	for i := range t.layout.Files {
		spec := &t.layout.Files[i]
		file := files[i]

		// Keep reads honest on platforms where the write cache could
		// otherwise satisfy them without touching the media.
		_ = file.Sync()

		for j := range spec.Blocks {
			block := &spec.Blocks[j]
			expected := t.blockData(i, j)

			start := time.Now()

			got := t.readBuf[:block.Size]
			if !readAt(file, block.RelOffset, got) || !bytes.Equal(got, expected) {
				t.failure |= FailVerify
				t.listener.VerifyFailed(block.AbsOffset, block.Size)

				return false
			}

			verifiedSec += time.Since(start).Seconds()
			verifiedMB += float64(block.Size) / MiB
			t.listener.Verified(block.AbsEnd, avgSpeed(verifiedMB, verifiedSec))

			if t.cancelRequested(ctx) {
				return false
			}
		}
	}

	return true
}

// checkBoundaries verifies a file's sentinel byte and tag in place.
func (t *Tester) checkBoundaries(file fs.File, spec *FileSpec) bool {
	var last [1]byte
	if !readAt(file, spec.Size-1, last[:]) || last[0] != sentinelByte {
		t.failure |= FailVerify
		t.listener.VerifyFailed(spec.Offset, spec.Size)

		return false
	}

	tag := make([]byte, len(spec.Tag))
	if !readAt(file, 0, tag) || !bytes.Equal(tag, spec.Tag) {
		t.failure |= FailVerify
		t.listener.VerifyFailed(spec.Offset, spec.Size)

		return false
	}

	return true
}

// blockData derives the content of block j of file i: the shared pattern
// truncated to the block size, with the block's tag overlaid at the start
// when the block is at least tag-sized. Deterministic within a run.
//
// The returned slice aliases an internal scratch buffer and is only valid
// until the next call.
func (t *Tester) blockData(i, j int) []byte {
	block := &t.layout.Files[i].Blocks[j]

	data := t.scratch[:block.Size]
	copy(data, t.pattern[:block.Size])

	if block.Size >= int64(len(block.Tag)) {
		copy(data, block.Tag)
	}

	return data
}

// cancelRequested polls the cancellation flag and context at a checkpoint.
func (t *Tester) cancelRequested(ctx context.Context) bool {
	if t.canceled.Load() || ctx.Err() != nil {
		t.failure |= FailAborted

		return true
	}

	return false
}

// avgSpeed guards the throughput division against a zero elapsed time.
func avgSpeed(mb, sec float64) float64 {
	if sec == 0 {
		return 0
	}

	return mb / sec
}

// writeAt seeks to off and writes all of p. Short writes count as failures.
func writeAt(file fs.File, off int64, p []byte) bool {
	if _, err := file.Seek(off, io.SeekStart); err != nil {
		return false
	}

	n, err := file.Write(p)

	return err == nil && n == len(p)
}

// readAt seeks to off and fills all of p. Short reads count as failures.
func readAt(file fs.File, off int64, p []byte) bool {
	if _, err := file.Seek(off, io.SeekStart); err != nil {
		return false
	}

	_, err := io.ReadFull(file, p)

	return err == nil
}

func closeAll(files []fs.File) {
	for _, file := range files {
		if file != nil {
			_ = file.Close()
		}
	}
}
