package fs

import (
	"errors"
	"os"
	"sync"
)

// Op identifies a filesystem operation kind for fault scripting.
type Op string

// Operation kinds that [Faulty] can intercept.
const (
	OpOpen     Op = "open"
	OpRead     Op = "read"
	OpWrite    Op = "write"
	OpSeek     Op = "seek"
	OpTruncate Op = "truncate"
	OpSync     Op = "sync"
	OpRemove   Op = "remove"
	OpReadDir  Op = "readdir"
)

// Fault describes one scripted failure or data corruption.
//
// A fault matches an operation when the kind matches, the path matches
// (empty Path matches any path), and the operation is the Nth matching
// occurrence (Nth == 0 matches every occurrence).
type Fault struct {
	// Op is the operation kind to intercept.
	Op Op

	// Path restricts the fault to a single file. Empty matches any path.
	Path string

	// Nth is the 1-based occurrence of the matching operation to fail.
	// Zero means every matching occurrence.
	Nth int

	// Err is the error to return. It is wrapped in [InjectedError] so tests
	// can distinguish injected failures from real environment failures.
	// Use [os.ErrPermission] to exercise permission-class handling.
	Err error

	// Corrupt flips the first byte transferred instead of returning an
	// error. Only meaningful for OpRead; simulates media returning wrong
	// data on readback.
	Corrupt bool
}

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error { return e.Err }

// IsInjected reports whether err (or any wrapped error) was injected by
// [Faulty]. Returns false if err is nil.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and injects scripted failures for testing.
//
// Unlike random fault injection, every fault is placed deliberately, so a
// test can fail exactly the third write to exactly one file and assert how
// the caller reacts. Operations without a matching fault pass through to
// the underlying filesystem unchanged.
//
// Faulty is safe for concurrent use.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults []Fault
	counts map[opKey]int
}

type opKey struct {
	op   Op
	path string
}

// NewFaulty creates a [Faulty] wrapping fsys with the given fault script.
func NewFaulty(fsys FS, faults ...Fault) *Faulty {
	return &Faulty{
		fs:     fsys,
		faults: faults,
		counts: make(map[opKey]int),
	}
}

// AddFault appends a fault to the script at runtime.
func (f *Faulty) AddFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults = append(f.faults, fault)
}

// check records one occurrence of op on path and returns the matching fault,
// if any.
func (f *Faulty) check(op Op, path string) *Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counts[opKey{op, path}]++

	for i := range f.faults {
		fault := &f.faults[i]
		if fault.Op != op {
			continue
		}

		if fault.Path != "" && fault.Path != path {
			continue
		}

		// Occurrence counting is per (op, path) as observed by the caller;
		// a fault with an empty Path counts occurrences across all paths.
		n := f.counts[opKey{op, path}]
		if fault.Path == "" {
			n = f.totalLocked(op)
		}

		if fault.Nth == 0 || fault.Nth == n {
			return fault
		}
	}

	return nil
}

func (f *Faulty) totalLocked(op Op) int {
	total := 0

	for key, n := range f.counts {
		if key.op == op {
			total += n
		}
	}

	return total
}

func inject(err error) error {
	return &InjectedError{Err: err}
}

// --- FS implementation ---

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if fault := f.check(OpOpen, path); fault != nil {
		return nil, inject(fault.Err)
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{parent: f, path: path, file: file}, nil
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if fault := f.check(OpRead, path); fault != nil {
		return nil, inject(fault.Err)
	}

	return f.fs.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if fault := f.check(OpWrite, path); fault != nil {
		return inject(fault.Err)
	}

	return f.fs.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if fault := f.check(OpReadDir, path); fault != nil {
		return nil, inject(fault.Err)
	}

	return f.fs.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	return f.fs.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if fault := f.check(OpRemove, path); fault != nil {
		return inject(fault.Err)
	}

	return f.fs.Remove(path)
}

// --- File implementation ---

// faultyFile consults the parent [Faulty] before every file operation.
type faultyFile struct {
	parent *Faulty
	path   string
	file   File
}

func (f *faultyFile) Read(p []byte) (int, error) {
	if fault := f.parent.check(OpRead, f.path); fault != nil {
		if fault.Corrupt {
			n, err := f.file.Read(p)
			if n > 0 {
				p[0] ^= 0xFF
			}

			return n, err
		}

		return 0, inject(fault.Err)
	}

	return f.file.Read(p)
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if fault := f.parent.check(OpWrite, f.path); fault != nil {
		return 0, inject(fault.Err)
	}

	return f.file.Write(p)
}

func (f *faultyFile) Seek(offset int64, whence int) (int64, error) {
	if fault := f.parent.check(OpSeek, f.path); fault != nil {
		return 0, inject(fault.Err)
	}

	return f.file.Seek(offset, whence)
}

func (f *faultyFile) Truncate(size int64) error {
	if fault := f.parent.check(OpTruncate, f.path); fault != nil {
		return inject(fault.Err)
	}

	return f.file.Truncate(size)
}

func (f *faultyFile) Sync() error {
	if fault := f.parent.check(OpSync, f.path); fault != nil {
		return inject(fault.Err)
	}

	return f.file.Sync()
}

func (f *faultyFile) Stat() (os.FileInfo, error) {
	return f.file.Stat()
}

func (f *faultyFile) Close() error {
	return f.file.Close()
}

// Compile-time interface checks.
var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)
