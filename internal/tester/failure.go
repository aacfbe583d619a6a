package tester

import "strings"

// Failure is a bitmask of reasons a run failed. Flags combine: a run that
// cannot create a file due to permissions carries both FailCreate and
// FailPermissions.
type Failure uint32

// Failure flags.
const (
	// FailCreate means a test file could not be opened or created.
	FailCreate Failure = 1 << iota
	// FailPermissions refines FailCreate: the filesystem reported a
	// permission-class error.
	FailPermissions
	// FailWrite means a write did not complete fully.
	FailWrite
	// FailResize refines FailWrite: growing a file to its planned size
	// failed, as opposed to a data write.
	FailResize
	// FailVerify means a readback did not match the expected content, or a
	// read or seek failed during verification.
	FailVerify
	// FailFull means the volume reported zero or negative available space
	// before any work started.
	FailFull
	// FailAborted means the run was canceled by the host.
	FailAborted
)

// Has reports whether all bits of flag are set.
func (f Failure) Has(flag Failure) bool {
	return f&flag == flag
}

func (f Failure) String() string {
	if f == 0 {
		return "none"
	}

	names := []struct {
		flag Failure
		name string
	}{
		{FailCreate, "create"},
		{FailPermissions, "permissions"},
		{FailWrite, "write"},
		{FailResize, "resize"},
		{FailVerify, "verify"},
		{FailFull, "full"},
		{FailAborted, "aborted"},
	}

	var parts []string

	for _, n := range names {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}

	return strings.Join(parts, "+")
}
