package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"voltest/internal/fs"
)

// TestUsage_ReportsPlausibleNumbers sanity-checks statfs plumbing against
// the filesystem hosting the temp dir.
func TestUsage_ReportsPlausibleNumbers(t *testing.T) {
	space, err := Usage(t.TempDir())
	require.NoError(t, err)

	require.Positive(t, space.Total)
	require.GreaterOrEqual(t, space.Available, int64(0))
	require.GreaterOrEqual(t, space.Used, int64(0))
	require.LessOrEqual(t, space.Available, space.Total)
}

// TestUsage_FailsForMissingPath verifies the error path.
func TestUsage_FailsForMissingPath(t *testing.T) {
	_, err := Usage(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

// TestIsMountpoint_RootIsAlwaysAMountpoint pins the parent-of-itself case.
func TestIsMountpoint_RootIsAlwaysAMountpoint(t *testing.T) {
	mounted, err := IsMountpoint("/")
	require.NoError(t, err)
	require.True(t, mounted)
}

// TestIsMountpoint_TempDirIsNot verifies an ordinary directory on the same
// device as its parent is rejected.
func TestIsMountpoint_TempDirIsNot(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	mounted, err := IsMountpoint(sub)
	require.NoError(t, err)
	require.False(t, mounted)
}

// TestParseMounts_SkipsPseudoFilesystems verifies /proc/self/mounts parsing,
// including octal escapes in paths.
func TestParseMounts_SkipsPseudoFilesystems(t *testing.T) {
	data := []byte(`proc /proc proc rw,nosuid 0 0
sysfs /sys sysfs rw 0 0
/dev/sda2 / ext4 rw,relatime 0 0
/dev/sdb1 /media/USB\040DRIVE vfat rw 0 0
tmpfs /tmp tmpfs rw 0 0
garbage-line
`)

	mounts := parseMounts(data)

	require.Equal(t, []Mount{
		{Path: "/", Device: "/dev/sda2", Type: "ext4"},
		{Path: "/media/USB DRIVE", Device: "/dev/sdb1", Type: "vfat"},
		{Path: "/tmp", Device: "tmpfs", Type: "tmpfs"},
	}, mounts)
}

// TestMountpoints_ReadsProcMounts verifies the live read path returns at
// least the root filesystem.
func TestMountpoints_ReadsProcMounts(t *testing.T) {
	mounts, err := Mountpoints(fs.NewReal())
	require.NoError(t, err)
	require.NotEmpty(t, mounts)
}

// TestRootEntries_MarksDirectories verifies the non-recursive listing with
// the trailing-slash convention for directories.
func TestRootEntries_MarksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	names, err := RootEntries(fs.NewReal(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "sub/"}, names)
}

// TestConflictFiles_MatchesPrefixOnly verifies leftover detection picks up
// exactly the files carrying the test prefix.
func TestConflictFiles_MatchesPrefixOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VOLTEST0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VOLTEST12"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), nil, 0o644))

	conflicts, err := ConflictFiles(fs.NewReal(), dir, "VOLTEST")
	require.NoError(t, err)
	require.Equal(t, []string{"VOLTEST0", "VOLTEST12"}, conflicts)
}

// TestConflictFiles_EmptyOnCleanVolume verifies a clean volume reports no
// conflicts.
func TestConflictFiles_EmptyOnCleanVolume(t *testing.T) {
	conflicts, err := ConflictFiles(fs.NewReal(), t.TempDir(), "VOLTEST")
	require.NoError(t, err)
	require.Empty(t, conflicts)
}
