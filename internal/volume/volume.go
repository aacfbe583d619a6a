// Package volume answers questions about mounted filesystems: whether a path
// is a mountpoint, how much space it has, which volumes are mounted, and
// whether a previous crashed test left files behind.
//
// It is the host-filesystem collaborator of the tester core; the core itself
// never queries capacity or mount state.
package volume

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"voltest/internal/fs"
)

// ErrNotMountpoint reports that a path exists but is not a filesystem root.
var ErrNotMountpoint = errors.New("not a mountpoint")

const mountsFile = "/proc/self/mounts"

// Space holds capacity numbers for a mounted filesystem, in bytes.
type Space struct {
	Total     int64
	Used      int64
	Available int64
}

// Usage returns the capacity numbers for the filesystem containing path.
func Usage(path string) (Space, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Space{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	unit := stat.Frsize
	if unit <= 0 {
		unit = stat.Bsize
	}

	return Space{
		Total:     int64(stat.Blocks) * unit,
		Used:      int64(stat.Blocks-stat.Bfree) * unit,
		Available: int64(stat.Bavail) * unit,
	}, nil
}

// IsMountpoint reports whether path is the root of a mounted filesystem.
//
// A mountpoint lives on a different device than its parent directory; the
// filesystem root "/" is its own parent and always a mountpoint. Bind mounts
// of the same device are not detected, which is fine for whole-volume
// testing where the mount spans one physical device.
func IsMountpoint(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	var stat unix.Stat_t
	if err := unix.Stat(abs, &stat); err != nil {
		return false, fmt.Errorf("stat %s: %w", abs, err)
	}

	parent := filepath.Dir(abs)
	if parent == abs {
		return true, nil
	}

	var parentStat unix.Stat_t
	if err := unix.Stat(parent, &parentStat); err != nil {
		return false, fmt.Errorf("stat %s: %w", parent, err)
	}

	return stat.Dev != parentStat.Dev, nil
}

// Mount describes one mounted filesystem.
type Mount struct {
	// Path is the mountpoint.
	Path string
	// Device is the mounted source (e.g. /dev/sdb1).
	Device string
	// Type is the filesystem type (e.g. vfat, ext4).
	Type string
}

// pseudoTypes are kernel-internal filesystems that cannot hold test files.
var pseudoTypes = map[string]bool{
	"autofs":      true,
	"binfmt_misc": true,
	"bpf":         true,
	"cgroup":      true,
	"cgroup2":     true,
	"configfs":    true,
	"debugfs":     true,
	"devpts":      true,
	"devtmpfs":    true,
	"fusectl":     true,
	"hugetlbfs":   true,
	"mqueue":      true,
	"proc":        true,
	"pstore":      true,
	"securityfs":  true,
	"sysfs":       true,
	"tracefs":     true,
}

// Mountpoints returns the mounted volumes that could hold test files,
// in mount order.
func Mountpoints(fsys fs.FS) ([]Mount, error) {
	data, err := fsys.ReadFile(mountsFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", mountsFile, err)
	}

	return parseMounts(data), nil
}

// parseMounts parses /proc/self/mounts content: one mount per line,
// whitespace-separated fields, octal escapes in paths.
func parseMounts(data []byte) []Mount {
	var mounts []Mount

	for line := range strings.Lines(string(data)) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		device, path, fsType := fields[0], fields[1], fields[2]
		if pseudoTypes[fsType] {
			continue
		}

		mounts = append(mounts, Mount{
			Path:   unescapeMountPath(path),
			Device: device,
			Type:   fsType,
		})
	}

	return mounts
}

// unescapeMountPath decodes the \040-style octal escapes the kernel uses for
// spaces, tabs, newlines and backslashes in mount paths.
func unescapeMountPath(path string) string {
	if !strings.Contains(path, `\`) {
		return path
	}

	var b strings.Builder

	for i := 0; i < len(path); i++ {
		if path[i] == '\\' && i+3 < len(path) {
			octal := path[i+1 : i+4]
			if n, ok := parseOctal(octal); ok {
				b.WriteByte(n)
				i += 3

				continue
			}
		}

		b.WriteByte(path[i])
	}

	return b.String()
}

func parseOctal(s string) (byte, bool) {
	var n int

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return 0, false
		}

		n = n*8 + int(s[i]-'0')
	}

	return byte(n), true
}

// RootEntries returns the names of the entries at the root of dir,
// non-recursively, with directories suffixed by "/".
func RootEntries(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}

		names = append(names, name)
	}

	return names, nil
}

// ConflictFiles returns the root entries of dir whose names carry the test
// file prefix. A test must not start while any exist: they are either
// leftovers from a crashed run or someone else's data that a run would
// destroy.
func ConflictFiles(fsys fs.FS, dir, prefix string) ([]string, error) {
	names, err := RootEntries(fsys, dir)
	if err != nil {
		return nil, err
	}

	var conflicts []string

	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			conflicts = append(conflicts, name)
		}
	}

	return conflicts, nil
}

// Label returns a display label for a mountpoint: the path plus filesystem
// type and device when known.
func Label(fsys fs.FS, path string) string {
	mounts, err := Mountpoints(fsys)
	if err != nil {
		return path
	}

	for _, m := range mounts {
		if m.Path == path {
			return fmt.Sprintf("%s: %s (%s)", m.Path, m.Type, m.Device)
		}
	}

	return path
}
