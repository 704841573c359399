// Package fsutil wraps the low-level POSIX calls the engine needs:
// filesystem free-space queries, page-cache advice, direct I/O, and
// durability syncs. These are treated as an external collaborator the
// core engine consumes through this small interface (spec.md §1), kept
// isolated so the registry and engine packages never import
// golang.org/x/sys/unix directly.
package fsutil

import (
	"errors"
	"math/rand"
	"os"

	"golang.org/x/sys/unix"
)

// Usage reports a filesystem's total and free byte counts.
type Usage struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Used returns TotalBytes-FreeBytes, saturating at zero.
func (u Usage) Used() uint64 {
	if u.FreeBytes > u.TotalBytes {
		return 0
	}
	return u.TotalBytes - u.FreeBytes
}

// DiskUsage statfs(2)s the filesystem containing path and returns its
// total and free byte counts.
func DiskUsage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, err
	}
	bs := uint64(st.Bsize) //nolint:unconvert // Bsize is int64 on some GOARCH
	return Usage{
		TotalBytes: uint64(st.Blocks) * bs,
		FreeBytes:  uint64(st.Bavail) * bs,
	}, nil
}

// CoinFlipDirect reports whether O_DIRECT should be OR'd into an open
// call this time, per spec.md §4.3's "random coin" policy: a 50/50
// chance, evaluated fresh for every open when direct-io is enabled.
func CoinFlipDirect(directIOEnabled bool, rng *rand.Rand) bool {
	if !directIOEnabled {
		return false
	}
	return rng.Intn(2) == 0
}

// OpenFlags builds the os.OpenFile flags for a write or read open,
// optionally OR'ing in O_DIRECT.
func OpenFlags(base int, direct bool) int {
	if direct {
		return base | unix.O_DIRECT
	}
	return base
}

// FadviseDontNeed hints the kernel to drop path's pages for fd from the
// page cache, so later reads re-fetch from disk rather than cache.
func FadviseDontNeed(f *os.File, offset, length int64) error {
	return unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_DONTNEED)
}

// FadviseNoReuse hints the kernel that fd's data will not be reused
// soon, issued before a verification read (spec.md §4.3 step 3).
func FadviseNoReuse(f *os.File, offset, length int64) error {
	return unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_NOREUSE)
}

// Fdatasync flushes fd's data (not necessarily metadata) to disk.
func Fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

// IsENOSPC reports whether err is ENOSPC (out of disk space), the
// transient condition the writer tolerates per spec.md §4.3 step 4 and
// §7 taxonomy item 2.
func IsENOSPC(err error) bool {
	return errors.Is(err, unix.ENOSPC)
}

// IsEIO reports whether err is EIO, logged as a possible "Lustre
// eviction" in the original (original_source/file.cc). No caller in
// this module gives EIO special handling: a write or read that fails
// with EIO is reported as a fatal error like any other non-ENOSPC
// failure.
func IsEIO(err error) bool {
	return errors.Is(err, unix.EIO)
}
