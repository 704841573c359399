// Package registry implements the file record, the live-file registry,
// and the space governor described in spec.md §4.3 and §4.4: a File is
// one on-disk file with its lock and verification state; a Registry is
// the ordered, append-mostly sequence of live files both workers share;
// Governor (its Reclaim method) is the space governor that deletes
// random files to keep usage under the configured goal.
package registry

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/bsbernd/ql-fstest/internal/fsutil"
	"github.com/bsbernd/ql-fstest/internal/payload"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

// ErrFatal wraps an error that spec.md §7 classifies as fatal: the
// caller should terminate the process rather than continue the run.
var ErrFatal = errors.New("fatal filesystem stress error")

// Logger receives diagnostic and informational lines, matching
// spec.md §6's stdout/stderr banner, level-change, and corruption text.
type Logger interface {
	Logf(format string, args ...any)
}

// File is one on-disk test file and its verification state
// (spec.md §3 "File record").
type File struct {
	lockCh chan struct{} // buffered(1): receive = locked, send = unlock

	Name       string
	Size       uint64
	Pattern    uint32
	Dir        tree.Index
	CreateTime time.Time

	NumChecks  int
	SyncFailed bool
	HasError   bool
	InDelete   bool
}

func newFile(name string, size uint64, pattern uint32, dir tree.Index) *File {
	f := &File{
		lockCh:  make(chan struct{}, 1),
		Name:    name,
		Size:    size,
		Pattern: pattern,
		Dir:     dir,
	}
	f.lockCh <- struct{}{}
	return f
}

// Lock acquires the file's exclusive lock, blocking until available.
func (f *File) Lock() { <-f.lockCh }

// Unlock releases the file's exclusive lock.
func (f *File) Unlock() { f.lockCh <- struct{}{} }

// TryLock attempts to acquire the file's lock without blocking. It
// reports whether the lock was acquired.
func (f *File) TryLock() bool {
	select {
	case <-f.lockCh:
		return true
	default:
		return false
	}
}

// SizeRange draws a target file size per spec.md §3: the exponent is
// uniform over [minBits, maxBits], and a uniform [0, 4096) byte jitter
// is added so most files are not exact powers of two.
func SizeRange(rng *rand.Rand, minBits, maxBits int) uint64 {
	exp := minBits
	if maxBits > minBits {
		exp += rng.Intn(maxBits - minBits + 1)
	}
	size := uint64(1) << uint(exp)
	jitter := uint64(rng.Intn(4096))
	return size + jitter
}

// Create draws a size and pattern, then creates an empty placeholder
// file under dir with a unique name, redrawing the pattern on an
// O_EXCL name collision (spec.md §4.3 step 1-4). The file on disk is
// empty; the caller must still call Write.
func Create(root string, tr *tree.Tree, dir tree.Index, rng *rand.Rand, minBits, maxBits int) (*File, error) {
	size := SizeRange(rng, minBits, maxBits)

	for {
		pattern := rng.Uint32()
		name := fmt.Sprintf("%x", pattern)

		path := tr.Path(dir) + name
		fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("%w: create %s: %v", ErrFatal, path, err)
		}
		_ = fd.Close()

		f := newFile(name, size, pattern, dir)
		tr.AddFile(dir, name)
		return f, nil
	}
}

// Write writes f's content (its pattern tiled out to f.Size), fsyncs,
// and optionally self-verifies, per spec.md §4.3 "Write". Caller must
// hold f's lock.
func Write(f *File, tr *tree.Tree, rng *rand.Rand, directIOEnabled, immediateVerify bool, log Logger) error {
	f.CreateTime = time.Now()

	path := tr.Path(f.Dir) + f.Name
	direct := fsutil.CoinFlipDirect(directIOEnabled, rng)

	fd, err := os.OpenFile(path, fsutil.OpenFlags(os.O_RDWR, direct), 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s for write: %v", ErrFatal, path, err)
	}
	defer func() {
		if cerr := fd.Close(); cerr != nil {
			f.SyncFailed = true
		}
	}()

	tile := make([]byte, payload.TileSize)
	payload.Fill(tile, f.Pattern)

	var written uint64
	for written < f.Size {
		chunk := tile
		remaining := f.Size - written
		if remaining < uint64(len(chunk)) {
			chunk = tile[:remaining]
		}

		offset := 0
		for offset < len(chunk) {
			n, werr := fd.Write(chunk[offset:])
			if werr != nil {
				if fsutil.IsENOSPC(werr) {
					log.Logf("%s: out of disk space, probably a race with another writer", path)
					f.SyncFailed = true
					written += uint64(offset)
					goto doneWriting
				}
				return fmt.Errorf("%w: write %s: %v", ErrFatal, path, werr)
			}
			offset += n
		}
		written += uint64(len(chunk))
	}

doneWriting:
	if err := fsutil.Fdatasync(fd); err != nil {
		f.SyncFailed = true
	}
	_ = fsutil.FadviseDontNeed(fd, 0, 0)

	if immediateVerify {
		if _, verr := fd.Seek(0, io.SeekStart); verr != nil {
			f.SyncFailed = true
		} else {
			ok, verr := verifyAndCount(f, fd, path, log)
			if verr != nil {
				return verr
			}
			if !ok {
				return fmt.Errorf("verification failed immediately after write: %s", path)
			}
		}
	}

	return nil
}

// Verify re-reads f's content and compares it against the tiled
// pattern, per spec.md §4.3 "Verification". Caller must hold f's lock.
// It returns false if corruption was detected and not masked by a
// prior sync failure.
func Verify(f *File, tr *tree.Tree, rng *rand.Rand, directIOEnabled bool, log Logger) (bool, error) {
	if f.HasError {
		return true, nil
	}

	path := tr.Path(f.Dir) + f.Name
	direct := fsutil.CoinFlipDirect(directIOEnabled, rng)

	fd, err := os.OpenFile(path, fsutil.OpenFlags(os.O_RDONLY, direct), 0)
	if err != nil {
		return false, fmt.Errorf("%w: open %s for verify: %v", ErrFatal, path, err)
	}
	defer fd.Close()

	_ = fsutil.FadviseNoReuse(fd, 0, 0)

	ok, verr := verifyAndCount(f, fd, path, log)

	_ = fsutil.FadviseDontNeed(fd, 0, 0)

	if verr != nil {
		return false, verr
	}
	return ok, nil
}

// verifyAndCount runs verifyReader against r and, per spec.md §4.3 step
// 5, bumps f.NumChecks whenever the read actually completed a check
// (success, or a mismatch masked by a prior sync failure) — shared by
// Verify and Write's immediate-check path so an immediate check counts
// toward the space governor's recheck budget (registry.go's
// maxRechecks) the same way a later Verify call would.
func verifyAndCount(f *File, r io.ReaderAt, path string, log Logger) (bool, error) {
	ok, err := verifyReader(f, r, path, log)
	if err != nil {
		return false, err
	}
	if ok || f.SyncFailed {
		f.NumChecks++
	}
	return ok, nil
}

// verifyReader reads f's content from r at explicit offsets (via
// pread-equivalent ReadAt, matching spec.md §4.3 step 4's "not relying
// on fd position") and compares each chunk to the tiled pattern. A
// non-EOF read error is a fatal syscall failure (spec.md §7 item 6),
// distinct from a content mismatch, and is returned as an error rather
// than folded into the bool result.
func verifyReader(f *File, r io.ReaderAt, path string, log Logger) (bool, error) {
	tile := make([]byte, payload.TileSize)
	payload.Fill(tile, f.Pattern)

	buf := make([]byte, payload.TileSize)

	var offset uint64
	for offset < f.Size {
		want := f.Size - offset
		if want > uint64(len(buf)) {
			want = uint64(len(buf))
		}

		n, err := r.ReadAt(buf[:want], int64(offset))
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("%w: read %s at offset %d: %v", ErrFatal, path, offset, err)
		}

		if uint64(n) < want {
			// Short read: either genuine EOF (file smaller than expected)
			// or (tolerated) the result of a prior ENOSPC-truncated write.
			if f.SyncFailed {
				return true, nil
			}
			f.HasError = true
			log.Logf("%s: file smaller than expected (created %s, pattern %#x)", path, f.CreateTime.Format(time.RFC3339), f.Pattern)
			return false, nil
		}

		cmp := min(uint64(len(tile)), want)
		if !payload.Matches(buf[:cmp], f.Pattern) {
			f.HasError = true
			diffs := payload.Compare(buf[:cmp], f.Pattern, int64(offset))
			log.Logf("%s: corruption around offset %d [pattern=%#x] after %d checks", path, offset, f.Pattern, f.NumChecks)
			for _, d := range diffs {
				log.Logf("  expected: %#x, got: %#x (pos=%d)", d.Expected, d.Actual, d.Offset)
			}
			if f.SyncFailed {
				offset += want
				continue
			}
			return false, nil
		}

		offset += want
	}

	// Detect a file that is longer than expected.
	var probe [1]byte
	if n, err := r.ReadAt(probe[:], int64(f.Size)); n > 0 || (err != nil && !errors.Is(err, io.EOF)) {
		f.HasError = true
		log.Logf("%s: file larger than expected (size %d)", path, f.Size)
		return false, nil
	}

	return true, nil
}

// Destroy unlinks f from disk and removes it from dir's bookkeeping.
// Permitted only if f.HasError is false (spec.md §4.3 "Destruction").
// Caller must hold f's lock and have already set f.InDelete.
func Destroy(f *File, tr *tree.Tree) error {
	if f.HasError {
		return nil
	}
	tr.RemoveFile(f.Dir, f.Name)
	path := tr.Path(f.Dir) + f.Name
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: unlink %s: %v", ErrFatal, path, err)
	}
	return nil
}
