package registry

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/bsbernd/ql-fstest/internal/fsutil"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

// Registry is the ordered, mostly-append-only sequence of live files
// shared by the writer and verifier (spec.md §4.4). Entries are never
// swap-erased: RemoveAt preserves the order of every other entry so a
// verifier mid-scan only ever sees an index shift by at most one slot,
// never a file teleporting to a different position.
type Registry struct {
	mu    sync.Mutex
	files []*File
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Append adds f to the end of the registry and returns its index.
func (r *Registry) Append(f *File) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return len(r.files) - 1
}

// Size returns the current number of live entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// At returns the file at index i, or nil if i is out of range (the
// verifier must tolerate this: the registry may have shrunk since the
// caller last read its size, per spec.md §4.4).
func (r *Registry) At(i int) *File {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.files) {
		return nil
	}
	return r.files[i]
}

// RemoveAt deletes the entry at index i, preserving the order of the
// remaining entries (an ordered erase, not a swap-with-last).
func (r *Registry) RemoveAt(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.files) {
		return
	}
	r.files = append(r.files[:i], r.files[i+1:]...)
}

// Random returns a uniformly random live entry and its index, or
// (nil, -1) if the registry is empty.
func (r *Registry) Random(rng *rand.Rand) (*File, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.files) == 0 {
		return nil, -1
	}
	i := rng.Intn(len(r.files))
	return r.files[i], i
}

// Governor is the space governor described in spec.md §4.4: it keeps a
// filesystem's used bytes near a configured goal by deleting random
// live files, verifying each victim once more before unlinking it
// unless that file has already exhausted its immediate-recheck budget.
type Governor struct {
	root        string
	reg         *Registry
	tr          *tree.Tree
	percent     int // 1-99, goal_bytes = fssize * percent / 100
	maxFiles    int // spec.md §6 -f/--max-files: soft ceiling on registry size, 0 = unbounded
	maxRechecks int // a victim with fewer than this many completed checks (num_checks < 10) is verified once more before unlinking

	wasFull bool // latches true once goal_bytes (or maxFiles) was exceeded, for stats/backpressure
}

// NewGovernor constructs a Governor bound to reg and tr, targeting
// percent (1-99) of the filesystem rooted at root, plus an optional
// soft ceiling maxFiles on the registry's live-file count (0 disables
// the ceiling, deletion is then goal-percent-driven only).
func NewGovernor(root string, reg *Registry, tr *tree.Tree, percent, maxFiles int) *Governor {
	return &Governor{
		root:        root,
		reg:         reg,
		tr:          tr,
		percent:     percent,
		maxFiles:    maxFiles,
		maxRechecks: 10,
	}
}

// WasFull reports whether the governor has ever observed used space
// exceeding its goal (spec.md's was_full latch, used to gate pacing).
func (g *Governor) WasFull() bool { return g.wasFull }

// GoalBytes returns fssize * percent / 100 for the filesystem rooted
// at g.root, per spec.md's single percent-arithmetic convention.
func (g *Governor) GoalBytes() (uint64, error) {
	usage, err := fsutil.DiskUsage(g.root)
	if err != nil {
		return 0, err
	}
	return usage.TotalBytes * uint64(g.percent) / 100, nil
}

// overMaxFiles reports whether the registry has grown past the
// configured soft ceiling. A zero maxFiles disables the ceiling.
func (g *Governor) overMaxFiles() bool {
	return g.maxFiles > 0 && g.reg.Size() > g.maxFiles
}

// Reclaim runs one pass of the space governor: if used space plus
// projectedSize (the file the writer is about to place, spec.md §4.4
// "free_space(projected_size)") exceeds the goal, or the registry has
// grown past the configured maxFiles soft ceiling (spec.md §6's
// -f/--max-files), it repeatedly picks a random live file, trylocks it
// (never blocking the writer or verifier, per the global-then-per-file
// lock order in spec.md §5), verifies it once more if it has fewer than
// maxRechecks completed checks, and unlinks it; corruption found by that
// verify is returned as an error and the file is kept. It returns the
// number of files it deleted.
func (g *Governor) Reclaim(projectedSize uint64, rng *rand.Rand, directIOEnabled bool, log Logger) (int, error) {
	goal, err := g.GoalBytes()
	if err != nil {
		return 0, err
	}

	usage, err := fsutil.DiskUsage(g.root)
	if err != nil {
		return 0, err
	}
	if usage.Used()+projectedSize <= goal && !g.overMaxFiles() {
		return 0, nil
	}
	g.wasFull = true

	deleted := 0
	for attempts := 0; attempts < g.reg.Size()*2 && g.reg.Size() > 2; attempts++ {
		usage, err := fsutil.DiskUsage(g.root)
		if err != nil {
			return deleted, err
		}
		if usage.Used()+projectedSize <= goal && !g.overMaxFiles() {
			break
		}

		f, idx := g.reg.Random(rng)
		if f == nil {
			break
		}
		if !f.TryLock() {
			continue
		}

		if f.InDelete || f.HasError {
			f.Unlock()
			continue
		}

		shouldDelete := true
		if f.NumChecks < g.maxRechecks {
			ok, verr := Verify(f, g.tr, rng, directIOEnabled, log)
			if verr != nil {
				f.Unlock()
				return deleted, verr
			}
			shouldDelete = ok
			if !ok {
				// Corruption found on a deletion candidate: preserve it as
				// evidence (refuse to unlink) and exit the writer task
				// (spec.md §4.4 step 3f), regardless of --error-stop.
				f.Unlock()
				return deleted, fmt.Errorf("space governor: pre-delete verification of %s found corruption", f.Name)
			}
		}

		if shouldDelete {
			f.InDelete = true
			if err := Destroy(f, g.tr); err != nil {
				f.Unlock()
				return deleted, err
			}
			g.reg.RemoveAt(idx)
			deleted++
		}
		f.Unlock()
	}

	return deleted, nil
}
