package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/bsbernd/ql-fstest/internal/registry"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

// writerLoop implements spec.md §4.5's writer pseudocode: pick an
// active directory, create and write one file, fold it into the
// registry and directory bookkeeping, grow a new fan-out level once
// every active directory is full, periodically emit a stats line, and
// pace itself against the verifier's progress.
func (e *Engine) writerLoop(ctx context.Context, rng *rand.Rand) error {
	lastStats := time.Now()

	for !e.errorFlag.Load() && !e.terminatingNow() {
		select {
		case <-ctx.Done():
			e.Stop()
			return nil
		default:
		}

		dir, ok := e.pickActiveDir(rng)
		if !ok {
			// The active set is empty only after advanceLevel's GrowLevel
			// failed, which also set errorFlag, so the loop condition ends
			// the loop.
			continue
		}

		f, err := registry.Create(e.tr.Path(e.tr.Root()), e.tr, dir, rng, e.cfg.MinBits, e.cfg.MaxBits)
		if err != nil {
			return err
		}

		if _, err := e.gov.Reclaim(f.Size, rng, false, e.log); err != nil {
			return err
		}

		f.Lock()
		werr := registry.Write(f, e.tr, rng, false, e.cfg.Immediate, e.log)
		f.Unlock()
		if werr != nil {
			return werr
		}

		e.reg.Append(f)
		e.stats.addWrite(f.Size)
		e.advanceLevel(dir)

		if time.Since(lastStats) >= statsInterval {
			e.emitStatsLine()
			lastStats = time.Now()
		}

		if e.cfg.TimeoutSeconds >= 0 && time.Since(e.start) > time.Duration(e.cfg.TimeoutSeconds)*time.Second {
			e.Stop()
			return nil
		}

		e.pace()
	}

	return nil
}

// pickActiveDir chooses a uniformly random directory from the active
// set. It reports false if the set is empty.
func (e *Engine) pickActiveDir(rng *rand.Rand) (tree.Index, bool) {
	e.dirMu.Lock()
	defer e.dirMu.Unlock()
	if len(e.activeDirs) == 0 {
		return 0, false
	}
	return e.activeDirs[rng.Intn(len(e.activeDirs))], true
}

// advanceLevel drops dir from the active set once it has reached
// max_files_per_dir, and grows a new fan-out level when the active set
// empties, per spec.md §4.5.
func (e *Engine) advanceLevel(dir tree.Index) {
	e.dirMu.Lock()
	defer e.dirMu.Unlock()

	if e.tr.NumFiles(dir) >= e.maxFilesPerDir {
		for i, d := range e.activeDirs {
			if d == dir {
				e.activeDirs = append(e.activeDirs[:i], e.activeDirs[i+1:]...)
				break
			}
		}
	}

	if len(e.activeDirs) == 0 {
		e.level++
		e.maxFilesPerDir = e.level * e.level
		created, err := e.tr.GrowLevel(e.tr.Root(), e.level)
		if err != nil {
			e.log.Logf("grow level %d: %v", e.level, err)
			e.errorFlag.Store(true)
			return
		}
		e.activeDirs = created
		e.log.LevelUp(e.level)
	}
}

// pace implements spec.md §4.5's throughput coupling: before the
// governor has ever observed the filesystem full, the writer stays
// within 100 files of the verifier; afterward it stays within 20.
func (e *Engine) pace() {
	for !e.terminatingNow() {
		numWritten, numRead, lastReadIndex := e.stats.counts()
		if !e.gov.WasFull() {
			if lastReadIndex+100 >= e.reg.Size() {
				return
			}
		} else if numWritten <= numRead+20 {
			return
		}
		time.Sleep(time.Second)
	}
}

func (e *Engine) emitStatsLine() {
	now := time.Now()
	writeBytes, readBytes, numFiles, writeRate, readRate, fileRate := e.stats.snapshot(now)
	numWritten, numRead, _ := e.stats.counts()
	e.log.StatsLine(now, writeBytes, readBytes, writeRate, readRate, numFiles, fileRate, numWritten, numRead)
}
