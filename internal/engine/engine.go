// Package engine implements the writer and verifier workers described
// in spec.md §4.5: two goroutines sharing a file registry, a directory
// tree, and a space governor, coordinated by a coarse lock for
// structural bookkeeping and per-file locks for I/O (spec.md §5).
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsbernd/ql-fstest/internal/config"
	"github.com/bsbernd/ql-fstest/internal/registry"
	"github.com/bsbernd/ql-fstest/internal/statline"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

const statsInterval = 60 * time.Second

// Engine owns one run's directory tree, registry, and workers.
type Engine struct {
	cfg config.Config
	tr  *tree.Tree
	reg *registry.Registry
	gov *registry.Governor
	log *statline.Writer

	stats *Stats

	errorFlag   atomic.Bool
	terminating atomic.Bool

	dirMu          sync.Mutex
	activeDirs     []tree.Index
	level          int
	maxFilesPerDir int

	start time.Time
}

// New constructs an Engine rooted at tr, with its registry and space
// governor already built by the caller (internal/cli wires these up
// after creating the test root directory).
func New(cfg config.Config, tr *tree.Tree, reg *registry.Registry, gov *registry.Governor, log *statline.Writer) *Engine {
	return &Engine{
		cfg:   cfg,
		tr:    tr,
		reg:   reg,
		gov:   gov,
		log:   log,
		stats: newStats(time.Now()),
	}
}

// Start creates the first fan-out level (spec.md §4.5: "create first
// subdirectory under root") before the writer/verifier loops begin.
func (e *Engine) Start() error {
	e.dirMu.Lock()
	defer e.dirMu.Unlock()

	e.level = 1
	e.maxFilesPerDir = 1

	created, err := e.tr.GrowLevel(e.tr.Root(), e.level)
	if err != nil {
		return fmt.Errorf("create initial level: %w", err)
	}
	e.activeDirs = created
	e.start = time.Now()
	return nil
}

// HasError reports whether either worker has flagged a verification
// failure or fatal I/O error.
func (e *Engine) HasError() bool { return e.errorFlag.Load() }

// Stop requests both workers exit at their next check point (spec.md
// §5, "the terminating flag is checked at every pacing sleep").
func (e *Engine) Stop() { e.terminating.Store(true) }

func (e *Engine) terminatingNow() bool { return e.terminating.Load() }

// Run starts the writer and verifier goroutines, waits for both to
// exit (on context cancellation, configured timeout, or an error; a
// registry.ErrFatal from the writer stops the verifier too),
// and then tears down the directory tree. It returns the process exit
// code per spec.md §6: 0 on a clean run, 1 if corruption or a fatal
// error occurred.
func (e *Engine) Run(ctx context.Context) int {
	writerRng := rand.New(rand.NewSource(seed()))
	verifierRng := rand.New(rand.NewSource(seed() + 1))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := e.writerLoop(ctx, writerRng); err != nil {
			e.log.Logf("writer: %v", err)
			e.errorFlag.Store(true)
			if errors.Is(err, registry.ErrFatal) {
				e.Stop()
			}
		}
	}()

	go func() {
		defer wg.Done()
		if err := e.verifierLoop(ctx, verifierRng); err != nil {
			e.log.Logf("verifier: %v", err)
			e.errorFlag.Store(true)
		}
	}()

	wg.Wait()

	if err := e.teardown(); err != nil {
		e.log.Logf("teardown: %v", err)
	}

	if e.errorFlag.Load() {
		return 1
	}
	return 0
}

// seed draws a seed for a worker's PRNG stream from the current time in
// nanoseconds. Run adds 1 to the verifier's draw so the two streams
// differ even if both draws read the same instant.
func seed() int64 {
	return time.Now().UnixNano()
}

// teardown walks the directory arena depth-first (children before
// parents) removing every remaining live file then every directory,
// matching original_source/dir.cc's recursive ~Dir() order (spec.md §3
// supplemented feature "cleandir").
func (e *Engine) teardown() error {
	live := make(map[tree.Index][]string)
	for i := 0; i < e.reg.Size(); i++ {
		f := e.reg.At(i)
		if f == nil || f.InDelete {
			continue
		}
		path := e.tr.Path(f.Dir) + f.Name
		live[f.Dir] = append(live[f.Dir], path)
	}
	return e.tr.Teardown(live)
}
