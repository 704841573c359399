package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/bsbernd/ql-fstest/internal/registry"
)

// verifierLoop implements spec.md §4.5's verifier pseudocode: walk the
// registry round-robin, try-locking each file (skipping busy or
// in-delete entries without blocking), verify its content, and pace
// itself against the writer so it trails freshly written files enough
// to force real page-cache evictions.
func (e *Engine) verifierLoop(ctx context.Context, rng *rand.Rand) error {
	index := 0

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return nil
		default:
		}
		if e.terminatingNow() {
			return nil
		}

		for e.reg.Size() < 2 {
			if e.terminatingNow() {
				return nil
			}
			time.Sleep(time.Second)
		}

		if index >= e.reg.Size() {
			index = 0
		}
		f := e.reg.At(index)
		if f == nil {
			index = 0
			continue
		}
		if !f.TryLock() {
			index++
			continue
		}

		if f.InDelete {
			f.Unlock()
			index++
			continue
		}

		ok, err := registry.Verify(f, e.tr, rng, false, e.log)
		if err != nil {
			f.Unlock()
			return err
		}
		if !ok {
			if e.cfg.ErrorStop {
				e.errorFlag.Store(true)
				f.Unlock()
				return nil
			}
			e.errorFlag.Store(true)
		}

		if e.terminatingNow() {
			f.Unlock()
			return nil
		}
		f.Unlock()

		e.stats.addRead(f.Size, index)
		index++

		e.verifierPace(&index)
	}
}

// verifierPace implements spec.md §4.5's pacing rules: until the
// filesystem has ever gone full, sleep until the index is more than 20
// entries short of the registry's tail (restarting at 0 if the governor
// latches full meanwhile); after that, wrap-around to 0 replaces the
// sleep loop.
func (e *Engine) verifierPace(index *int) {
	for !e.gov.WasFull() {
		if *index+20 < e.reg.Size() {
			return
		}
		time.Sleep(time.Second)
		if e.gov.WasFull() {
			*index = 0
			return
		}
		if e.terminatingNow() {
			return
		}
	}
	if *index >= e.reg.Size() {
		*index = 0
	}
}
