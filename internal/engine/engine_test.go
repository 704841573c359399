package engine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/config"
	"github.com/bsbernd/ql-fstest/internal/engine"
	"github.com/bsbernd/ql-fstest/internal/registry"
	"github.com/bsbernd/ql-fstest/internal/statline"
	"github.com/bsbernd/ql-fstest/internal/tree"
)

func TestEngine_HappyPathProducesNoErrors(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "fstest.1")
	tr, err := tree.NewRoot(root)
	require.NoError(t, err)

	reg := registry.New()
	gov := registry.NewGovernor(tr.Path(tr.Root()), reg, tr, 99, 0)

	var buf bytes.Buffer
	log := statline.New(&buf)

	cfg := config.DefaultConfig()
	cfg.Dir = root
	cfg.MinBits = 8
	cfg.MaxBits = 10
	cfg.TimeoutSeconds = 1

	e := engine.New(cfg, tr, reg, gov, log)
	require.NoError(t, e.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	code := e.Run(ctx)
	require.Equal(t, 0, code)
	require.False(t, e.HasError())

	_, statErr := os.Stat(root)
	require.True(t, os.IsNotExist(statErr), "teardown must remove the test root")
}

func TestEngine_StopCausesCleanExit(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "fstest.1")
	tr, err := tree.NewRoot(root)
	require.NoError(t, err)

	reg := registry.New()
	gov := registry.NewGovernor(tr.Path(tr.Root()), reg, tr, 99, 0)

	var buf bytes.Buffer
	log := statline.New(&buf)

	cfg := config.DefaultConfig()
	cfg.Dir = root
	cfg.MinBits = 8
	cfg.MaxBits = 8
	cfg.TimeoutSeconds = -1

	e := engine.New(cfg, tr, reg, gov, log)
	require.NoError(t, e.Start())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	code := e.Run(ctx)
	require.Equal(t, 0, code)
}
