package fsutil_test

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/fsutil"
)

func TestDiskUsage_ReturnsPositiveTotals(t *testing.T) {
	dir := t.TempDir()

	usage, err := fsutil.DiskUsage(dir)
	require.NoError(t, err)
	require.Greater(t, usage.TotalBytes, uint64(0))
	require.LessOrEqual(t, usage.Used(), usage.TotalBytes)
}

func TestCoinFlipDirect_DisabledAlwaysFalse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		require.False(t, fsutil.CoinFlipDirect(false, rng))
	}
}

func TestFadviseAndFdatasync_OnRealFile(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(dir + "/probe")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)

	require.NoError(t, fsutil.Fdatasync(f))
	require.NoError(t, fsutil.FadviseDontNeed(f, 0, 0))
}
