package payload_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/payload"
)

func TestFill_TilesPattern(t *testing.T) {
	buf := make([]byte, payload.TileSize)
	payload.Fill(buf, 0xDEADBEEF)

	require.True(t, payload.Matches(buf, 0xDEADBEEF))
	require.False(t, payload.Matches(buf, 0x12345678))
}

func TestFill_RoundTripRandomPatterns(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	buf := make([]byte, payload.TileSize)

	for i := 0; i < 64; i++ {
		pattern := rng.Uint32()
		payload.Fill(buf, pattern)
		require.Truef(t, payload.Matches(buf, pattern), "pattern %#x should round-trip", pattern)
	}
}

func TestCompare_ReportsEveryMismatch(t *testing.T) {
	buf := make([]byte, 16)
	payload.Fill(buf, 0x01020304)

	buf[5] = 0xFF
	buf[9] = 0xAA

	diffs := payload.Compare(buf, 0x01020304, 1000)
	require.Len(t, diffs, 2)
	require.Equal(t, int64(1005), diffs[0].Offset)
	require.Equal(t, byte(0xFF), diffs[0].Actual)
	require.Equal(t, int64(1009), diffs[1].Offset)
	require.Equal(t, byte(0xAA), diffs[1].Actual)
}

func TestCompare_NoMismatchesWhenEqual(t *testing.T) {
	buf := make([]byte, 4096)
	payload.Fill(buf, 0x11223344)
	require.Empty(t, payload.Compare(buf, 0x11223344, 0))
}
