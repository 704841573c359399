package statline_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bsbernd/ql-fstest/internal/statline"
)

func TestBanner_IncludesDirectoryAndPercent(t *testing.T) {
	var buf bytes.Buffer
	w := statline.New(&buf)

	w.Banner("/mnt/test/fstest.123", 90, 100*1<<30, 40*1<<30)

	out := buf.String()
	require.Contains(t, out, "fstest v0.0")
	require.Contains(t, out, "/mnt/test/fstest.123")
	require.Contains(t, out, "90%")
}

func TestStatsLine_MatchesExpectedShape(t *testing.T) {
	var buf bytes.Buffer
	w := statline.New(&buf)

	now := time.Unix(1700000000, 0).UTC()
	w.StatsLine(now, 10<<30, 4<<30, 12.5, 6.25, 42, 1.4, 100, 80)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "1700000000 write:"))
	require.Contains(t, out, "read:")
	require.Contains(t, out, "Files: 42")
	require.Contains(t, out, "idx write: 100")
	require.Contains(t, out, "idx read: 80")
}

func TestLogf_AppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	w := statline.New(&buf)

	w.Logf("hello %s", "world")
	require.Equal(t, "hello world\n", buf.String())
}
