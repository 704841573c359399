// Package statline formats the banner and periodic stats lines written
// to stdout, matching spec.md §6's exact text shapes (translated from
// original_source/filesystem.cc's cout<< sequence).
package statline

import (
	"fmt"
	"io"
	"time"
)

const giB = 1 << 30
const miB = 1 << 20

// Writer wraps an io.Writer with ql-fstest's banner/stats-line/
// diagnostic text formats. It holds no state of its own: every call
// takes exactly the values it needs to print.
type Writer struct {
	out io.Writer
}

// New wraps w.
func New(w io.Writer) *Writer {
	return &Writer{out: w}
}

// Logf satisfies registry.Logger: corruption diagnostics and other ad
// hoc lines from the engine and registry packages go through here too.
func (w *Writer) Logf(format string, args ...any) {
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Banner prints the startup banner (original_source/fstest.cc main()):
// program name, test directory, goal percentage, and the filesystem's
// total/free/used bytes observed before the workers start.
func (w *Writer) Banner(dir string, percent int, totalBytes, freeBytes uint64) {
	fmt.Fprintf(w.out, "fstest v0.0\n")
	fmt.Fprintf(w.out, "Directory: %s\n", dir)
	fmt.Fprintf(w.out, "Goal percentage used: %d%%\n", percent)
	fmt.Fprintf(w.out, "Filesystem size: %.2f GiB\n", float64(totalBytes)/giB)
	fmt.Fprintf(w.out, "Filesystem free: %.2f GiB\n", float64(freeBytes)/giB)
	fmt.Fprintf(w.out, "Filesystem used: %.2f GiB\n", float64(totalBytes-freeBytes)/giB)
}

// LevelUp prints the level-advance line emitted when the directory tree
// grows a new fan-out level.
func (w *Writer) LevelUp(level int) {
	fmt.Fprintf(w.out, "Level %d\n", level)
}

// StatsLine prints one periodic stats line in the exact form spec.md
// §6 specifies:
//
//	<unix_time> write: <GiB> GiB [<MiB/s>] read: <GiB> GiB [<MiB/s>] Files: <N> [<files/s>] # <ctime>  idx write: <N>  idx read: <N>
func (w *Writer) StatsLine(now time.Time, writeBytes, readBytes uint64, writeRateMiBs, readRateMiBs float64, numFiles int, fileRate float64, idxWrite, idxRead int) {
	fmt.Fprintf(w.out,
		"%d write: %.2f GiB [%.2f] read: %.2f GiB [%.2f] Files: %d [%.2f] # %s  idx write: %d  idx read: %d\n",
		now.Unix(),
		float64(writeBytes)/giB, writeRateMiBs,
		float64(readBytes)/giB, readRateMiBs,
		numFiles, fileRate,
		now.Format(time.ANSIC),
		idxWrite, idxRead,
	)
}

// Corruption prints a one-line corruption header: path, pattern, offset
// and create time. No caller in this module uses it; the registry
// package writes its corruption summary and per-byte diff lines through
// Logf instead.
func (w *Writer) Corruption(path string, pattern uint32, offset int64, createTime time.Time) {
	fmt.Fprintf(w.out, "CORRUPTION %s: pattern=%#x offset=%d created=%s\n",
		path, pattern, offset, createTime.Format(time.RFC3339))
}

// Terminating prints a "terminating: <reason>" line. No caller in this
// module uses it; shutdown messages are written by internal/cli.
func (w *Writer) Terminating(reason string) {
	fmt.Fprintf(w.out, "terminating: %s\n", reason)
}
