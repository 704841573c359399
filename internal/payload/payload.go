// Package payload implements the content codec used to fill and verify
// test files: a file's entire content is its 4-byte pattern tiled out to
// the file's length, so any byte mismatch at any offset both detects
// corruption and identifies the expected value without any separate
// checksum bookkeeping.
package payload

import "encoding/binary"

// TileSize is the size of the staging buffer used for writes and reads.
// It must be a power of two and a multiple of 4 (the pattern width).
const TileSize = 1 << 20 // 1 MiB

// Fill writes pattern into buf[0:4] and then doubles the filled prefix
// until the whole buffer is tiled with the pattern. buf's length must be
// a power of two and a multiple of 4; callers normally pass a TileSize
// buffer, but Fill also accepts the final, possibly shorter, chunk as
// long as it still satisfies those constraints (callers needing an
// arbitrary-length tail should fill a full TileSize buffer once and
// reslice it; see Verify in the registry package).
func Fill(buf []byte, pattern uint32) {
	if len(buf) < 4 {
		binary.LittleEndian.PutUint32(scratch4[:], pattern)
		copy(buf, scratch4[:])
		return
	}
	binary.LittleEndian.PutUint32(buf[0:4], pattern)
	n := 4
	for n < len(buf) {
		copy(buf[n:], buf[:n])
		n *= 2
	}
}

var scratch4 [4]byte

// ByteDiff describes a single mismatching byte found by Compare.
type ByteDiff struct {
	Offset   int64
	Expected byte
	Actual   byte
}

// Compare byte-compares actual against the tiled pattern and returns
// every differing byte position in actual's window. offsetBase is added
// to each reported Offset so callers can report absolute file offsets
// when actual is a chunk read at some offset within a larger file.
func Compare(actual []byte, pattern uint32, offsetBase int64) []ByteDiff {
	var tile [4]byte
	binary.LittleEndian.PutUint32(tile[:], pattern)

	var diffs []ByteDiff
	for i, b := range actual {
		want := tile[i%4]
		if b != want {
			diffs = append(diffs, ByteDiff{
				Offset:   offsetBase + int64(i),
				Expected: want,
				Actual:   b,
			})
		}
	}
	return diffs
}

// Matches reports whether actual matches the tiled pattern, without
// building a full diff list. Use this on the hot path; fall back to
// Compare only once a mismatch is known to exist, to build a diagnostic.
func Matches(actual []byte, pattern uint32) bool {
	var tile [4]byte
	binary.LittleEndian.PutUint32(tile[:], pattern)
	for i, b := range actual {
		if b != tile[i%4] {
			return false
		}
	}
	return true
}
