package engine

import (
	"sync"
	"time"
)

// Stats holds the counters spec.md §5 groups under the registry/global
// lock: cumulative write/read byte totals, file counts, and the
// verifier's last-seen registry index. A snapshot is taken every
// stats-line tick to compute a throughput rate against the previous
// snapshot.
type Stats struct {
	mu sync.Mutex

	writeBytes uint64
	readBytes  uint64
	numFiles   int
	numWritten int
	numRead    int

	lastReadIndex int

	prevWriteBytes uint64
	prevReadBytes  uint64
	prevNumFiles   int
	prevTime       time.Time
}

func newStats(start time.Time) *Stats {
	return &Stats{prevTime: start}
}

func (s *Stats) addWrite(bytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBytes += bytes
	s.numFiles++
	s.numWritten++
}

func (s *Stats) addRead(bytes uint64, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readBytes += bytes
	s.numRead++
	s.lastReadIndex = index
}

func (s *Stats) counts() (numWritten, numRead, lastReadIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numWritten, s.numRead, s.lastReadIndex
}

// snapshot returns the values needed for one stats line and the
// per-second rates since the previous snapshot, then resets the
// baseline to now.
func (s *Stats) snapshot(now time.Time) (writeBytes, readBytes uint64, numFiles int, writeRate, readRate, fileRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.prevTime).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}

	writeRate = float64(s.writeBytes-s.prevWriteBytes) / (1 << 20) / elapsed
	readRate = float64(s.readBytes-s.prevReadBytes) / (1 << 20) / elapsed
	fileRate = float64(s.numFiles-s.prevNumFiles) / elapsed

	writeBytes, readBytes, numFiles = s.writeBytes, s.readBytes, s.numFiles

	s.prevWriteBytes, s.prevReadBytes, s.prevNumFiles, s.prevTime = s.writeBytes, s.readBytes, s.numFiles, now
	return
}
