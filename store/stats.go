package store

import (
	"sync/atomic"
	"time"
)

// Stats accumulates store activity. A nil *Stats records nothing.
type Stats struct {
	stored    atomic.Int64
	retrieved atomic.Int64
	removed   atomic.Int64

	bytesWritten atomic.Int64
	bytesRead    atomic.Int64

	serializeNanos   atomic.Int64
	deserializeNanos atomic.Int64
	writeNanos       atomic.Int64
	readNanos        atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Stored    int64
	Retrieved int64
	Removed   int64

	BytesWritten int64
	BytesRead    int64

	SerializeTime   time.Duration
	DeserializeTime time.Duration
	WriteTime       time.Duration
	ReadTime        time.Duration
}

var global Stats

// GlobalStats returns the activity of every store created with stats enabled.
func GlobalStats() StatsSnapshot { return global.Snapshot() }

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Stored:          s.stored.Load(),
		Retrieved:       s.retrieved.Load(),
		Removed:         s.removed.Load(),
		BytesWritten:    s.bytesWritten.Load(),
		BytesRead:       s.bytesRead.Load(),
		SerializeTime:   time.Duration(s.serializeNanos.Load()),
		DeserializeTime: time.Duration(s.deserializeNanos.Load()),
		WriteTime:       time.Duration(s.writeNanos.Load()),
		ReadTime:        time.Duration(s.readNanos.Load()),
	}
}

func (s *Stats) recordStore(serialize, write time.Duration, bytes int) {
	if s == nil {
		return
	}
	for _, st := range [...]*Stats{s, &global} {
		st.stored.Add(1)
		st.bytesWritten.Add(int64(bytes))
		st.serializeNanos.Add(int64(serialize))
		st.writeNanos.Add(int64(write))
	}
}

func (s *Stats) recordRetrieve(read, deserialize time.Duration, bytes int) {
	if s == nil {
		return
	}
	for _, st := range [...]*Stats{s, &global} {
		st.retrieved.Add(1)
		st.bytesRead.Add(int64(bytes))
		st.readNanos.Add(int64(read))
		st.deserializeNanos.Add(int64(deserialize))
	}
}

func (s *Stats) recordRemove() {
	if s == nil {
		return
	}
	s.removed.Add(1)
	global.removed.Add(1)
}

// since returns the time elapsed since start, or zero when stats are off.
func (s *Stats) since(start time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return time.Since(start)
}

func (s *Stats) now() time.Time {
	if s == nil {
		return time.Time{}
	}
	return time.Now()
}
