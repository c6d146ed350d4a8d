package integrations

import (
	"slices"
	"sync"
	"time"
)

// Timing is one completed download.
type Timing struct {
	Duration time.Duration
	FileName string
}

// Recorder collects download timings for the end-of-run report. It is
// safe for concurrent use and a nil Recorder discards records.
type Recorder struct {
	mu      sync.Mutex
	timings []Timing
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record appends a timing.
func (r *Recorder) Record(d time.Duration, fileName string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.timings = append(r.timings, Timing{Duration: d, FileName: fileName})
	r.mu.Unlock()
}

// Len returns the number of recorded downloads.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timings)
}

// Slowest returns up to n timings, longest first. n <= 0 returns all.
func (r *Recorder) Slowest(n int) []Timing {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := slices.Clone(r.timings)
	r.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Timing) int {
		switch {
		case a.Duration > b.Duration:
			return -1
		case a.Duration < b.Duration:
			return 1
		}
		return 0
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
