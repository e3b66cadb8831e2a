// Package stats keeps rolling-window latency figures for extraction and
// chunking, grouped by document format.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Window tracks recent durations no older than maxAge.
type Window struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewWindow(maxAge time.Duration) *Window {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Window{
		samples: make([]sample, 0, 64),
		maxAge:  maxAge,
	}
}

// Record adds one duration. Negative values count as zero.
func (w *Window) Record(d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.samples = append(w.samples, sample{timestamp: now, durationMs: ms})
}

func (w *Window) Snapshot() Snapshot {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(w.samples))
	var sum int64
	for _, sm := range w.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	keep := 0
	for _, sm := range w.samples {
		if !sm.timestamp.Before(cutoff) {
			w.samples[keep] = sm
			keep++
		}
	}
	w.samples = w.samples[:keep]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[upper])
	return lo + ((hi - lo) * weight)
}

// Recorder holds one Window per key, created on first use.
type Recorder struct {
	mu      sync.Mutex
	maxAge  time.Duration
	windows map[string]*Window
}

func NewRecorder(maxAge time.Duration) *Recorder {
	return &Recorder{
		maxAge:  maxAge,
		windows: make(map[string]*Window),
	}
}

// Record adds d to the window for key. A nil Recorder ignores the call.
func (r *Recorder) Record(key string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	w, ok := r.windows[key]
	if !ok {
		w = NewWindow(r.maxAge)
		r.windows[key] = w
	}
	r.mu.Unlock()
	w.Record(d)
}

// Snapshot aggregates every key. Keys whose samples have all expired are
// reported with a zero count.
func (r *Recorder) Snapshot() map[string]Snapshot {
	if r == nil {
		return map[string]Snapshot{}
	}
	r.mu.Lock()
	windows := make(map[string]*Window, len(r.windows))
	for k, w := range r.windows {
		windows[k] = w
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(windows))
	for k, w := range windows {
		out[k] = w.Snapshot()
	}
	return out
}
