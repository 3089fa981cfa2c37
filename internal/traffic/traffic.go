package traffic

import (
	"sync"
	"time"
)

// MaxWindow bounds how long outcomes are retained. ErrorRate over a longer window only
// sees the last MaxWindow of traffic.
const MaxWindow = 5 * time.Minute

// Tracker keeps sliding windows of proxy outcome timestamps.
// The /health handler reads ErrorRate to decide whether the upstream looks degraded.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
}

// NewTracker returns an empty Tracker. now defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// RecordSuccess records a report that was served.
func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

// RecordError records a request that failed after reaching the upstream step.
// Validation rejections are not recorded; they say nothing about upstream health.
func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

// Degraded reports whether the error percentage within window meets thresholdPct.
// An empty window is never degraded.
func (t *Tracker) Degraded(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	errs, total := t.ErrorRate(window)
	if total == 0 {
		return false
	}
	return float64(errs)*100/float64(total) >= float64(thresholdPct)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
}

func (t *Tracker) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than MaxWindow. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-MaxWindow)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
}
