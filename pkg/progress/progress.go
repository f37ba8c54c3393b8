// Package progress provides a lightweight wall-clock progress reporter for
// long-running conversion phases. A Timer prints when a phase begins and
// ends, and at a fixed interval reports elapsed time plus, when a total is
// known, a completed/total percentage. Reporting runs on its own goroutine
// and never blocks or serializes the work it observes.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// TimeThis prints that a phase began and returns a function that prints the
// elapsed time when called, intended for use with defer:
//
//	defer progress.TimeThis("merge")()
func TimeThis(name string) func() {
	start := time.Now()
	fmt.Printf("%s began.\n", name)
	return func() {
		fmt.Printf("%s completed in %.2fs\n", name, time.Since(start).Seconds())
	}
}

// Timer reports progress of one named phase. Configure the fields before
// calling Start; they are read-only afterwards.
type Timer struct {
	// Name identifies the phase in every report line
	Name string

	// Interval is the wall-clock spacing of automatic reports
	Interval time.Duration

	// Total is the number of work items in the phase, or 0 when unknown.
	// A percentage is reported only when Total is set.
	Total int

	// SkipPercent suppresses explicit Report calls until progress has
	// advanced at least this many percentage points since the last report.
	// Zero reports every call.
	SkipPercent float64

	// Poll, when set, is consulted at each interval tick for the current
	// completed count. It must be safe to call from another goroutine and
	// must not block.
	Poll func() (completed int)

	mu                sync.Mutex
	start             time.Time
	lastReportTime    time.Time
	lastReportPercent float64
	lastCount         int
	stop              chan struct{}
	wg                sync.WaitGroup
}

// Start begins timing and launches the interval reporter.
func (t *Timer) Start() *Timer {
	t.start = time.Now()
	t.lastReportTime = t.start
	t.lastReportPercent = -t.SkipPercent
	t.lastCount = -1
	t.stop = make(chan struct{})

	fmt.Printf("%s began\n", t.Name)

	if t.Interval > 0 {
		t.wg.Add(1)
		go t.tick()
	}
	return t
}

// Stop ends the interval reporter and prints the total elapsed time.
func (t *Timer) Stop() {
	if t.stop != nil {
		close(t.stop)
		t.wg.Wait()
	}
	fmt.Printf("%s completed in %.2fs\n", t.Name, time.Since(t.start).Seconds())
}

func (t *Timer) tick() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.Poll != nil {
				t.mu.Lock()
				t.lastCount = t.Poll() - 1
				t.mu.Unlock()
			}
			t.print()
		}
	}
}

// Report records that count items have completed and prints a progress
// line, unless progress since the last report is below SkipPercent.
func (t *Timer) Report(count int) {
	t.mu.Lock()
	if count >= 0 {
		t.lastCount = count
	}
	skip := false
	if t.Total > 0 && t.lastCount >= 0 {
		percent := float64(t.lastCount+1) / float64(t.Total) * 100
		skip = percent < t.lastReportPercent+t.SkipPercent
	}
	t.mu.Unlock()

	if skip {
		return
	}
	t.print()
}

func (t *Timer) print() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	line := fmt.Sprintf("%s: since last report: %.2fs total: %.2fs",
		t.Name, now.Sub(t.lastReportTime).Seconds(), now.Sub(t.start).Seconds())
	if t.Total > 0 && t.lastCount >= 0 {
		percent := float64(t.lastCount+1) / float64(t.Total) * 100
		line += fmt.Sprintf(" %d/%d: %.0f%%", t.lastCount+1, t.Total, percent)
		t.lastReportPercent = percent
	}
	fmt.Println(line)
	t.lastReportTime = now
}
