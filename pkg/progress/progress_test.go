package progress

import (
	"testing"
	"time"
)

func TestTimerReportTracksCount(t *testing.T) {
	timer := &Timer{Name: "test phase", Total: 10}
	timer.Start()
	defer timer.Stop()

	timer.Report(4)
	timer.mu.Lock()
	if timer.lastCount != 4 {
		t.Errorf("Expected last count 4, got %d", timer.lastCount)
	}
	timer.mu.Unlock()

	// A negative count reports without advancing the counter
	timer.Report(-1)
	timer.mu.Lock()
	if timer.lastCount != 4 {
		t.Errorf("Expected last count to stay at 4, got %d", timer.lastCount)
	}
	timer.mu.Unlock()
}

func TestTimerSkipPercentSuppressesReports(t *testing.T) {
	timer := &Timer{Name: "test phase", Total: 100, SkipPercent: 10}
	timer.Start()
	defer timer.Stop()

	// First report always prints and records its percentage
	timer.Report(0)
	timer.mu.Lock()
	first := timer.lastReportPercent
	timer.mu.Unlock()
	if first != 1 {
		t.Fatalf("Expected first report at 1%%, got %g", first)
	}

	// 5% progress is below the 10-point threshold, so the recorded
	// percentage must not move
	timer.Report(4)
	timer.mu.Lock()
	suppressed := timer.lastReportPercent
	timer.mu.Unlock()
	if suppressed != first {
		t.Errorf("Expected report at 5%% to be suppressed, recorded %g", suppressed)
	}

	// 15% clears the threshold
	timer.Report(14)
	timer.mu.Lock()
	advanced := timer.lastReportPercent
	timer.mu.Unlock()
	if advanced != 15 {
		t.Errorf("Expected recorded percentage 15, got %g", advanced)
	}
}

func TestTimerPolling(t *testing.T) {
	completed := 0
	timer := &Timer{
		Name:     "test phase",
		Total:    10,
		Interval: 10 * time.Millisecond,
		Poll:     func() int { completed++; return completed },
	}
	timer.Start()
	time.Sleep(50 * time.Millisecond)
	timer.Stop()

	if completed == 0 {
		t.Error("Expected the interval reporter to poll at least once")
	}
}

func TestTimerStopWithoutInterval(t *testing.T) {
	timer := &Timer{Name: "test phase"}
	timer.Start()
	timer.Stop()
}

func TestTimeThis(t *testing.T) {
	done := TimeThis("test phase")
	done()
}
