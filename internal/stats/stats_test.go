package stats

import (
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestLatencySnapshotPercentiles(t *testing.T) {
	stats := NewLatency(time.Hour)
	for _, n := range []int{100, 200, 300, 400, 500} {
		stats.Record("render", ms(n))
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLatencyPrunesExpiredSamples(t *testing.T) {
	now := time.Unix(1000, 0)
	stats := NewLatency(10 * time.Millisecond)
	stats.now = func() time.Time { return now }

	stats.Record("build", ms(100))
	now = now.Add(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record("build", ms(200))
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one fresh sample of 200, got %+v", snap)
	}
}

func TestLatencyClampsNegativeDuration(t *testing.T) {
	stats := NewLatency(time.Hour)
	stats.Record("build", -ms(10))
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MaxMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}

func TestLatencyPhases(t *testing.T) {
	stats := NewLatency(time.Hour)
	stats.Record("build", ms(10))
	stats.Record("render", ms(30))
	stats.Record("render", ms(50))

	if snap := stats.Phase("render"); snap.Count != 2 || snap.AvgMs != 40 {
		t.Fatalf("unexpected render snapshot %+v", snap)
	}
	phases := stats.Phases()
	if len(phases) != 2 || phases["build"].Count != 1 {
		t.Fatalf("unexpected phases %+v", phases)
	}
	if snap := stats.Phase("validate"); snap.Count != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}
