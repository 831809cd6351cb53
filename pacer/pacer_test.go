package pacer

import (
	"testing"
	"time"
)

// over any Δt >= 1s at steady state (no loss, no RTT updates),
// sum(bytes committed) <= target_bps*Δt/8 + max_burst.
func TestSteadyStateBudget(t *testing.T) {
	start := time.Now()
	p := New(1_000_000, 100_000, 10_000_000, 50_000, start, 1)

	var committed int64
	now := start
	for i := 0; i < 2000; i++ {
		wait := p.Acquire(500, now)
		if wait > 0 {
			now = now.Add(time.Duration(wait))
			continue
		}
		p.Commit(500)
		committed += 500
		now = now.Add(time.Microsecond * 100)
	}

	elapsed := now.Sub(start).Seconds()
	budget := p.targetBps*elapsed/8 + p.maxBurst()
	if float64(committed) > budget+1 {
		t.Fatalf("committed %d exceeds budget %v over %v seconds", committed, budget, elapsed)
	}
}

// after report_loss, target_bps <= 0.7x the prior value (unless
// floored at min_bps).
func TestReportLossCutsRate(t *testing.T) {
	start := time.Now()
	p := New(1_000_000, 100, 10_000_000, 50_000, start, 2)
	before := p.TargetBps()
	p.ReportLoss(start.Add(time.Second))
	after := p.TargetBps()
	if after > before*0.7+1e-6 {
		t.Fatalf("expected target_bps <= 0.7x prior (%v), got %v", before*0.7, after)
	}
}

func TestReportLossDebounced(t *testing.T) {
	start := time.Now()
	p := New(1_000_000, 100, 10_000_000, 50_000, start, 3)
	p.ReportLoss(start)
	afterFirst := p.TargetBps()
	p.ReportLoss(start.Add(time.Microsecond)) // within rtt window, should be ignored
	if p.TargetBps() != afterFirst {
		t.Fatalf("expected debounced loss signal to be a no-op")
	}
}

func TestSlowStartTransitionsOnCwndGrowth(t *testing.T) {
	start := time.Now()
	p := New(10_000_000, 1000, 100_000_000, 10_000, start, 4)
	p.ssthresh = 20000 // force an early transition
	if p.State() != SlowStart {
		t.Fatalf("expected initial state SlowStart")
	}
	p.Ack(25000)
	if p.State() != CongestionAvoidance {
		t.Fatalf("expected transition to CongestionAvoidance once cwnd >= ssthresh")
	}
}

func TestRecoveryDrainsToCongestionAvoidance(t *testing.T) {
	start := time.Now()
	p := New(1_000_000, 100, 10_000_000, 50_000, start, 5)
	p.bytesInFlight = 20000
	p.cwnd = 20000
	p.ReportLoss(start)
	if p.State() != Recovery {
		t.Fatalf("expected Recovery after loss")
	}
	p.Ack(15000) // bytesInFlight now 5000, not yet < cwnd/2 (5000)
	p.Ack(1)
	if p.State() != CongestionAvoidance {
		t.Fatalf("expected transition out of Recovery once bytesInFlight < cwnd/2")
	}
}

// target 100Mbps, acquire(1500) x10 with no acks; the 11th
// acquire must return a positive wait (cwnd-limited or tokens-limited).
func TestScenario4BurstExhaustsBudget(t *testing.T) {
	start := time.Now()
	p := New(100_000_000, 1_000_000, 200_000_000, 20_000, start, 6)
	var lastWait int64
	for i := 0; i < 11; i++ {
		lastWait = p.Acquire(1500, start)
		if lastWait == 0 {
			p.Commit(1500)
		}
	}
	if p.BytesInFlight() == 0 {
		t.Fatalf("expected some bytes committed in flight")
	}
	if lastWait <= 0 {
		t.Fatalf("expected the 11th acquire to return a positive wait, got %d", lastWait)
	}
}
