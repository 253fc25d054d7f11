package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOpObserve(t *testing.T) {
	o := newOp("test_observe")
	o.Observe(2 * time.Millisecond)
	o.Observe(4 * time.Millisecond)

	s := o.Summary()
	if s.Count != 2 {
		t.Fatalf("expected count 2, got %d", s.Count)
	}
	if s.MinMs != 2 || s.MaxMs != 4 || s.AvgMs != 3 || s.TotalMs != 6 {
		t.Errorf("unexpected summary %+v", s)
	}

	o.Reset()
	if s := o.Summary(); s.Count != 0 || s.MinMs != 0 || s.MaxMs != 0 {
		t.Errorf("reset did not clear op: %+v", s)
	}
}

func TestEachOpHasHistogramSeries(t *testing.T) {
	before := testutil.CollectAndCount(operationSeconds)
	o := newOp("test_histogram")
	o.Observe(time.Millisecond)
	if got := testutil.CollectAndCount(operationSeconds); got != before+1 {
		t.Errorf("expected one new histogram series, got %d -> %d", before, got)
	}
}

func TestTimerDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	o := newOp("test_disabled")
	Timer(o)()
	if o.Count() != 0 {
		t.Errorf("expected no observation while disabled, got %d", o.Count())
	}
}

func TestSummariesSkipsUnobserved(t *testing.T) {
	ResetAll()
	defer ResetAll()
	Timer(Bucketize)()

	got := Summaries()
	if len(got) != 1 || got[0].Name != "bucketize" {
		t.Errorf("expected only bucketize, got %+v", got)
	}
}

func TestRelocationCounter(t *testing.T) {
	before := testutil.ToFloat64(RelocationsTotal.WithLabelValues("reverted"))
	RelocationsTotal.WithLabelValues("reverted").Inc()
	after := testutil.ToFloat64(RelocationsTotal.WithLabelValues("reverted"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}
}
