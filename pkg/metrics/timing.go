// Package metrics instruments the dashboard's hot paths.
//
// Each operation has an in-memory Op that aggregates durations with atomics
// and mirrors every observation into the riskboard_operation_duration_seconds
// histogram. The aggregates are printed under "timings" by --robot-json; the
// histogram and the outcome counters are served by --metrics-addr. Set
// RB_METRICS=0 to turn collection off.
//
// Usage:
//
//	func Bucketize(...) Grid {
//	    defer metrics.Timer(metrics.Bucketize)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("RB_METRICS") != "0")
}

// Enabled reports whether timings are collected.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns timing collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

var operationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "riskboard",
		Name:      "operation_duration_seconds",
		Help:      "Duration of engine operations.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	},
	[]string{"op"},
)

// Op aggregates the durations of one named operation.
type Op struct {
	name     string
	observer prometheus.Observer

	count atomic.Int64
	total atomic.Int64 // ns
	min   atomic.Int64 // ns, 0 until the first observation
	max   atomic.Int64 // ns
}

func newOp(name string) *Op {
	return &Op{name: name, observer: operationSeconds.WithLabelValues(name)}
}

// Observe records one duration.
func (o *Op) Observe(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := max(d.Nanoseconds(), 1)
	o.count.Add(1)
	o.total.Add(ns)
	for cur := o.max.Load(); ns > cur && !o.max.CompareAndSwap(cur, ns); cur = o.max.Load() {
	}
	for cur := o.min.Load(); (cur == 0 || ns < cur) && !o.min.CompareAndSwap(cur, ns); cur = o.min.Load() {
	}
	o.observer.Observe(d.Seconds())
}

// Name returns the operation name used as the histogram label.
func (o *Op) Name() string { return o.name }

// Count returns the number of observations.
func (o *Op) Count() int64 { return o.count.Load() }

// Summary returns the aggregates in milliseconds.
func (o *Op) Summary() OpSummary {
	s := OpSummary{Name: o.name, Count: o.count.Load()}
	total := o.total.Load()
	s.TotalMs = float64(total) / 1e6
	if s.Count > 0 {
		s.AvgMs = float64(total/s.Count) / 1e6
	}
	s.MinMs = float64(o.min.Load()) / 1e6
	s.MaxMs = float64(o.max.Load()) / 1e6
	return s
}

// Reset clears the aggregates. The histogram is cumulative and is left alone.
func (o *Op) Reset() {
	o.count.Store(0)
	o.total.Store(0)
	o.min.Store(0)
	o.max.Store(0)
}

// OpSummary is a point-in-time view of an Op.
type OpSummary struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Timer starts timing op and returns the func that stops it.
func Timer(op *Op) func() {
	if op == nil || !Enabled() {
		return func() {}
	}
	start := time.Now()
	return func() { op.Observe(time.Since(start)) }
}

var (
	WorkingSetLoad = newOp("working_set_load")
	Bucketize      = newOp("bucketize")
	BacklogOrder   = newOp("backlog_order")
	StatsCompute   = newOp("stats_compute")
	Persist        = newOp("persist")
	BulkReorder    = newOp("bulk_reorder")
	UIRender       = newOp("ui_render")
)

// Ops lists every instrumented operation.
func Ops() []*Op {
	return []*Op{WorkingSetLoad, Bucketize, BacklogOrder, StatsCompute, Persist, BulkReorder, UIRender}
}

// ResetAll clears every Op.
func ResetAll() {
	for _, o := range Ops() {
		o.Reset()
	}
}

// Summaries returns the summaries of operations observed at least once.
func Summaries() []OpSummary {
	out := make([]OpSummary, 0, len(Ops()))
	for _, o := range Ops() {
		if o.Count() > 0 {
			out = append(out, o.Summary())
		}
	}
	return out
}
