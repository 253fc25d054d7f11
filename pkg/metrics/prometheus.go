package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RelocationsTotal counts resolved relocations by outcome.
	RelocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskboard",
			Name:      "relocations_total",
			Help:      "Resolved relocations by outcome.",
		},
		[]string{"outcome"}, // "committed", "reverted", "stale"
	)

	// ReordersTotal counts backlog reorders by persistence path and result.
	ReordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskboard",
			Name:      "reorders_total",
			Help:      "Backlog reorders by persistence path and result.",
		},
		[]string{"path", "result"},
	)

	// LoadErrorsTotal counts failed working-set loads.
	LoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "riskboard",
			Name:      "load_errors_total",
			Help:      "Failed working-set loads.",
		},
	)

	// WorkingSetSize tracks the size of the last loaded working set.
	WorkingSetSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "riskboard",
			Name:      "working_set_size",
			Help:      "Number of risks in the last loaded working set.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RelocationsTotal,
		ReordersTotal,
		LoadErrorsTotal,
		WorkingSetSize,
		operationSeconds,
	)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
