package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/pkg/debug"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	"github.com/vanderheijden86/riskboard/pkg/model"
)

// Loader fetches the working set for a filter. It keeps no cache; every call
// goes to the backend.
type Loader struct {
	q datasource.Querier
}

// NewLoader returns a Loader over q.
func NewLoader(q datasource.Querier) *Loader {
	return &Loader{q: q}
}

// Load runs the query for f.
func (l *Loader) Load(ctx context.Context, f model.Filter) ([]model.Risk, error) {
	start := time.Now()
	defer metrics.Timer(metrics.WorkingSetLoad)()

	risks, err := l.q.Query(ctx, f)
	if err != nil {
		metrics.LoadErrorsTotal.Inc()
		return nil, fmt.Errorf("loading risks (%s): %w", f.Summary(), err)
	}
	metrics.WorkingSetSize.Set(float64(len(risks)))
	debug.LogTiming("working set load", time.Since(start))
	return risks, nil
}
