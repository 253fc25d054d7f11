// Package datasource is the record backend of the dashboard: the query and
// mutation interfaces the engine depends on, a SQL implementation (SQLite or
// PostgreSQL) and an in-memory implementation for tests and demo mode.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

var (
	// ErrNotFound is returned when a mutation targets an unknown risk id.
	ErrNotFound = errors.New("risk not found")
	// ErrBatchUnsupported signals that the backend cannot apply a bulk
	// reorder atomically. Callers fall back to sequential writes.
	ErrBatchUnsupported = errors.New("bulk reorder not supported")
)

// Querier loads the working set for a filter. Search is a case-insensitive
// substring match on title or description, status and level match exactly,
// category matches as a substring.
type Querier interface {
	Query(ctx context.Context, f model.Filter) ([]model.Risk, error)
}

// Mutator writes position fields of a single risk.
type Mutator interface {
	UpdateRisk(ctx context.Context, id string, patch model.Patch) error
}

// BatchReorderer writes many priority orders in one atomic call. Backends
// that cannot do so either do not implement it or return
// ErrBatchUnsupported.
type BatchReorderer interface {
	BulkReorder(ctx context.Context, updates []model.OrderUpdate) error
}

// Service is the minimum backend the dashboard needs.
type Service interface {
	Querier
	Mutator
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// withCreateDefaults fills the columns a new record may omit. Every backend
// applies the same defaults so a record always has a level and a status.
func withCreateDefaults(r model.Risk, now time.Time) model.Risk {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	if r.Level == "" {
		r.Level = model.LevelLow
	}
	if r.Status == "" {
		r.Status = model.StatusIdentified
	}
	return r
}
