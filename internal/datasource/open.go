package datasource

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// Backend is a Service that can also create risks and be closed. Both
// SQLStore and MemoryStore satisfy it.
type Backend interface {
	Service
	BatchReorderer
	Create(ctx context.Context, r model.Risk) error
	Get(ctx context.Context, id string) (model.Risk, error)
	io.Closer
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Open returns the backend for driver. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (Backend, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, driver, dsn, logger)
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

// Seed inserts risks that the backend does not hold yet. It returns the
// number inserted.
func Seed(ctx context.Context, b Backend, risks []model.Risk) (int, error) {
	inserted := 0
	for _, r := range risks {
		if _, err := b.Get(ctx, r.ID); err == nil {
			continue
		}
		if err := b.Create(ctx, r); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
