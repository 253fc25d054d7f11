package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vanderheijden86/riskboard/pkg/model"
)

// MemoryStore is an in-memory backend for tests and --demo mode. Records are
// deep-copied on the way in and out.
type MemoryStore struct {
	mu             sync.RWMutex
	risks          map[string]model.Risk
	batchSupported bool
	updateHook     func(id string, patch model.Patch) error
	batchErr       error
	updates        int
	now            func() time.Time
}

// NewMemoryStore creates a store seeded with risks.
func NewMemoryStore(risks ...model.Risk) *MemoryStore {
	s := &MemoryStore{
		risks:          make(map[string]model.Risk, len(risks)),
		batchSupported: true,
		now:            time.Now,
	}
	for _, r := range risks {
		s.risks[r.ID] = r.Clone()
	}
	return s
}

// SetBatchSupported toggles BulkReorder. When false it returns
// ErrBatchUnsupported.
func (s *MemoryStore) SetBatchSupported(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSupported = ok
}

// SetUpdateHook installs a function consulted before every UpdateRisk. A
// non-nil error fails the update without writing.
func (s *MemoryStore) SetUpdateHook(fn func(id string, patch model.Patch) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateHook = fn
}

// SetBatchError makes BulkReorder fail with err without writing.
func (s *MemoryStore) SetBatchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchErr = err
}

// UpdateCount returns how many single-row updates succeeded.
func (s *MemoryStore) UpdateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

// Query implements Querier. Results are newest first.
func (s *MemoryStore) Query(ctx context.Context, f model.Filter) ([]model.Risk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Risk, 0, len(s.risks))
	for _, r := range s.risks {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// Get returns the risk with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.risks[id]
	if !ok {
		return model.Risk{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

// Create inserts or replaces a risk. A missing level, status or timestamp
// gets the same default as in the SQL store.
func (s *MemoryStore) Create(_ context.Context, r model.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risks[r.ID] = withCreateDefaults(r.Clone(), s.now().UTC())
	return nil
}

// Delete removes a risk. Used to simulate concurrent deletion.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.risks, id)
}

// UpdateRisk implements Mutator.
func (s *MemoryStore) UpdateRisk(ctx context.Context, id string, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateHook != nil {
		if err := s.updateHook(id, patch); err != nil {
			return err
		}
	}
	r, ok := s.risks[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	patch.ApplyTo(&r)
	r.UpdatedAt = s.now().UTC()
	s.risks[id] = r
	s.updates++
	return nil
}

// BulkReorder implements BatchReorderer. Either every update is applied or
// none is.
func (s *MemoryStore) BulkReorder(ctx context.Context, updates []model.OrderUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.batchSupported {
		return ErrBatchUnsupported
	}
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, u := range updates {
		if _, ok := s.risks[u.ID]; !ok {
			return fmt.Errorf("%s: %w", u.ID, ErrNotFound)
		}
	}
	now := s.now().UTC()
	for _, u := range updates {
		r := s.risks[u.ID]
		r.PriorityOrder = model.IntPtr(u.PriorityOrder)
		r.UpdatedAt = now
		s.risks[u.ID] = r
	}
	return nil
}

// Snapshot returns every stored risk sorted by id.
func (s *MemoryStore) Snapshot() []model.Risk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Risk, 0, len(s.risks))
	for _, r := range s.risks {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}
