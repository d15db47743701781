package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/model"
)

// MemoryRepository keeps schedules in process memory. It honours the same
// versioning contract as the SQL repositories and is safe for concurrent use.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]model.Schedule
	// failWith, when set, is returned by every call. Used to simulate outages.
	failWith error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: map[int64]model.Schedule{}}
}

// SetFailure makes every subsequent call fail with err; nil restores service.
func (r *MemoryRepository) SetFailure(err error) {
	r.mu.Lock()
	r.failWith = err
	r.mu.Unlock()
}

func (r *MemoryRepository) Save(_ context.Context, s *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return Persistence(r.failWith, "save schedule")
	}
	if err := r.checkOpen(*s); err != nil {
		return err
	}
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
		s.Version = 1
		r.data[s.ID] = clone(*s)
		return nil
	}
	cur, ok := r.data[s.ID]
	if !ok {
		return Persistence(ErrNotFound, "update schedule")
	}
	if cur.Version != s.Version {
		return Stale(s.ID, s.Version)
	}
	s.Version++
	r.data[s.ID] = clone(*s)
	return nil
}

// checkOpen mirrors the partial unique index of the SQL stores: one open
// schedule per string.
func (r *MemoryRepository) checkOpen(s model.Schedule) error {
	if !s.Matches(OpenStates, model.StatusActive) {
		return nil
	}
	for id, o := range r.data {
		if id != s.ID && o.StringID == s.StringID && o.Matches(OpenStates, model.StatusActive) {
			return errors.Wrapf(ErrConflict, "string %s already has open schedule %d", s.StringID, id)
		}
	}
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failWith != nil {
		return nil, Persistence(r.failWith, "find schedule")
	}
	s, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	c := clone(s)
	return &c, nil
}

func (r *MemoryRepository) FindByString(_ context.Context, stringID string, states []model.State, status model.Status) (*model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failWith != nil {
		return nil, Persistence(r.failWith, "find schedule by string")
	}
	for _, id := range r.sortedIDs() {
		s := r.data[id]
		if s.StringID == stringID && s.Matches(states, status) {
			c := clone(s)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) FindDue(_ context.Context, now time.Time, state model.State, status model.Status) ([]model.Schedule, error) {
	return r.filter(func(s model.Schedule) bool {
		return s.State == state && s.Status == status && !s.Start.After(now)
	})
}

func (r *MemoryRepository) FindByStatus(_ context.Context, status model.Status) ([]model.Schedule, error) {
	return r.filter(func(s model.Schedule) bool { return s.Status == status })
}

func (r *MemoryRepository) filter(keep func(model.Schedule) bool) ([]model.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failWith != nil {
		return nil, Persistence(r.failWith, "query schedules")
	}
	var res []model.Schedule
	for _, id := range r.sortedIDs() {
		if s := r.data[id]; keep(s) {
			res = append(res, clone(s))
		}
	}
	return res, nil
}

func (r *MemoryRepository) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clone(s model.Schedule) model.Schedule {
	c := s
	c.SoH = copyFloat(s.SoH)
	c.SoCBefore = copyFloat(s.SoCBefore)
	c.SoCAfter = copyFloat(s.SoCAfter)
	if s.End != nil {
		e := *s.End
		c.End = &e
	}
	return c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Close is a no-op; it lets the memory repository serve as a Store.
func (r *MemoryRepository) Close() error { return nil }
