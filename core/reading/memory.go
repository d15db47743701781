package reading

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/soh/core/model"
)

// MemorySource stores readings in memory. The simulator and tests feed it
// directly; the MQTT and Redis backends use it as their cache.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string]model.Reading
}

func NewMemorySource() *MemorySource {
	return &MemorySource{data: map[string]model.Reading{}}
}

// Set records r as the latest value of its point.
func (m *MemorySource) Set(r model.Reading) {
	m.mu.Lock()
	m.data[r.Point] = r
	m.mu.Unlock()
}

// SetFloat records a numeric value for point.
func (m *MemorySource) SetFloat(point string, v float64) {
	m.Set(model.Reading{Point: point, Number: model.Float(v), Time: time.Now()})
}

// Delete forgets point.
func (m *MemorySource) Delete(point string) {
	m.mu.Lock()
	delete(m.data, point)
	m.mu.Unlock()
}

func (m *MemorySource) Latest(_ context.Context, point string) (*model.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.data[point]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Points returns the number of stored points.
func (m *MemorySource) Points() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
