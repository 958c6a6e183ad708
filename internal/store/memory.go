package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps analyses in a map. It backs tests and single-process
// runs that do not want a database file.
type Memory struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
}

func NewMemory() *Memory {
	return &Memory{analyses: make(map[string]*Analysis)}
}

func (m *Memory) Put(ctx context.Context, a *Analysis) error {
	touch(a)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[a.ID] = cloneAnalysis(a)
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAnalysis(a), nil
}

func (m *Memory) List(ctx context.Context) ([]*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		out = append(out, cloneAnalysis(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[id]; !ok {
		return ErrNotFound
	}
	delete(m.analyses, id)
	return nil
}

func (m *Memory) Close() error { return nil }

// cloneAnalysis copies the record and its maps so callers never alias
// stored state.
func cloneAnalysis(a *Analysis) *Analysis {
	c := *a
	if a.Result != nil {
		c.Result = append([]byte(nil), a.Result...)
	}
	if a.ExtractedFrames != nil {
		c.ExtractedFrames = make(map[string]string, len(a.ExtractedFrames))
		for k, v := range a.ExtractedFrames {
			c.ExtractedFrames[k] = v
		}
	}
	if a.ProfessionalFrames != nil {
		c.ProfessionalFrames = make(map[string]string, len(a.ProfessionalFrames))
		for k, v := range a.ProfessionalFrames {
			c.ProfessionalFrames[k] = v
		}
	}
	return &c
}
