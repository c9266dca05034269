package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a process-local Store using cosine distance. It backs
// VECTOR_BACKEND=memory and tests.
type Memory struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Add(_ context.Context, docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document without id")
		}
		m.docs = append(m.docs, d)
	}
	return nil
}

func (m *Memory) Query(_ context.Context, embedding []float32, k int, filter Filter) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.docs))
	for _, d := range m.docs {
		if !filter.admits(d) {
			continue
		}
		matches = append(matches, Match{Document: d, Score: cosineDistance(embedding, d.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *Memory) DeleteBySource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.Source != source {
			kept = append(kept, d)
		}
	}
	m.docs = kept
	return nil
}

func (m *Memory) SourceHashes(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := make(map[string]string)
	for _, d := range m.docs {
		if _, ok := state[d.Source]; !ok && d.Hash != "" {
			state[d.Source] = d.Hash
		}
	}
	return state, nil
}

func (m *Memory) List(_ context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, len(m.docs))
	copy(out, m.docs)
	return out, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
