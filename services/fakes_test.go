package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/store"
	"github/itish2003/healthagent/vectorstore"
)

// fakeModel answers "<step> output" and records every request.
type fakeModel struct {
	mu      sync.Mutex
	calls   []CompletionRequest
	failOn  string
	replies map[string]string
}

func (f *fakeModel) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if req.Step == f.failOn {
		return "", errors.New("model unavailable")
	}
	if r, ok := f.replies[req.Step]; ok {
		return r, nil
	}
	return req.Step + " output", nil
}

func (f *fakeModel) call(step string) (CompletionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Step == step {
			return c, true
		}
	}
	return CompletionRequest{}, false
}

func (f *fakeModel) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Step)
	}
	return out
}

// joined concatenates the message contents of a request.
func joined(req CompletionRequest) string {
	parts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// letterEmbedder embeds text as letter frequencies, so texts sharing words land close together.
type letterEmbedder struct {
	err error
}

func (e letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

type stubRetriever struct {
	snippets []models.Snippet
	err      error
	filters  []vectorstore.Filter
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ int, filter vectorstore.Filter) ([]models.Snippet, error) {
	s.filters = append(s.filters, filter)
	return s.snippets, s.err
}

type memoryCheckpointer struct {
	saved []store.Checkpoint
	err   error
}

func (m *memoryCheckpointer) SaveCheckpoint(_ context.Context, cp store.Checkpoint) error {
	m.saved = append(m.saved, cp)
	return m.err
}

func (m *memoryCheckpointer) LatestCheckpoint(_ context.Context, runID string) (*store.Checkpoint, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].RunID == runID {
			cp := m.saved[i]
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}
