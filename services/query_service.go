package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/vectorstore"
)

const querySeedHits = 4

// QueryService answers a question about the user's own logs.
type QueryService struct {
	retriever Retriever
	graph     *Runner
	language  string
}

func NewQueryService(retriever Retriever, graph *Runner, language string) *QueryService {
	return &QueryService{retriever: retriever, graph: graph, language: language}
}

// Query seeds the query graph with the user's nearest logs: the first two
// hits stand in for diet notes and the rest for exercise notes.
func (s *QueryService) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("question: %w", ErrEmptyInput)
	}
	user := resolveUser(req.UserID)

	hits, err := s.retriever.Retrieve(ctx, question, querySeedHits, vectorstore.Filter{UserID: user})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	split := min(2, len(texts))

	state := &State{
		RunID:         uuid.New().String(),
		UserID:        user,
		Question:      question,
		Language:      s.language,
		DietInput:     strings.Join(texts[:split], "\n\n"),
		ExerciseInput: strings.Join(texts[split:], "\n\n"),
	}
	if err := s.graph.Run(ctx, state); err != nil {
		return nil, err
	}
	return &models.QueryResponse{OK: true, Answer: state.Answer, Context: texts}, nil
}
