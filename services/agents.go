package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/vectorstore"
)

// Graph names, also used as checkpoint and metric labels.
const (
	DailyReportGraph = "daily_report"
	QueryGraph       = "query"
)

// DefaultRetrievalQuery is searched when building the nightly report.
const DefaultRetrievalQuery = "healthy diet composition and daily recommended amount of exercise"

// Retriever finds evidence snippets for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter vectorstore.Filter) ([]models.Snippet, error)
}

// Agents holds the prompt steps that make up the orchestration graphs.
type Agents struct {
	model     ChatModel
	retriever Retriever
	k         int
	maxInput  int
}

func NewAgents(model ChatModel, retriever Retriever, k, maxInputGraphemes int) *Agents {
	if k <= 0 {
		k = 5
	}
	return &Agents{model: model, retriever: retriever, k: k, maxInput: maxInputGraphemes}
}

// BuildReportGraph wires diet -> exercise -> retrieve -> recommend -> plan.
func (a *Agents) BuildReportGraph(opts ...RunnerOption) (*Runner, error) {
	return NewGraph(DailyReportGraph).
		AddNode("diet", a.Diet).
		AddNode("exercise", a.Exercise).
		AddNode("retrieve", a.RetrieveKnowledge).
		AddNode("recommend", a.Recommend).
		AddNode("plan", a.Plan).
		SetEntry("diet").
		AddEdge("diet", "exercise").
		AddEdge("exercise", "retrieve").
		AddEdge("retrieve", "recommend").
		AddEdge("recommend", "plan").
		AddEdge("plan", END).
		Compile(opts...)
}

// BuildQueryGraph wires diet -> exercise -> retrieve -> coach.
func (a *Agents) BuildQueryGraph(opts ...RunnerOption) (*Runner, error) {
	return NewGraph(QueryGraph).
		AddNode("diet", a.Diet).
		AddNode("exercise", a.Exercise).
		AddNode("retrieve", a.RetrieveForUser).
		AddNode("coach", a.Coach).
		SetEntry("diet").
		AddEdge("diet", "exercise").
		AddEdge("exercise", "retrieve").
		AddEdge("retrieve", "coach").
		AddEdge("coach", END).
		Compile(opts...)
}

func (a *Agents) complete(ctx context.Context, stepName string, tier Tier, temp float32, tmpl prompts.ChatPromptTemplate, values map[string]any) (string, error) {
	msgs, err := renderPrompt(tmpl, values)
	if err != nil {
		return "", err
	}
	out, err := a.model.Complete(ctx, CompletionRequest{
		Step:        stepName,
		Tier:        tier,
		Temperature: temp,
		Messages:    msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", stepName, err)
	}
	return out, nil
}

// Diet summarizes the raw diet log.
func (a *Agents) Diet(ctx context.Context, s *State) error {
	question := s.Question
	if question == "" {
		question = "Summarize today's diet."
	}
	out, err := a.complete(ctx, "diet", TierFast, 0.2, dietPrompt, map[string]any{
		"language": s.Language,
		"question": question,
		"diet":     orNoInput(clip(s.DietInput, a.maxInput)),
	})
	if err != nil {
		return err
	}
	s.DietSummary = out
	return nil
}

// Exercise summarizes the day's workout exports.
func (a *Agents) Exercise(ctx context.Context, s *State) error {
	question := s.Question
	if question == "" {
		question = "Summarize today's workouts."
	}
	out, err := a.complete(ctx, "exercise", TierFast, 0.2, exercisePrompt, map[string]any{
		"language": s.Language,
		"question": question,
		"exercise": orNoInput(clip(s.ExerciseInput, a.maxInput)),
	})
	if err != nil {
		return err
	}
	s.ExerciseSummary = out
	return nil
}

// RetrieveKnowledge searches the knowledge base only.
func (a *Agents) RetrieveKnowledge(ctx context.Context, s *State) error {
	if s.RetrievalQuery == "" {
		s.RetrievalQuery = DefaultRetrievalQuery
	}
	a.retrieve(ctx, s, vectorstore.Filter{KnowledgeOnly: true})
	return nil
}

// RetrieveForUser searches knowledge and the user's own logs for the question.
func (a *Agents) RetrieveForUser(ctx context.Context, s *State) error {
	if s.RetrievalQuery == "" {
		s.RetrievalQuery = s.Question
	}
	if s.RetrievalQuery == "" {
		s.RetrievalQuery = DefaultRetrievalQuery
	}
	a.retrieve(ctx, s, vectorstore.Filter{UserID: s.UserID})
	return nil
}

// retrieve never fails the run: the error text becomes the evidence notes.
func (a *Agents) retrieve(ctx context.Context, s *State, filter vectorstore.Filter) {
	snippets, err := a.retriever.Retrieve(ctx, s.RetrievalQuery, a.k, filter)
	if err != nil {
		log.Printf("SERVICE: retrieval failed for run %s: %v", s.RunID, err)
		retrievalFailures.Inc()
		s.Snippets = nil
		s.RAGNotes = fmt.Sprintf("RAG retrieval failed: %v", err)
		return
	}
	s.Snippets = snippets
	s.RAGNotes = FormatRAGNotes(snippets)
}

// FormatRAGNotes numbers snippets and names their source.
func FormatRAGNotes(snippets []models.Snippet) string {
	parts := make([]string, 0, len(snippets))
	for i, sn := range snippets {
		parts = append(parts, fmt.Sprintf("[%d] %s\n(source: %s)", i+1, sn.Text, sn.Source))
	}
	return strings.Join(parts, "\n---\n")
}

// Recommend drafts tomorrow's diet and training from the evidence.
func (a *Agents) Recommend(ctx context.Context, s *State) error {
	out, err := a.complete(ctx, "recommend", TierStrong, 0.4, recommenderPrompt, map[string]any{
		"language":    s.Language,
		"rag":         orNoInput(s.RAGNotes),
		"constraints": "none",
	})
	if err != nil {
		return err
	}
	s.Recommendations = out
	return nil
}

// Plan condenses summaries and evidence into an action plan.
func (a *Agents) Plan(ctx context.Context, s *State) error {
	out, err := a.complete(ctx, "plan", TierFast, 0.3, plannerPrompt, map[string]any{
		"language": s.Language,
		"diet":     s.DietSummary,
		"exercise": s.ExerciseSummary,
		"rag":      orNoInput(s.RAGNotes),
	})
	if err != nil {
		return err
	}
	s.Plan = out
	return nil
}

// Coach answers the run's question from summaries and evidence.
func (a *Agents) Coach(ctx context.Context, s *State) error {
	question := s.Question
	if question == "" {
		question = "Daily summary and recommendations"
	}
	out, err := a.complete(ctx, "coach", TierStrong, 0.2, coachPrompt, map[string]any{
		"language": s.Language,
		"question": question,
		"diet":     s.DietSummary,
		"exercise": s.ExerciseSummary,
		"rag":      orNoInput(s.RAGNotes),
	})
	if err != nil {
		return err
	}
	s.Answer = out
	return nil
}
