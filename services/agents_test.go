package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github/itish2003/healthagent/models"
)

func TestReportGraphOrder(t *testing.T) {
	agents := NewAgents(&fakeModel{}, &stubRetriever{}, 3, 0)
	r, err := agents.BuildReportGraph()
	require.NoError(t, err)
	require.Equal(t, DailyReportGraph, r.Name())
	require.Equal(t, []string{"diet", "exercise", "retrieve", "recommend", "plan"}, r.Nodes())

	q, err := agents.BuildQueryGraph()
	require.NoError(t, err)
	require.Equal(t, []string{"diet", "exercise", "retrieve", "coach"}, q.Nodes())
}

func TestReportGraphThreadsState(t *testing.T) {
	model := &fakeModel{}
	retriever := &stubRetriever{snippets: []models.Snippet{
		{Text: "Eat 25g fiber.", Source: "https://nih.example/fiber"},
		{Text: "150 minutes of cardio weekly.", Source: "https://who.example/activity"},
	}}
	r, err := NewAgents(model, retriever, 3, 0).BuildReportGraph()
	require.NoError(t, err)

	s := &State{UserID: "alice", Language: "English", DietInput: "oatmeal, kimchi stew", ExerciseInput: "Activity Type\nRun"}
	require.NoError(t, r.Run(context.Background(), s))

	require.Equal(t, []string{"diet", "exercise", "recommend", "plan"}, model.steps())
	require.Equal(t, "diet output", s.DietSummary)
	require.Equal(t, "exercise output", s.ExerciseSummary)
	require.Equal(t, DefaultRetrievalQuery, s.RetrievalQuery)
	require.Len(t, s.Snippets, 2)
	require.Contains(t, s.RAGNotes, "[1] Eat 25g fiber.\n(source: https://nih.example/fiber)")
	require.Equal(t, "recommend output", s.Recommendations)
	require.Equal(t, "plan output", s.Plan)
	require.True(t, retriever.filters[0].KnowledgeOnly)

	diet, _ := model.call("diet")
	require.Equal(t, TierFast, diet.Tier)
	require.Equal(t, RoleSystem, diet.Messages[0].Role)
	require.Contains(t, diet.Messages[0].Content, "English")
	require.Contains(t, joined(diet), "oatmeal, kimchi stew")

	rec, _ := model.call("recommend")
	require.Equal(t, TierStrong, rec.Tier)
	require.Contains(t, joined(rec), "Eat 25g fiber.")

	plan, _ := model.call("plan")
	require.Contains(t, joined(plan), "diet output")
	require.Contains(t, joined(plan), "exercise output")
}

func TestRetrievalFailureBecomesNotes(t *testing.T) {
	model := &fakeModel{}
	retriever := &stubRetriever{err: errors.New("connection refused")}
	r, err := NewAgents(model, retriever, 3, 0).BuildReportGraph()
	require.NoError(t, err)

	before := testutil.ToFloat64(retrievalFailures)
	s := &State{UserID: "alice"}
	require.NoError(t, r.Run(context.Background(), s))
	require.Equal(t, before+1, testutil.ToFloat64(retrievalFailures))
	require.True(t, strings.HasPrefix(s.RAGNotes, "RAG retrieval failed: "))
	require.Contains(t, s.RAGNotes, "connection refused")
	require.Empty(t, s.Snippets)
	require.Equal(t, "plan output", s.Plan)

	rec, _ := model.call("recommend")
	require.Contains(t, joined(rec), "RAG retrieval failed")
}

func TestEmptyInputsUseMarker(t *testing.T) {
	model := &fakeModel{}
	r, err := NewAgents(model, &stubRetriever{}, 3, 0).BuildReportGraph()
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), &State{UserID: "alice"}))

	diet, _ := model.call("diet")
	require.Contains(t, joined(diet), noInputMarker)
	exercise, _ := model.call("exercise")
	require.Contains(t, joined(exercise), noInputMarker)
	rec, _ := model.call("recommend")
	require.Contains(t, joined(rec), noInputMarker)
}

func TestModelFailureStopsGraph(t *testing.T) {
	model := &fakeModel{failOn: "exercise"}
	r, err := NewAgents(model, &stubRetriever{}, 3, 0).BuildReportGraph()
	require.NoError(t, err)

	s := &State{}
	err = r.Run(context.Background(), s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "node exercise")
	require.Equal(t, []string{"diet"}, s.Trace)
	require.Empty(t, s.Plan)
}

func TestQueryGraphScopesRetrievalToUser(t *testing.T) {
	model := &fakeModel{}
	retriever := &stubRetriever{}
	r, err := NewAgents(model, retriever, 3, 0).BuildQueryGraph()
	require.NoError(t, err)

	s := &State{UserID: "bob", Question: "Was my protein enough?"}
	require.NoError(t, r.Run(context.Background(), s))
	require.Equal(t, "Was my protein enough?", s.RetrievalQuery)
	require.Equal(t, "bob", retriever.filters[0].UserID)
	require.False(t, retriever.filters[0].KnowledgeOnly)
	require.Equal(t, "coach output", s.Answer)

	coach, _ := model.call("coach")
	require.Equal(t, TierStrong, coach.Tier)
	require.Contains(t, joined(coach), "Was my protein enough?")
}

func TestLongInputIsClipped(t *testing.T) {
	model := &fakeModel{}
	r, err := NewAgents(model, &stubRetriever{}, 3, 10).BuildReportGraph()
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), &State{DietInput: strings.Repeat("rice ", 100)}))

	diet, _ := model.call("diet")
	require.Contains(t, joined(diet), "…[truncated]")
	require.NotContains(t, joined(diet), strings.Repeat("rice ", 3))
}

func TestFormatRAGNotes(t *testing.T) {
	require.Empty(t, FormatRAGNotes(nil))
	got := FormatRAGNotes([]models.Snippet{
		{Text: "a", Source: "s1"},
		{Text: "b", Source: "s2"},
	})
	require.Equal(t, "[1] a\n(source: s1)\n---\n[2] b\n(source: s2)", got)
}
