package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/store"
)

// CheckpointReader reads back the snapshots a graph run saved.
type CheckpointReader interface {
	LatestCheckpoint(ctx context.Context, runID string) (*store.Checkpoint, error)
}

// ReportService assembles and stores the daily Markdown report.
type ReportService struct {
	journal     *Journal
	graph       *Runner
	checkpoints CheckpointReader
	language    string
	now         func() time.Time
}

// NewReportService wires the report graph. checkpoints may be nil when the
// graph runs without a checkpointer.
func NewReportService(journal *Journal, graph *Runner, checkpoints CheckpointReader, language string) *ReportService {
	return &ReportService{journal: journal, graph: graph, checkpoints: checkpoints, language: language, now: time.Now}
}

// GenerateDaily runs the report graph over a user's day and saves the result.
// An empty day means today.
func (s *ReportService) GenerateDaily(ctx context.Context, userID, day string) (*models.ReportResponse, error) {
	user := resolveUser(userID)
	day, err := s.journal.ResolveDay(day)
	if err != nil {
		return nil, err
	}

	resp, err := s.generate(ctx, user, day)
	if err != nil {
		reportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	reportsTotal.WithLabelValues("generated").Inc()
	return resp, nil
}

func (s *ReportService) generate(ctx context.Context, user, day string) (*models.ReportResponse, error) {
	diet, err := s.journal.ReadDiet(user, day)
	if err != nil {
		return nil, err
	}
	exercise, err := s.journal.ReadExercise(user, day)
	if err != nil {
		return nil, err
	}

	state := &State{
		RunID:         uuid.New().String(),
		UserID:        user,
		Day:           day,
		Language:      s.language,
		DietInput:     diet,
		ExerciseInput: exercise,
	}
	log.Printf("SERVICE: Generating daily report for %s on %s (run %s)", user, day, state.RunID)
	if err := s.graph.Run(ctx, state); err != nil {
		return nil, fmt.Errorf("generate report for %s on %s: %w", user, day, err)
	}

	markdown := RenderReport(state, s.now().In(s.journal.Location))
	path, err := s.journal.SaveReport(user, day, markdown)
	if err != nil {
		return nil, err
	}
	log.Printf("SERVICE: Report written to %s", path)
	return &models.ReportResponse{OK: true, RunID: state.RunID, Day: day, ReportPath: path, ReportMD: markdown}, nil
}

// RenderReport lays out the report sections from a finished run.
func RenderReport(s *State, generatedAt time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Health Report (%s)\n\n", s.Day)
	fmt.Fprintf(&sb, "- User: %s\n", s.UserID)
	fmt.Fprintf(&sb, "- Generated: %s\n\n", generatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "## Diet Summary\n%s\n\n", s.DietSummary)
	fmt.Fprintf(&sb, "## Exercise Summary\n%s\n\n", s.ExerciseSummary)
	fmt.Fprintf(&sb, "## Coach Recommendations (evidence-based)\n%s\n\n", s.Recommendations)
	fmt.Fprintf(&sb, "## Action Plan\n%s\n", s.Plan)
	return sb.String()
}

// Latest returns the user's newest report.
func (s *ReportService) Latest(userID string) (*models.LatestReportResponse, error) {
	path, body, err := s.journal.LatestReport(resolveUser(userID))
	if err != nil {
		return nil, err
	}
	return &models.LatestReportResponse{OK: true, Path: path, Body: body}, nil
}

// Checkpoint returns the last snapshot saved for a run.
func (s *ReportService) Checkpoint(ctx context.Context, runID string) (*models.CheckpointResponse, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id: %w", ErrEmptyInput)
	}
	if s.checkpoints == nil {
		return nil, ErrNoCheckpoint
	}
	cp, err := s.checkpoints.LatestCheckpoint(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, runID)
	}
	if err != nil {
		return nil, err
	}
	return &models.CheckpointResponse{
		OK:        true,
		RunID:     cp.RunID,
		Graph:     cp.Graph,
		Node:      cp.Node,
		Seq:       cp.Seq,
		UserID:    cp.UserID,
		Day:       cp.Day,
		CreatedAt: cp.CreatedAt,
		State:     cp.State,
	}, nil
}
