package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github/itish2003/healthagent/models"
)

const exercisePreviewRows = 50

// IngestService stores diet logs and exercise exports and mirrors them into
// the vector store for user-scoped retrieval.
type IngestService struct {
	journal   *Journal
	knowledge *KnowledgeService
}

func NewIngestService(journal *Journal, knowledge *KnowledgeService) *IngestService {
	return &IngestService{journal: journal, knowledge: knowledge}
}

func resolveUser(userID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return id
	}
	return models.DefaultUserID
}

// IngestDiet appends free-text diet to today's log.
func (s *IngestService) IngestDiet(ctx context.Context, req models.DietTextRequest) (*models.DietTextResponse, error) {
	text := strings.TrimSpace(req.Text)
	if note := strings.TrimSpace(req.Note); note != "" {
		if text == "" {
			text = note
		} else {
			text = text + " (note: " + note + ")"
		}
	}
	if text == "" {
		return nil, fmt.Errorf("diet text: %w", ErrEmptyInput)
	}

	user := resolveUser(req.UserID)
	day := s.journal.Today()
	path, err := s.journal.AppendDiet(user, day, text)
	if err != nil {
		return nil, err
	}
	ingestTotal.WithLabelValues("diet").Inc()
	log.Printf("SERVICE: Appended diet entry for %s on %s", user, day)

	// The file is the record; indexing only feeds retrieval.
	chunks, err := s.knowledge.IngestUserText(ctx, user, fmt.Sprintf("diet:%s:%s", user, day), text, false)
	if err != nil {
		log.Printf("SERVICE WARN: could not index diet entry for %s: %v", user, err)
	}
	return &models.DietTextResponse{OK: true, Day: day, Path: path, Chunks: chunks}, nil
}

// IngestDietAudio keeps an uploaded recording. There is no transcription.
func (s *IngestService) IngestDietAudio(userID, filename string, data []byte) (*models.DietAudioResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("audio upload: %w", ErrEmptyInput)
	}
	user := resolveUser(userID)
	path, err := s.journal.SaveAudio(user, s.journal.Today(), filename, data)
	if err != nil {
		return nil, err
	}
	ingestTotal.WithLabelValues("diet_audio").Inc()
	return &models.DietAudioResponse{
		OK:    true,
		Saved: path,
		Note:  "Audio stored as-is; submit a transcript through the diet text endpoint to include it in reports.",
	}, nil
}

// IngestExercise validates and stores a CSV export for today. A second upload
// from the same source on the same day replaces the first.
func (s *IngestService) IngestExercise(ctx context.Context, userID, source string, csvText []byte) (*models.ExerciseResponse, error) {
	source = NormalizeSource(source)
	table, err := ParseExerciseCSV(source, string(csvText))
	if err != nil {
		return nil, err
	}

	user := resolveUser(userID)
	day := s.journal.Today()
	path, err := s.journal.SaveExercise(user, day, source, csvText)
	if err != nil {
		return nil, err
	}
	ingestTotal.WithLabelValues("exercise").Inc()
	log.Printf("SERVICE: Saved %d %s rows for %s on %s (recognized columns: %v)",
		len(table.Rows), source, user, day, table.RecognizedColumns())

	preview := fmt.Sprintf("Exercise data (%s) on %s, sample:\n%s", source, day, table.Preview(exercisePreviewRows))
	if _, err := s.knowledge.IngestUserText(ctx, user, fmt.Sprintf("exercise:%s:%s:%s", user, source, day), preview, true); err != nil {
		log.Printf("SERVICE WARN: could not index exercise upload for %s: %v", user, err)
	}
	return &models.ExerciseResponse{OK: true, Saved: path, Rows: len(table.Rows)}, nil
}
