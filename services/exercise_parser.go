package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Exercise export sources.
const (
	SourceStrava    = "strava"
	SourceGoogleFit = "google_fit"
	SourceManual    = "manual"
)

// Columns we look for in each export. Exports vary between app versions, so
// these only drive the preview; none of them is required.
var knownColumns = map[string][]string{
	SourceStrava: {
		"activity date", "activity type", "distance", "moving time", "moving_time",
		"elapsed time", "calories", "average heart rate", "average_heartrate", "max heart rate",
	},
	SourceGoogleFit: {
		"date", "move minutes count", "calories (kcal)", "distance (m)", "heart points",
		"step count", "average heart rate (bpm)",
	},
}

// ExerciseTable is a parsed exercise export.
type ExerciseTable struct {
	Source string
	Header []string
	Rows   [][]string
}

// NormalizeSource lower-cases a source name and maps unknown values to manual.
func NormalizeSource(source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	switch s {
	case SourceStrava, SourceGoogleFit, SourceManual:
		return s
	case "googlefit", "google-fit", "google fit":
		return SourceGoogleFit
	case "", "other":
		return SourceManual
	default:
		return s
	}
}

// ParseExerciseCSV validates a CSV export. Sources other than Google Fit are
// read with the Strava rules.
func ParseExerciseCSV(source, text string) (*ExerciseTable, error) {
	source = NormalizeSource(source)
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.TrimLeadingSpace = true
	if source == SourceGoogleFit {
		// Google Fit daily aggregates leave trailing metrics empty.
		r.FieldsPerRecord = -1
	}

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrMalformedCSV, len(rows)+2, len(rec), len(header))
		}
		if isBlankRecord(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrMalformedCSV)
	}
	return &ExerciseTable{Source: source, Header: header, Rows: rows}, nil
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// RecognizedColumns lists the header columns that match the source's known export columns.
func (t *ExerciseTable) RecognizedColumns() []string {
	known := knownColumns[t.Source]
	if known == nil {
		known = knownColumns[SourceStrava]
	}
	var out []string
	for _, h := range t.Header {
		lh := strings.ToLower(h)
		for _, k := range known {
			if lh == k {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// Preview renders up to maxRows rows as a Markdown table.
func (t *ExerciseTable) Preview(maxRows int) string {
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(t.Header, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(t.Header)) + "\n")
	for i, row := range t.Rows {
		if i >= maxRows {
			break
		}
		cells := make([]string, len(t.Header))
		copy(cells, row)
		for c := range cells {
			cells[c] = strings.ReplaceAll(cells[c], "|", "\\|")
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return sb.String()
}
