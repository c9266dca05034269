package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Journal handles the per-user files: diet logs, exercise exports and reports.
//
//	<DataDir>/<user>/diet_<day>.txt
//	<DataDir>/<user>/exercise_<source>_<day>.csv
//	<DataDir>/<user>/reports/report_<day>.md
type Journal struct {
	DataDir  string // The absolute path to the data directory
	Location *time.Location
	now      func() time.Time
}

func NewJournal(dataDir string, loc *time.Location) (*Journal, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for DATA_DIR: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Journal{DataDir: absPath, Location: loc, now: time.Now}, nil
}

// Today returns the current day in the journal's location.
func (j *Journal) Today() string {
	return j.now().In(j.Location).Format(dayLayout)
}

// ResolveDay validates day, defaulting an empty value to today.
func (j *Journal) ResolveDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return j.Today(), nil
	}
	if _, err := time.ParseInLocation(dayLayout, day, j.Location); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return day, nil
}

// userDir keeps every path inside DataDir by refusing anything but plain names.
func (j *Journal) userDir(userID string) (string, error) {
	if !safeName.MatchString(userID) {
		return "", fmt.Errorf("%w: user %q", ErrInvalidName, userID)
	}
	dir := filepath.Join(j.DataDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user dir: %w", err)
	}
	return dir, nil
}

func (j *Journal) dietPath(userID, day string) (string, error) {
	dir, err := j.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "diet_"+day+".txt"), nil
}

// AppendDiet appends one line of diet text to the user's file for day.
// Line breaks and runs of whitespace inside text collapse to single spaces.
func (j *Journal) AppendDiet(userID, day, text string) (string, error) {
	path, err := j.dietPath(userID, day)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return "", fmt.Errorf("open diet file: %w", err)
	}
	defer f.Close()

	line := strings.Join(strings.Fields(text), " ")
	if _, err := f.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("append diet file: %w", err)
	}
	return path, nil
}

// ReadDiet returns the diet log for day, or "" if nothing was logged.
func (j *Journal) ReadDiet(userID, day string) (string, error) {
	path, err := j.dietPath(userID, day)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read diet file: %w", err)
	}
	return string(content), nil
}

// SaveExercise writes the raw CSV for a day/source pair, replacing any earlier upload.
func (j *Journal) SaveExercise(userID, day, source string, csvText []byte) (string, error) {
	if !safeName.MatchString(source) {
		return "", fmt.Errorf("%w: source %q", ErrInvalidName, source)
	}
	dir, err := j.userDir(userID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("exercise_%s_%s.csv", source, day))
	if err := os.WriteFile(path, csvText, 0o644); err != nil {
		return "", fmt.Errorf("write exercise file: %w", err)
	}
	return path, nil
}

// ReadExercise joins every source's CSV for day, ordered by source name.
func (j *Journal) ReadExercise(userID, day string) (string, error) {
	dir, err := j.userDir(userID)
	if err != nil {
		return "", err
	}
	paths, err := filepath.Glob(filepath.Join(dir, "exercise_*_"+day+".csv"))
	if err != nil {
		return "", fmt.Errorf("glob exercise files: %w", err)
	}
	sort.Strings(paths)

	texts := make([]string, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read exercise file: %w", err)
		}
		texts = append(texts, strings.TrimRight(string(content), "\n"))
	}
	return strings.Join(texts, "\n\n"), nil
}

// SaveAudio stores an uploaded diet recording as-is.
func (j *Journal) SaveAudio(userID, day, filename string, data []byte) (string, error) {
	dir, err := j.userDir(userID)
	if err != nil {
		return "", err
	}
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." {
		return "", fmt.Errorf("%w: filename %q", ErrInvalidName, filename)
	}
	path := filepath.Join(dir, fmt.Sprintf("diet_audio_%s_%s", day, base))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}

func (j *Journal) reportDir(userID string) (string, error) {
	dir, err := j.userDir(userID)
	if err != nil {
		return "", err
	}
	reports := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reports, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	return reports, nil
}

// SaveReport writes the Markdown report for a user/day.
func (j *Journal) SaveReport(userID, day, markdown string) (string, error) {
	dir, err := j.reportDir(userID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report_"+day+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// LatestReport returns the path and body of the newest report.
func (j *Journal) LatestReport(userID string) (string, string, error) {
	dir, err := j.reportDir(userID)
	if err != nil {
		return "", "", err
	}
	files, err := filepath.Glob(filepath.Join(dir, "report_*.md"))
	if err != nil {
		return "", "", fmt.Errorf("glob reports: %w", err)
	}
	if len(files) == 0 {
		return "", "", ErrNoReport
	}
	sort.Strings(files)
	latest := files[len(files)-1]
	body, err := os.ReadFile(latest)
	if err != nil {
		return "", "", fmt.Errorf("read report: %w", err)
	}
	return latest, string(body), nil
}
