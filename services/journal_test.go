package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	j, err := NewJournal(t.TempDir(), loc)
	require.NoError(t, err)
	// 2025-03-01 23:30 in Seoul, still 2025-03-01 14:30 in UTC.
	j.now = func() time.Time { return time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC) }
	return j
}

func TestResolveDay(t *testing.T) {
	j := newTestJournal(t)

	day, err := j.ResolveDay("")
	require.NoError(t, err)
	require.Equal(t, "2025-03-01", day)

	day, err = j.ResolveDay(" 2024-12-31 ")
	require.NoError(t, err)
	require.Equal(t, "2024-12-31", day)

	for _, bad := range []string{"2024-13-01", "yesterday", "2024/01/01", "../../etc"} {
		_, err := j.ResolveDay(bad)
		require.ErrorIs(t, err, ErrInvalidDay, bad)
	}
}

func TestTodayUsesJournalLocation(t *testing.T) {
	j := newTestJournal(t)
	j.now = func() time.Time { return time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC) }
	require.Equal(t, "2025-03-02", j.Today())
}

func TestDietAppendsLines(t *testing.T) {
	j := newTestJournal(t)

	text, err := j.ReadDiet("alice", "2025-03-01")
	require.NoError(t, err)
	require.Empty(t, text)

	path, err := j.AppendDiet("alice", "2025-03-01", "breakfast: oatmeal\n")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(j.DataDir, "alice", "diet_2025-03-01.txt"), path)
	_, err = j.AppendDiet("alice", "2025-03-01", "lunch: bibimbap")
	require.NoError(t, err)

	_, err = j.AppendDiet("alice", "2025-03-01", "dinner:\r\n  eggs\n\ttoast")
	require.NoError(t, err)

	text, err = j.ReadDiet("alice", "2025-03-01")
	require.NoError(t, err)
	require.Equal(t, "breakfast: oatmeal\nlunch: bibimbap\ndinner: eggs toast\n", text)

	other, err := j.ReadDiet("bob", "2025-03-01")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestUserNamesAreConfinedToDataDir(t *testing.T) {
	j := newTestJournal(t)
	for _, user := range []string{"../evil", "a/b", "", "a b"} {
		_, err := j.AppendDiet(user, "2025-03-01", "x")
		require.ErrorIs(t, err, ErrInvalidName, user)
	}
	_, err := j.SaveExercise("alice", "2025-03-01", "../x", []byte("a"))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestExerciseFilesPerSource(t *testing.T) {
	j := newTestJournal(t)

	_, err := j.SaveExercise("alice", "2025-03-01", SourceStrava, []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	_, err = j.SaveExercise("alice", "2025-03-01", SourceGoogleFit, []byte("c,d\n3,4\n"))
	require.NoError(t, err)
	// Same source and day replaces the first upload.
	_, err = j.SaveExercise("alice", "2025-03-01", SourceStrava, []byte("a,b\n5,6\n"))
	require.NoError(t, err)
	_, err = j.SaveExercise("alice", "2025-03-02", SourceStrava, []byte("a,b\n7,8\n"))
	require.NoError(t, err)

	text, err := j.ReadExercise("alice", "2025-03-01")
	require.NoError(t, err)
	require.Equal(t, "c,d\n3,4\n\na,b\n5,6", text)

	none, err := j.ReadExercise("alice", "2025-02-28")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSaveAudioStripsDirectories(t *testing.T) {
	j := newTestJournal(t)
	path, err := j.SaveAudio("alice", "2025-03-01", "../../lunch.m4a", []byte("RIFF"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(j.DataDir, "alice"), filepath.Dir(path))
	require.True(t, strings.HasSuffix(path, "diet_audio_2025-03-01_lunch.m4a"))

	_, err = j.SaveAudio("alice", "2025-03-01", "", []byte("RIFF"))
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestLatestReport(t *testing.T) {
	j := newTestJournal(t)

	_, _, err := j.LatestReport("alice")
	require.ErrorIs(t, err, ErrNoReport)

	_, err = j.SaveReport("alice", "2025-02-28", "old")
	require.NoError(t, err)
	want, err := j.SaveReport("alice", "2025-03-01", "new")
	require.NoError(t, err)

	path, body, err := j.LatestReport("alice")
	require.NoError(t, err)
	require.Equal(t, want, path)
	require.Equal(t, "new", body)

	_, err = j.SaveReport("alice", "2025-03-01", "regenerated")
	require.NoError(t, err)
	content, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, "regenerated", string(content))
}
