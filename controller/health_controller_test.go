package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/services"
	"github/itish2003/healthagent/store"
	"github/itish2003/healthagent/vectorstore"
)

type echoModel struct {
	fail bool
}

func (m echoModel) Complete(_ context.Context, req services.CompletionRequest) (string, error) {
	if m.fail {
		return "", errors.New("quota exceeded for key sk-secret")
	}
	return req.Step + " output", nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestRouter(t *testing.T, model services.ChatModel) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	journal, err := services.NewJournal(filepath.Join(dir, "data"), time.UTC)
	require.NoError(t, err)
	db, err := store.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	knowledge := services.NewKnowledgeService(vectorstore.NewMemory(), constEmbedder{}, http.DefaultClient,
		filepath.Join(dir, "seed_urls.txt"), filepath.Join(dir, "knowledge"))
	agents := services.NewAgents(model, knowledge, 3, 0)
	reportGraph, err := agents.BuildReportGraph(services.WithCheckpointer(db))
	require.NoError(t, err)
	queryGraph, err := agents.BuildQueryGraph()
	require.NoError(t, err)

	hc := NewHealthController(
		services.NewIngestService(journal, knowledge),
		knowledge,
		services.NewReportService(journal, reportGraph, db, "English"),
		services.NewQueryService(knowledge, queryGraph, "English"),
		services.NewChatService(model, db),
	)
	router := gin.New()
	hc.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, router *gin.Engine, path string, fields map[string]string, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIngestDietText(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"user_id":"alice","text":"lunch: bibimbap"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.DietTextResponse](t, rec)
	require.True(t, resp.OK)
	require.FileExists(t, resp.Path)

	rec = do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"text":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"text":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"user_id":"../root","text":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestExerciseJSON(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodPost, "/api/v1/ingest/exercise",
		`{"source":"strava","csv_text":"Activity Type,Distance\nRun,5.0\nRide,20.0\n"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, decode[models.ExerciseResponse](t, rec).Rows)

	rec = do(router, http.MethodPost, "/api/v1/ingest/exercise", `{"csv_text":"a\n1\n"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/ingest/exercise", `{"source":"strava","csv_text":"a,b\n"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[models.ErrorResponse](t, rec).Error, "malformed CSV")
}

func TestUploadExerciseCSV(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := multipartUpload(t, router, "/api/v1/ingest/exercise/csv",
		map[string]string{"source": "google_fit", "user_id": "alice"},
		"fit.csv", []byte("Date,Step count\n2025-03-01,8000\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.ExerciseResponse](t, rec)
	require.Equal(t, 1, resp.Rows)
	require.Contains(t, resp.Saved, "exercise_google_fit_")

	rec = multipartUpload(t, router, "/api/v1/ingest/exercise/csv", nil, "fit.csv", []byte("a\n1\n"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = multipartUpload(t, router, "/api/v1/ingest/exercise/csv", map[string]string{"source": "strava"}, "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestDietAudio(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := multipartUpload(t, router, "/api/v1/ingest/diet/audio", nil, "dinner.m4a", []byte("audio-bytes"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, decode[models.DietAudioResponse](t, rec).OK)
}

func TestDailyReportAndLatest(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodGet, "/api/v1/report/latest?user_id=alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/report/daily", `{"user_id":"alice","day":"2025-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[models.ReportResponse](t, rec)
	require.Equal(t, "2025-03-01", report.Day)
	require.Contains(t, report.ReportMD, "## Action Plan\nplan output")

	rec = do(router, http.MethodGet, "/api/v1/report/latest?user_id=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[models.LatestReportResponse](t, rec)
	require.Equal(t, report.ReportPath, latest.Path)

	rec = do(router, http.MethodPost, "/api/v1/report/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// A chunked empty body carries no Content-Length.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/report/daily", strings.NewReader(""))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	chunked := httptest.NewRecorder()
	router.ServeHTTP(chunked, req)
	require.Equal(t, http.StatusOK, chunked.Code)
	require.Contains(t, decode[models.ReportResponse](t, chunked).ReportMD, "- User: "+models.DefaultUserID)

	rec = do(router, http.MethodPost, "/api/v1/report/daily", `{"day":"tomorrow"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelFailureIsHidden(t *testing.T) {
	router := newTestRouter(t, echoModel{fail: true})

	rec := do(router, http.MethodPost, "/api/v1/report/daily", `{"user_id":"alice"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decode[models.ErrorResponse](t, rec).Error
	require.Equal(t, "Failed to generate report", msg)
	require.NotContains(t, msg, "sk-secret")
}

func TestQueryAndChat(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"user_id":"alice","text":"dinner: salmon"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/query", `{"user_id":"alice","question":"Did I eat enough protein?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[models.QueryResponse](t, rec)
	require.Equal(t, "coach output", q.Answer)
	require.Equal(t, []string{"dinner: salmon"}, q.Context)

	rec = do(router, http.MethodPost, "/api/v1/query", `{"user_id":"alice"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/api/v1/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	chat := decode[models.ChatResponse](t, rec)
	require.Equal(t, "chat output", chat.Answer)
	require.NotEmpty(t, chat.SessionID)
}

func TestListKnowledgeAndReindex(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodPost, "/api/v1/ingest/diet/text", `{"text":"kimchi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/knowledge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decode[models.KnowledgeListResponse](t, rec).Count)

	// No seed file has been written.
	rec = do(router, http.MethodPost, "/api/v1/rag/reindex", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReportCheckpoint(t *testing.T) {
	router := newTestRouter(t, echoModel{})

	rec := do(router, http.MethodPost, "/api/v1/report/daily", `{"user_id":"alice","day":"2025-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	runID := decode[models.ReportResponse](t, rec).RunID
	require.NotEmpty(t, runID)

	rec = do(router, http.MethodGet, "/api/v1/report/checkpoint?run_id="+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cp := decode[models.CheckpointResponse](t, rec)
	require.Equal(t, "plan", cp.Node)
	require.Equal(t, "2025-03-01", cp.Day)

	var state map[string]any
	require.NoError(t, json.Unmarshal(cp.State, &state))
	require.Equal(t, "plan output", state["plan"])

	rec = do(router, http.MethodGet, "/api/v1/report/checkpoint?run_id=nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/report/checkpoint", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
