package controller

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/services"
)

const maxUploadBytes = 10 << 20

// HealthController handles the HTTP requests for the health agent API. It
// depends on the services for the actual business logic.
type HealthController struct {
	ingest    *services.IngestService
	knowledge *services.KnowledgeService
	reports   *services.ReportService
	query     *services.QueryService
	chat      *services.ChatService
}

// NewHealthController is called from main to inject the service dependencies.
func NewHealthController(
	ingest *services.IngestService,
	knowledge *services.KnowledgeService,
	reports *services.ReportService,
	query *services.QueryService,
	chat *services.ChatService,
) *HealthController {
	return &HealthController{
		ingest:    ingest,
		knowledge: knowledge,
		reports:   reports,
		query:     query,
		chat:      chat,
	}
}

// RegisterRoutes wires the API endpoints onto a router group (/api/v1).
func (c *HealthController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ingest/diet/text", c.IngestDietText)
	rg.POST("/ingest/diet/audio", c.IngestDietAudio)
	rg.POST("/ingest/exercise", c.IngestExercise)
	rg.POST("/ingest/exercise/csv", c.UploadExerciseCSV)
	rg.POST("/rag/reindex", c.Reindex)
	rg.GET("/knowledge", c.ListKnowledge)
	rg.POST("/report/daily", c.DailyReport)
	rg.GET("/report/latest", c.LatestReport)
	rg.GET("/report/checkpoint", c.ReportCheckpoint)
	rg.POST("/query", c.Query)
	rg.POST("/chat", c.Chat)
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(ctx *gin.Context, err error, generic string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidDay),
		errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrEmptyInput),
		errors.Is(err, services.ErrMalformedCSV):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNoReport),
		errors.Is(err, services.ErrNoCheckpoint):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("CONTROLLER ERROR: %s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		ctx.JSON(status, models.ErrorResponse{Error: generic})
		return
	}
	ctx.JSON(status, models.ErrorResponse{Error: err.Error()})
}

func badRequest(ctx *gin.Context, msg string) {
	ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
}

// IngestDietText is the handler for POST /api/v1/ingest/diet/text.
func (c *HealthController) IngestDietText(ctx *gin.Context) {
	var req models.DietTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return
	}
	resp, err := c.ingest.IngestDiet(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, "Failed to store diet entry")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// IngestDietAudio is the handler for POST /api/v1/ingest/diet/audio.
func (c *HealthController) IngestDietAudio(ctx *gin.Context) {
	data, filename, ok := readUpload(ctx)
	if !ok {
		return
	}
	resp, err := c.ingest.IngestDietAudio(ctx.PostForm("user_id"), filename, data)
	if err != nil {
		respondError(ctx, err, "Failed to store audio")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// IngestExercise is the handler for POST /api/v1/ingest/exercise (CSV as JSON text).
func (c *HealthController) IngestExercise(ctx *gin.Context) {
	var req models.ExerciseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return
	}
	resp, err := c.ingest.IngestExercise(ctx.Request.Context(), req.UserID, req.Source, []byte(req.CSVText))
	if err != nil {
		respondError(ctx, err, "Failed to store exercise data")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// UploadExerciseCSV is the handler for POST /api/v1/ingest/exercise/csv (multipart).
func (c *HealthController) UploadExerciseCSV(ctx *gin.Context) {
	source := ctx.PostForm("source")
	if source == "" {
		badRequest(ctx, "Missing form field: source")
		return
	}
	data, _, ok := readUpload(ctx)
	if !ok {
		return
	}
	resp, err := c.ingest.IngestExercise(ctx.Request.Context(), ctx.PostForm("user_id"), source, data)
	if err != nil {
		respondError(ctx, err, "Failed to store exercise data")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

func readUpload(ctx *gin.Context) ([]byte, string, bool) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		badRequest(ctx, "Missing file upload: "+err.Error())
		return nil, "", false
	}
	if fh.Size > maxUploadBytes {
		badRequest(ctx, "File too large")
		return nil, "", false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(ctx, "Unreadable upload: "+err.Error())
		return nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		badRequest(ctx, "Unreadable upload: "+err.Error())
		return nil, "", false
	}
	return data, fh.Filename, true
}

// Reindex is the handler for POST /api/v1/rag/reindex.
func (c *HealthController) Reindex(ctx *gin.Context) {
	urls, chunks, err := c.knowledge.Reindex(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "Failed to rebuild the knowledge index")
		return
	}
	ctx.JSON(http.StatusOK, models.ReindexResponse{OK: true, Count: urls, Chunks: chunks})
}

// ListKnowledge is the handler for GET /api/v1/knowledge.
func (c *HealthController) ListKnowledge(ctx *gin.Context) {
	resp, err := c.knowledge.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "Failed to retrieve knowledge documents")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// DailyReport is the handler for POST /api/v1/report/daily.
func (c *HealthController) DailyReport(ctx *gin.Context) {
	var req models.ReportRequest
	// An empty body, chunked or not, means the default user and today.
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return
	}
	resp, err := c.reports.GenerateDaily(ctx.Request.Context(), req.UserID, req.Day)
	if err != nil {
		respondError(ctx, err, "Failed to generate report")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// LatestReport is the handler for GET /api/v1/report/latest.
func (c *HealthController) LatestReport(ctx *gin.Context) {
	resp, err := c.reports.Latest(ctx.Query("user_id"))
	if err != nil {
		respondError(ctx, err, "Failed to read report")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ReportCheckpoint is the handler for GET /api/v1/report/checkpoint?run_id=.
func (c *HealthController) ReportCheckpoint(ctx *gin.Context) {
	resp, err := c.reports.Checkpoint(ctx.Request.Context(), ctx.Query("run_id"))
	if err != nil {
		respondError(ctx, err, "Failed to read checkpoint")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Query is the handler for POST /api/v1/query.
func (c *HealthController) Query(ctx *gin.Context) {
	var req models.QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return
	}
	resp, err := c.query.Query(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, "Failed to generate AI response")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Chat is the handler for POST /api/v1/chat.
func (c *HealthController) Chat(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Invalid request body: "+err.Error())
		return
	}
	resp, err := c.chat.Chat(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, "Failed to generate AI response")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
