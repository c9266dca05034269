package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"

	"github/itish2003/healthagent/config"
	"github/itish2003/healthagent/controller"
	"github/itish2003/healthagent/services"
	"github/itish2003/healthagent/store"
	"github/itish2003/healthagent/vectorstore"
)

// app holds every wired component. Commands build one with newApp and
// release it with Close.
type app struct {
	cfg       config.Config
	vectors   vectorstore.Store
	db        *store.Store
	journal   *services.Journal
	knowledge *services.KnowledgeService
	ingest    *services.IngestService
	reports   *services.ReportService
	query     *services.QueryService
	chat      *services.ChatService
	closers   []io.Closer
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}
	services.ConfigurePDFLicense(cfg.UnidocLicenseKey)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	vectors, err := buildVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.vectors = vectors
	if c, ok := vectors.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	var geminiClient *genai.Client
	gemini := func() (*genai.Client, error) {
		if geminiClient != nil {
			return geminiClient, nil
		}
		c, err := services.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		geminiClient = c
		return c, nil
	}
	azureCfg := services.AzureConfig{
		APIKey:       cfg.AzureAPIKey,
		Endpoint:     cfg.AzureEndpoint,
		APIVersion:   cfg.AzureAPIVersion,
		DeployFast:   cfg.AzureDeployFast,
		DeployStrong: cfg.AzureDeployStrong,
		DeployEmbed:  cfg.AzureDeployEmbed,
	}

	embedder, err := buildEmbedder(cfg, httpClient, gemini, azureCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	model, err := buildChatModel(cfg, gemini, azureCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db)

	journal, err := services.NewJournal(cfg.DataDir, cfg.Location)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.journal = journal

	a.knowledge = services.NewKnowledgeService(vectors, embedder, httpClient, cfg.SeedURLsFile, cfg.KnowledgeDir)
	agents := services.NewAgents(model, a.knowledge, cfg.RetrievalK, cfg.MaxInputGraphemes)

	reportGraph, err := agents.BuildReportGraph(services.WithCheckpointer(db))
	if err != nil {
		a.Close()
		return nil, err
	}
	queryGraph, err := agents.BuildQueryGraph(services.WithCheckpointer(db))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.ingest = services.NewIngestService(journal, a.knowledge)
	a.reports = services.NewReportService(journal, reportGraph, db, cfg.ReportLanguage)
	a.query = services.NewQueryService(a.knowledge, queryGraph, cfg.ReportLanguage)
	a.chat = services.NewChatService(model, db)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("Warning: failed to close resource: %v", err)
		}
	}
	a.closers = nil
}

func buildVectorStore(ctx context.Context, cfg config.Config) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "chroma":
		log.Printf("Using Chroma at %s", cfg.ChromaURL)
		return vectorstore.NewChroma(ctx, cfg.ChromaURL, cfg.ChromaCollection)
	case "memory":
		log.Printf("VECTOR_BACKEND=memory, using in-memory vector store")
		return vectorstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func buildEmbedder(cfg config.Config, httpClient *http.Client, gemini func() (*genai.Client, error), azureCfg services.AzureConfig) (services.Embedder, error) {
	switch cfg.EmbedProvider {
	case "ollama":
		return services.NewOllamaEmbedder(httpClient, cfg.OllamaURL, cfg.OllamaEmbedModel), nil
	case "gemini":
		client, err := gemini()
		if err != nil {
			return nil, err
		}
		return services.NewGeminiEmbedder(client, cfg.GeminiEmbedModel), nil
	case "azure":
		llm, err := services.NewAzureOpenAI(azureCfg)
		if err != nil {
			return nil, err
		}
		return services.NewLangchainEmbedder(llm)
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
}

func buildChatModel(cfg config.Config, gemini func() (*genai.Client, error), azureCfg services.AzureConfig) (services.ChatModel, error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := gemini()
		if err != nil {
			return nil, err
		}
		log.Println("Successfully connected to Google Gemini.")
		return services.Instrument(services.NewGeminiChatModel(client, cfg.GeminiChatModel, cfg.GeminiCoachModel)), nil
	case "azure":
		llm, err := services.NewAzureOpenAI(azureCfg)
		if err != nil {
			return nil, err
		}
		log.Printf("Using Azure OpenAI deployments %s / %s", azureCfg.DeployFast, azureCfg.DeployStrong)
		return services.Instrument(services.NewAzureChatModel(llm, azureCfg)), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// newRouter builds the gin engine with CORS, health, metrics and the API group.
func newRouter(hc *controller.HealthController) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Health Agent API",
			"version": "1.0.0",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	hc.RegisterRoutes(router.Group("/api/v1"))
	return router
}
