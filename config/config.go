// Package config centralises configuration parsing for the health agent.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values for the health agent.
type Config struct {
	HTTPAddress  string
	DataDir      string
	KnowledgeDir string
	SeedURLsFile string
	DBPath       string

	Timezone       string
	Location       *time.Location
	ReportHour     int
	ReportMinute   int
	ReportUsers    []string
	ReportLanguage string

	LLMProvider      string
	GeminiAPIKey     string
	GeminiChatModel  string
	GeminiCoachModel string

	AzureAPIKey       string
	AzureEndpoint     string
	AzureAPIVersion   string
	AzureDeployStrong string // gpt-4o class deployment
	AzureDeployFast   string // gpt-4o-mini class deployment

	EmbedProvider    string
	OllamaURL        string
	OllamaEmbedModel string
	GeminiEmbedModel string
	AzureDeployEmbed string

	VectorBackend    string
	ChromaURL        string
	ChromaCollection string
	RetrievalK       int

	MaxInputGraphemes int
	HTTPTimeout       time.Duration
	UnidocLicenseKey  string
}

// Load reads a .env file if present and then environment variables, applying
// defaults suitable for local development.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	dataDir := getEnv("DATA_DIR", "./data")
	cfg := Config{
		HTTPAddress:  getEnv("HTTP_ADDRESS", ":8000"),
		DataDir:      dataDir,
		KnowledgeDir: getEnv("KNOWLEDGE_DIR", dataDir+"/knowledge"),
		SeedURLsFile: getEnv("SEED_URLS_FILE", dataDir+"/web_sources/seed_urls.txt"),
		DBPath:       getEnv("DB_PATH", dataDir+"/healthagent.db"),

		Timezone:       getEnv("TIMEZONE", "Asia/Seoul"),
		ReportHour:     getIntEnv("REPORT_HOUR", 22),
		ReportMinute:   getIntEnv("REPORT_MINUTE", 0),
		ReportUsers:    splitAndTrim(getEnv("REPORT_USERS", "default_user")),
		ReportLanguage: getEnv("REPORT_LANGUAGE", "Korean"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiChatModel:  getEnv("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
		GeminiCoachModel: getEnv("GEMINI_COACH_MODEL", "gemini-2.5-pro"),

		AzureAPIKey:       os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureEndpoint:     os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIVersion:   getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),
		AzureDeployStrong: getEnv("AOAI_DEPLOY_GPT4O", "gpt-4o"),
		AzureDeployFast:   getEnv("AOAI_DEPLOY_GPT4O_MINI", "gpt-4o-mini"),

		EmbedProvider:    strings.ToLower(getEnv("EMBED_PROVIDER", "ollama")),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text:v1.5"),
		GeminiEmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		AzureDeployEmbed: getEnv("AOAI_DEPLOY_EMBED_3_LARGE", "text-embedding-3-large"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", "chroma")),
		ChromaURL:        getEnv("CHROMA_URL", "http://localhost:8000"),
		ChromaCollection: getEnv("CHROMA_COLLECTION", "health_rag"),
		RetrievalK:       getIntEnv("RETRIEVAL_K", 5),

		MaxInputGraphemes: getIntEnv("MAX_INPUT_GRAPHEMES", 12000),
		HTTPTimeout:       getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		UnidocLicenseKey:  os.Getenv("UNIDOC_LICENSE_KEY"),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.ReportHour < 0 || cfg.ReportHour > 23 {
		return Config{}, fmt.Errorf("REPORT_HOUR must be 0-23, got %d", cfg.ReportHour)
	}
	if cfg.ReportMinute < 0 || cfg.ReportMinute > 59 {
		return Config{}, fmt.Errorf("REPORT_MINUTE must be 0-59, got %d", cfg.ReportMinute)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
