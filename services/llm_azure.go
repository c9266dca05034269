package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// AzureConfig names an Azure OpenAI resource and its deployments.
type AzureConfig struct {
	APIKey       string
	Endpoint     string
	APIVersion   string
	DeployFast   string
	DeployStrong string
	DeployEmbed  string
}

// NewAzureOpenAI builds the langchaingo client used for both chat and embeddings.
func NewAzureOpenAI(cfg AzureConfig) (*openai.LLM, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT must be set")
	}
	llm, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithAPIVersion(cfg.APIVersion),
		openai.WithModel(cfg.DeployFast),
		openai.WithEmbeddingModel(cfg.DeployEmbed),
	)
	if err != nil {
		return nil, fmt.Errorf("create azure openai client: %w", err)
	}
	return llm, nil
}

// AzureChatModel sends completions to Azure OpenAI deployments.
type AzureChatModel struct {
	llm         llms.Model
	deployments map[Tier]string
}

func NewAzureChatModel(llm llms.Model, cfg AzureConfig) *AzureChatModel {
	return &AzureChatModel{
		llm:         llm,
		deployments: map[Tier]string{TierFast: cfg.DeployFast, TierStrong: cfg.DeployStrong},
	}
}

func (a *AzureChatModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	deployment, ok := a.deployments[req.Tier]
	if !ok {
		deployment = a.deployments[TierFast]
	}

	msgs := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgType := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			msgType = llms.ChatMessageTypeSystem
		case RoleAssistant:
			msgType = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(msgType, m.Content))
	}

	resp, err := a.llm.GenerateContent(ctx, msgs,
		llms.WithModel(deployment),
		llms.WithTemperature(float64(req.Temperature)),
	)
	if err != nil {
		return "", fmt.Errorf("azure openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
