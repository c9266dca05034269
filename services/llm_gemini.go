package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

// GeminiChatModel sends completions to the Gemini API.
type GeminiChatModel struct {
	client *genai.Client
	models map[Tier]string
}

// NewGeminiClient creates the shared Gemini client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w. Make sure GEMINI_API_KEY is set", err)
	}
	return client, nil
}

func NewGeminiChatModel(client *genai.Client, fastModel, strongModel string) *GeminiChatModel {
	return &GeminiChatModel{
		client: client,
		models: map[Tier]string{TierFast: fastModel, TierStrong: strongModel},
	}
}

func (g *GeminiChatModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model, ok := g.models[req.Tier]
	if !ok {
		model = g.models[TierFast]
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	log.Printf("SERVICE-HELPER: Sending %s prompt to Gemini (%s)...", req.Step, model)
	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(responseText.String()), nil
}
