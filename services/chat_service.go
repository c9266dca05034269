package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github/itish2003/healthagent/models"
	"github/itish2003/healthagent/store"
)

const chatHistoryLimit = 20

// ChatHistoryStore persists chat sessions.
type ChatHistoryStore interface {
	AppendChat(ctx context.Context, sessionID string, msgs ...store.ChatMessage) error
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]store.ChatMessage, error)
}

// ChatService is the single-agent coach behind the chat endpoint.
type ChatService struct {
	model   ChatModel
	history ChatHistoryStore
}

func NewChatService(model ChatModel, history ChatHistoryStore) *ChatService {
	return &ChatService{model: model, history: history}
}

// Chat answers one message. A known session supplies earlier turns; without
// one the request's own history is used and a new session is started.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("chat message: %w", ErrEmptyInput)
	}

	msgs, err := renderPrompt(chatPrompt, map[string]any{})
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	var earlier []store.ChatMessage
	if sessionID != "" {
		earlier, err = s.history.ChatHistory(ctx, sessionID, chatHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load chat history: %w", err)
		}
	} else {
		sessionID = uuid.New().String()
		log.Printf("SERVICE: No session given, starting chat session %s", sessionID)
	}
	if len(earlier) == 0 {
		for _, t := range req.History {
			earlier = append(earlier, store.ChatMessage{Role: t.Role, Content: t.Content})
		}
	}
	for _, m := range earlier {
		msgs = append(msgs, Message{Role: chatRole(m.Role), Content: m.Content})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: message})

	answer, err := s.model.Complete(ctx, CompletionRequest{
		Step:        "chat",
		Tier:        TierFast,
		Temperature: 0.2,
		Messages:    msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if err := s.history.AppendChat(ctx, sessionID,
		store.ChatMessage{Role: string(RoleUser), Content: message},
		store.ChatMessage{Role: string(RoleAssistant), Content: answer},
	); err != nil {
		log.Printf("SERVICE WARN: could not persist chat turn for %s: %v", sessionID, err)
	}
	return &models.ChatResponse{OK: true, Answer: answer, SessionID: sessionID}, nil
}

func chatRole(role string) Role {
	switch strings.ToLower(role) {
	case "assistant", "ai", "model":
		return RoleAssistant
	default:
		return RoleUser
	}
}
