package services

import (
	"context"
	"time"
)

// Role tags a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Tier selects the model class. Summaries run on the fast tier; synthesis
// steps that weigh evidence run on the strong one.
type Tier string

const (
	TierFast   Tier = "fast"
	TierStrong Tier = "strong"
)

type Message struct {
	Role    Role
	Content string
}

type CompletionRequest struct {
	Step        string // label for logs and metrics
	Tier        Tier
	Temperature float32
	Messages    []Message
}

// ChatModel is a hosted chat-completion backend.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Instrument wraps a ChatModel with call timing.
func Instrument(m ChatModel) ChatModel {
	return instrumentedChatModel{next: m}
}

type instrumentedChatModel struct {
	next ChatModel
}

func (i instrumentedChatModel) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, req)
	llmCallDuration.WithLabelValues(req.Step, string(req.Tier)).Observe(time.Since(start).Seconds())
	if err != nil {
		llmCallErrors.WithLabelValues(req.Step).Inc()
	}
	return out, err
}
