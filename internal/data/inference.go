package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/taskops/telegram-bridge/internal/biz/repo"
)

// generateTimeout is deliberately generous: local inference is slow.
const generateTimeout = 120 * time.Second

// inferenceRepo implements the Inference repository over the local service's
// OpenAI-compatible endpoint.
type inferenceRepo struct {
	client *openai.Client
}

// NewInferenceRepo creates a new local inference client. baseURL points at
// the local service, e.g. http://127.0.0.1:11434.
func NewInferenceRepo(baseURL string) repo.Inference {
	config := openai.DefaultConfig("")
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return &inferenceRepo{client: openai.NewClientWithConfig(config)}
}

func (r *inferenceRepo) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (r *inferenceRepo) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := r.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}
