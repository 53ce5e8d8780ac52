package provider

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/liliang-cn/askdesk/internal/config"
)

// OpenAILLM generates with any OpenAI-compatible chat completion endpoint
type OpenAILLM struct {
	pool *Pool
	name string
	cfg  config.FallbackConfig
	llm  config.LLMConfig
}

// NewOpenAILLM creates the secondary generation backend
func NewOpenAILLM(pool *Pool, cfg config.FallbackConfig, llm config.LLMConfig) *OpenAILLM {
	name := cfg.Name
	if name == "" {
		name = PreferenceSecondary
	}
	return &OpenAILLM{pool: pool, name: name, cfg: cfg, llm: llm}
}

// Name identifies the provider
func (l *OpenAILLM) Name() string {
	return l.name
}

// Complete sends a system and a user message
func (l *OpenAILLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client, err := l.pool.OpenAI()
	if err != nil {
		return "", err
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   l.llm.MaxTokens,
		Temperature: float32(l.llm.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
