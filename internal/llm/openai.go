package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

type openAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator talks to any OpenAI-compatible chat completion API.
// baseURL may be empty to use the public endpoint.
func NewOpenAIGenerator(apiKey, baseURL, model string) Generator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *openAIGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
	if req.Format == FormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	start := time.Now()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return consumer(Chunk{Latency: time.Since(start)})
		}
		if err != nil {
			return fmt.Errorf("receive completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := Chunk{
			Content: resp.Choices[0].Delta.Content,
			Partial: true,
			Latency: time.Since(start),
		}
		if resp.Usage != nil {
			chunk.PromptTokens = resp.Usage.PromptTokens
			chunk.CompletionTokens = resp.Usage.CompletionTokens
		}
		if err := consumer(chunk); err != nil {
			return err
		}
	}
}
