package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-lessons/internal/config"
)

// FormatJSON asks the backend to constrain its output to a JSON document.
const FormatJSON = "json"

// Request describes a language model prompt.
type Request struct {
	Prompt      string
	System      string
	Format      string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// RequestFromConfig builds a request carrying the configured sampling defaults.
func RequestFromConfig(cfg config.LLMConfig, prompt string) Request {
	return Request{Prompt: prompt, MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
}

// Collect drains a generation into a single string.
func Collect(ctx context.Context, gen Generator, req Request) (string, error) {
	var b strings.Builder
	err := gen.Generate(ctx, req, func(c Chunk) error {
		b.WriteString(c.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// New selects a backend for the configured mode.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model, time.Duration(cfg.TimeoutMS)*time.Millisecond), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "openai":
		baseURL := ""
		if strings.HasSuffix(strings.TrimRight(cfg.Endpoint, "/"), "/v1") {
			baseURL = cfg.Endpoint
		}
		return NewOpenAIGenerator(cfg.APIKey, baseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm mode %q", cfg.Mode)
	}
}
