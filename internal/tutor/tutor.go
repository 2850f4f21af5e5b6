// Package tutor turns lesson text into vocabulary and practice conversations
// using a language model.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/llm"
)

// ErrNoConversation is returned when the model response holds no JSON object.
var ErrNoConversation = errors.New("model response contained no conversation json")

// Tutor drives the language model prompts for a lesson.
type Tutor struct {
	gen       llm.Generator
	cfg       config.LLMConfig
	wordCount int
	logger    *slog.Logger
}

// New constructs a Tutor. wordCount bounds the vocabulary picked per lesson.
func New(gen llm.Generator, cfg config.LLMConfig, wordCount int, logger *slog.Logger) *Tutor {
	if wordCount <= 0 {
		wordCount = 10
	}
	return &Tutor{
		gen:       gen,
		cfg:       cfg,
		wordCount: wordCount,
		logger:    logger.With(slog.String("component", "tutor")),
	}
}

// PickWords selects vocabulary from text for the given grade. Model failures
// are logged and produce an empty list.
func (t *Tutor) PickWords(ctx context.Context, text string, grade int) []string {
	req := llm.RequestFromConfig(t.cfg, pickWordsPrompt(text, grade, t.wordCount))
	response, err := llm.Collect(ctx, t.gen, req)
	if err != nil {
		t.logger.Warn("pick words failed", slog.String("error", err.Error()))
		return []string{}
	}
	return SplitWords(response, t.wordCount)
}

// SplitWords parses a comma separated model answer, keeping at most limit words.
func SplitWords(response string, limit int) []string {
	cleaned := strings.Trim(response, "[]\"' ")
	parts := strings.Split(cleaned, ",")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		words = append(words, strings.TrimSpace(p))
	}
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	return words
}

type conversationEnvelope struct {
	Conversation []lesson.RawTurn `json:"conversation"`
}

// Conversation asks the model for a dialogue that practices words.
func (t *Tutor) Conversation(ctx context.Context, words []string, grade int) ([]lesson.RawTurn, error) {
	req := llm.RequestFromConfig(t.cfg, conversationPrompt(words, grade))
	req.Format = llm.FormatJSON
	response, err := llm.Collect(ctx, t.gen, req)
	if err != nil {
		return nil, fmt.Errorf("generate conversation: %w", err)
	}
	turns, err := ParseConversation(response)
	if err != nil {
		t.logger.Warn("unusable conversation response", slog.String("error", err.Error()), slog.Int("response_bytes", len(response)))
		return nil, err
	}
	return turns, nil
}

// ParseConversation extracts the outermost JSON object from a model answer
// and decodes its conversation array.
func ParseConversation(response string) ([]lesson.RawTurn, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end < start {
		return nil, ErrNoConversation
	}
	var env conversationEnvelope
	if err := sonic.UnmarshalString(response[start:end+1], &env); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if env.Conversation == nil {
		return nil, fmt.Errorf("decode conversation: %w", ErrNoConversation)
	}
	return env.Conversation, nil
}
