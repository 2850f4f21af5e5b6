package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/llm"
)

type fakeGenerator struct {
	response string
	err      error
	requests []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return consumer(llm.Chunk{Content: f.response})
}

func newTutor(gen llm.Generator) *Tutor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(gen, config.LLMConfig{MaxTokens: 256}, 10, logger)
}

func TestSplitWords(t *testing.T) {
	cases := map[string]struct {
		in    string
		limit int
		want  []string
	}{
		"plain":    {in: "alpha, beta,gamma", limit: 10, want: []string{"alpha", "beta", "gamma"}},
		"brackets": {in: `["alpha", "beta"]`, limit: 10, want: []string{"alpha\"", "\"beta"}},
		"limit":    {in: "a,b,c,d", limit: 2, want: []string{"a", "b"}},
		"empty":    {in: "", limit: 10, want: []string{""}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := SplitWords(tc.in, tc.limit)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("SplitWords(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPickWordsUsesPromptAndLimit(t *testing.T) {
	gen := &fakeGenerator{response: " 'a, b, c, d, e, f, g, h, i, j, k, l' "}
	words := newTutor(gen).PickWords(context.Background(), "The river flows.", 4)
	if len(words) != 10 || words[0] != "a" || words[9] != "j" {
		t.Fatalf("unexpected words %q", words)
	}
	prompt := gen.requests[0].Prompt
	if !strings.Contains(prompt, "grade 4") || !strings.Contains(prompt, "The river flows.") {
		t.Fatalf("prompt missing grade or text: %s", prompt)
	}
	if gen.requests[0].Format != "" {
		t.Fatalf("word picking should not request json")
	}
}

func TestPickWordsErrorYieldsEmpty(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	words := newTutor(gen).PickWords(context.Background(), "text", 8)
	if words == nil || len(words) != 0 {
		t.Fatalf("expected empty list, got %#v", words)
	}
}

func TestConversationExtractsJSON(t *testing.T) {
	gen := &fakeGenerator{response: "Sure! Here it is:\n" +
		`{"conversation": [{"speaker": "Student1", "text": "Hi"}, {"Student2": "Hello"}]}` +
		"\nHope this helps."}
	turns, err := newTutor(gen).Conversation(context.Background(), []string{"hi"}, 8)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Shape != lesson.ShapeExplicit || turns[0].Speaker != "Student1" {
		t.Fatalf("unexpected first turn %+v", turns[0])
	}
	if turns[1].Shape != lesson.ShapeKeyed || turns[1].Speaker != "Student2" || turns[1].Text != "Hello" {
		t.Fatalf("unexpected second turn %+v", turns[1])
	}
	if gen.requests[0].Format != llm.FormatJSON {
		t.Fatalf("expected json format request")
	}
}

func TestParseConversationErrors(t *testing.T) {
	cases := map[string]string{
		"no json":      "I cannot help with that.",
		"not an array": `{"conversation": {"system": "failed"}}`,
		"missing key":  `{"dialogue": []}`,
		"broken":       `{"conversation": [}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConversation(in); err == nil {
				t.Fatalf("expected error for %q", in)
			}
		})
	}
}

func TestConversationGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	if _, err := newTutor(gen).Conversation(context.Background(), nil, 8); err == nil {
		t.Fatal("expected error")
	}
}
