package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-lessons/internal/config"
)

func TestMockGeneratorFormats(t *testing.T) {
	gen := NewMockGenerator()
	words, err := Collect(context.Background(), gen, Request{Prompt: "pick"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(strings.Split(words, ",")) != 10 {
		t.Fatalf("expected 10 canned words, got %q", words)
	}
	conv, err := Collect(context.Background(), gen, Request{Prompt: "talk", Format: FormatJSON})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(conv), &doc); err != nil {
		t.Fatalf("mock conversation is not json: %v", err)
	}
	if _, ok := doc["conversation"].([]any); !ok {
		t.Fatalf("expected conversation array, got %v", doc)
	}
}

func TestMockGeneratorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Collect(ctx, NewMockGenerator(), Request{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestOllamaGeneratorStreams(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintln(w, `{"response":"hello ","done":false}`)
		fmt.Fprintln(w, `{"response":"world","done":true,"eval_count":2,"prompt_eval_count":5}`)
	}))
	defer srv.Close()

	gen := NewOllamaGenerator(srv.URL+"/", "llama2", time.Second)
	var chunks []Chunk
	err := gen.Generate(context.Background(), Request{Prompt: "hi", Format: FormatJSON}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Model != "llama2" || got.Format != FormatJSON || !got.Stream {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(chunks) != 2 || chunks[1].Partial || chunks[1].CompletionTokens != 2 {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestOllamaGeneratorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := Collect(context.Background(), NewOllamaGenerator(srv.URL, "", 0), Request{}); err == nil {
		t.Fatal("expected status error")
	}
}

func TestOpenAIGeneratorStreams(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"alpha, \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"beta\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("test-key", srv.URL+"/v1", "gpt-test")
	out, err := Collect(context.Background(), gen, Request{Prompt: "pick", Format: FormatJSON})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if out != "alpha, beta" {
		t.Fatalf("unexpected output %q", out)
	}
	if body["model"] != "gpt-test" {
		t.Fatalf("unexpected model %v", body["model"])
	}
	if _, ok := body["response_format"]; !ok {
		t.Fatalf("expected response_format for json requests")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	if _, err := New(config.LLMConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := New(config.LLMConfig{Mode: "exec"}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
	if _, err := New(config.LLMConfig{Mode: "bard"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExecGenerator(t *testing.T) {
	gen := &execGenerator{cmd: []string{os.Args[0], "-test.run=TestHelperProcess", "--", "llm-helper"}}
	out, err := Collect(context.Background(), gen, Request{Prompt: "echo me"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if out != "echo me" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHelperProcess(t *testing.T) {
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 || args[1] != "llm-helper" {
		return
	}
	var req map[string]any
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		os.Exit(2)
	}
	_ = json.NewEncoder(os.Stdout).Encode(execResponse{Content: fmt.Sprint(req["prompt"])})
	os.Exit(0)
}
