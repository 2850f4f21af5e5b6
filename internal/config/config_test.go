package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.Dispatch != "local" {
		t.Fatalf("expected local dispatch, got %q", cfg.Audio.Dispatch)
	}
	if cfg.Lessons.OutputDir != "output" {
		t.Fatalf("expected default output dir, got %q", cfg.Lessons.OutputDir)
	}
	if cfg.Lessons.WordCount != 10 {
		t.Fatalf("expected 10 words, got %d", cfg.Lessons.WordCount)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LESSONS_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LESSONS_BUS_EMBEDDED", "false")
	t.Setenv("LESSONS_AUDIO_DISPATCH", "bus")
	t.Setenv("LESSONS_AUDIO_WORKERS", "9")
	t.Setenv("LESSONS_AUDIO_SYNTHESIS_TIMEOUT_MS", "5000")
	t.Setenv("LESSONS_TTS_MODE", "exec")
	t.Setenv("LESSONS_TTS_COMMAND", "python3 engine.py --voice 'male 1'")
	t.Setenv("LESSONS_STORE_PATH", "./tmp.db")
	t.Setenv("LESSONS_EVENT_STORE_MAX_TASKS", "123")
	t.Setenv("LESSONS_HTTP_MAX_UPLOAD_BYTES", "2048")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Embedded {
		t.Fatal("expected embedded override false")
	}
	if cfg.Audio.Dispatch != "bus" || cfg.Audio.Workers != 9 {
		t.Fatalf("expected audio overrides, got %+v", cfg.Audio)
	}
	if cfg.Audio.SynthesisTimeoutMS != 5000 {
		t.Fatalf("expected synthesis timeout override")
	}
	if cfg.TTS.Mode != "exec" || cfg.TTS.Command == "" {
		t.Fatalf("expected tts overrides, got %+v", cfg.TTS)
	}
	if cfg.Store.Path != "./tmp.db" {
		t.Fatalf("expected store path override")
	}
	if cfg.EventStore.MaxTasks != 123 {
		t.Fatalf("expected event store max tasks override")
	}
	if cfg.HTTP.MaxUploadBytes != 2048 {
		t.Fatalf("expected upload limit override")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessons.yaml")
	data := []byte(`runtime_name: lessons-test
llm:
  mode: ollama
  endpoint: http://ollama:11434
  model: llama3.2:latest
audio:
  workers: 2
  synthesis_slots: 1
lessons:
  output_dir: /tmp/lessons
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RuntimeName != "lessons-test" {
		t.Fatalf("unexpected runtime name %q", cfg.RuntimeName)
	}
	if cfg.LLM.Mode != "ollama" || cfg.LLM.Model != "llama3.2:latest" {
		t.Fatalf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.Audio.Workers != 2 || cfg.Audio.SynthesisSlots != 1 {
		t.Fatalf("unexpected audio config %+v", cfg.Audio)
	}
	// untouched sections keep defaults
	if cfg.Audio.QueueSize != 256 {
		t.Fatalf("expected default queue size, got %d", cfg.Audio.QueueSize)
	}
	if cfg.Lessons.OutputDir != "/tmp/lessons" {
		t.Fatalf("unexpected output dir %q", cfg.Lessons.OutputDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	cases := map[string]func(*Config){
		"llm mode":        func(c *Config) { c.LLM.Mode = "gpt" },
		"tts exec":        func(c *Config) { c.TTS.Mode = "exec"; c.TTS.Command = "" },
		"dispatch":        func(c *Config) { c.Audio.Dispatch = "kafka" },
		"workers":         func(c *Config) { c.Audio.Workers = 0 },
		"slots":           func(c *Config) { c.Audio.SynthesisSlots = 0 },
		"openai key":      func(c *Config) { c.LLM.Mode = "openai" },
		"retention mode":  func(c *Config) { c.EventStore.RetentionMode = "forever" },
		"log format":      func(c *Config) { c.Telemetry.LogFormat = "xml" },
		"word count":      func(c *Config) { c.Lessons.WordCount = 0 },
		"bus servers":     func(c *Config) { c.Audio.Dispatch = "bus"; c.Bus.Embedded = false; c.Bus.Servers = nil },
		"http port range": func(c *Config) { c.HTTP.Port = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
