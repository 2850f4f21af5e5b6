package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind           string `yaml:"bind"`
	Port           int    `yaml:"port"`
	APIPrefix      string `yaml:"api_prefix"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Store       StoreConfig      `yaml:"store"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	LLM         LLMConfig        `yaml:"llm"`
	TTS         TTSConfig        `yaml:"tts"`
	Audio       AudioConfig      `yaml:"audio"`
	Lessons     LessonsConfig    `yaml:"lessons"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxTasks      int    `yaml:"max_tasks"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec, openai
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutMS   int     `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
}

// AudioConfig controls background synthesis of conversation turns.
type AudioConfig struct {
	Dispatch           string `yaml:"dispatch"` // local, bus
	Workers            int    `yaml:"workers"`
	QueueSize          int    `yaml:"queue_size"`
	SynthesisSlots     int    `yaml:"synthesis_slots"`
	SynthesisTimeoutMS int    `yaml:"synthesis_timeout_ms"`
	Subject            string `yaml:"subject"`
	QueueGroup         string `yaml:"queue_group"`
}

type LessonsConfig struct {
	OutputDir string `yaml:"output_dir"`
	WordCount int    `yaml:"word_count"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-lessons",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           8000,
			APIPrefix:      "/api",
			MaxUploadBytes: 10 << 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "json",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/lessons.db",
			BusyTimeoutMS: 5000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/lessons-events.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxTasks:      50000,
		},
		LLM: LLMConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama2",
			MaxTokens:   1024,
			Temperature: 0.7,
			TimeoutMS:   120000,
		},
		TTS: TTSConfig{
			Mode:  "mock",
			Voice: "male",
		},
		Audio: AudioConfig{
			Dispatch:           "local",
			Workers:            4,
			QueueSize:          256,
			SynthesisSlots:     2,
			SynthesisTimeoutMS: 120000,
			Subject:            "lessons.audio.turn",
			QueueGroup:         "audio-workers",
		},
		Lessons: LessonsConfig{
			OutputDir: "output",
			WordCount: 10,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LESSONS_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LESSONS_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LESSONS_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LESSONS_HTTP_PORT")
	overrideString(&cfg.HTTP.APIPrefix, "LESSONS_HTTP_API_PREFIX")
	overrideInt64(&cfg.HTTP.MaxUploadBytes, "LESSONS_HTTP_MAX_UPLOAD_BYTES")
	overrideString(&cfg.Telemetry.LogLevel, "LESSONS_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LESSONS_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LESSONS_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LESSONS_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "LESSONS_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LESSONS_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LESSONS_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LESSONS_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LESSONS_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LESSONS_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LESSONS_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LESSONS_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LESSONS_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "LESSONS_STORE_PATH")
	overrideInt(&cfg.Store.BusyTimeoutMS, "LESSONS_STORE_BUSY_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LESSONS_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LESSONS_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LESSONS_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxTasks, "LESSONS_EVENT_STORE_MAX_TASKS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LESSONS_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.LLM.Mode, "LESSONS_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "LESSONS_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "LESSONS_LLM_COMMAND")
	overrideString(&cfg.LLM.Model, "LESSONS_LLM_MODEL")
	overrideString(&cfg.LLM.APIKey, "LESSONS_LLM_API_KEY")
	overrideInt(&cfg.LLM.MaxTokens, "LESSONS_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "LESSONS_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.TimeoutMS, "LESSONS_LLM_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "LESSONS_TTS_MODE")
	overrideString(&cfg.TTS.Command, "LESSONS_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "LESSONS_TTS_VOICE")
	overrideString(&cfg.Audio.Dispatch, "LESSONS_AUDIO_DISPATCH")
	overrideInt(&cfg.Audio.Workers, "LESSONS_AUDIO_WORKERS")
	overrideInt(&cfg.Audio.QueueSize, "LESSONS_AUDIO_QUEUE_SIZE")
	overrideInt(&cfg.Audio.SynthesisSlots, "LESSONS_AUDIO_SYNTHESIS_SLOTS")
	overrideInt(&cfg.Audio.SynthesisTimeoutMS, "LESSONS_AUDIO_SYNTHESIS_TIMEOUT_MS")
	overrideString(&cfg.Audio.Subject, "LESSONS_AUDIO_SUBJECT")
	overrideString(&cfg.Audio.QueueGroup, "LESSONS_AUDIO_QUEUE_GROUP")
	overrideString(&cfg.Lessons.OutputDir, "LESSONS_OUTPUT_DIR")
	overrideInt(&cfg.Lessons.WordCount, "LESSONS_WORD_COUNT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	switch strings.ToLower(cfg.Telemetry.LogFormat) {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.EventStore.Path == "" && cfg.EventStore.RetentionMode != "ephemeral" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.LLM.Mode {
	case "mock", "ollama", "exec", "openai":
	default:
		return errors.New("llm.mode must be one of mock|ollama|exec|openai")
	}
	if cfg.LLM.Mode == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.Mode == "openai" && cfg.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set when mode=openai")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec":
	default:
		return errors.New("tts.mode must be one of mock|exec")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	switch cfg.Audio.Dispatch {
	case "local":
	case "bus":
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
		if cfg.Audio.Subject == "" {
			return errors.New("audio.subject must not be empty when dispatch=bus")
		}
	default:
		return errors.New("audio.dispatch must be one of local|bus")
	}
	if cfg.Audio.Workers <= 0 {
		return errors.New("audio.workers must be >= 1")
	}
	if cfg.Audio.QueueSize <= 0 {
		return errors.New("audio.queue_size must be >= 1")
	}
	if cfg.Audio.SynthesisSlots <= 0 {
		return errors.New("audio.synthesis_slots must be >= 1")
	}
	if cfg.Audio.SynthesisTimeoutMS < 0 {
		return errors.New("audio.synthesis_timeout_ms must be >= 0")
	}
	if cfg.Lessons.OutputDir == "" {
		return errors.New("lessons.output_dir must not be empty")
	}
	if cfg.Lessons.WordCount <= 0 {
		return errors.New("lessons.word_count must be >= 1")
	}
	return nil
}
