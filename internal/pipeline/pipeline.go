// Package pipeline turns an uploaded Markdown lesson into vocabulary, a
// practice conversation and background audio jobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/loqalabs/loqa-lessons/internal/audio"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/store"
)

var (
	ErrNotMarkdown    = errors.New("only Markdown (.md) files are supported")
	ErrLessonNotFound = errors.New("conversation not found")
	ErrAudioNotFound  = errors.New("audio not found")
)

// Tutor produces lesson content.
type Tutor interface {
	PickWords(ctx context.Context, text string, grade int) []string
	Conversation(ctx context.Context, words []string, grade int) ([]lesson.RawTurn, error)
}

// Store persists lessons and looks up their audio.
type Store interface {
	CreateLesson(ctx context.Context, originalFilename, generatedPath string, grade int) (lesson.Lesson, error)
	GetLesson(ctx context.Context, id int64) (lesson.Lesson, error)
	GetAudioArtifact(ctx context.Context, lessonID int64, turnID int) (lesson.Artifact, error)
}

// Result is returned once a lesson is generated; audio may still be pending.
type Result struct {
	LessonID int64
	Grade    int
}

// Document is the generated JSON written next to the lesson audio.
type Document struct {
	Words         []string      `json:"words"`
	Conversations []lesson.Turn `json:"conversations"`
}

// Service coordinates the lesson pipeline.
type Service struct {
	tutor      Tutor
	store      Store
	dispatcher audio.Dispatcher
	outputDir  string
	logger     *slog.Logger
}

func NewService(tutor Tutor, st Store, dispatcher audio.Dispatcher, outputDir string, logger *slog.Logger) *Service {
	return &Service{
		tutor:      tutor,
		store:      st,
		dispatcher: dispatcher,
		outputDir:  outputDir,
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// Process generates the lesson for an uploaded file. It returns as soon as
// the conversation is saved; one audio job per turn is left running.
func (s *Service) Process(ctx context.Context, filename, markdown string) (Result, error) {
	filename = filepath.Base(filename)
	if !strings.HasSuffix(filename, ".md") {
		return Result{}, ErrNotMarkdown
	}
	grade := lesson.GradeFromFilename(filename)
	basename := strings.TrimSuffix(filename, filepath.Ext(filename))
	outDir := filepath.Join(s.outputDir, basename)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	log := s.logger.With(slog.String("lesson", basename), slog.Int("grade", grade))
	words := s.tutor.PickWords(ctx, markdown, grade)
	log.Info("picked words", slog.Int("count", len(words)))

	raw, err := s.tutor.Conversation(ctx, words, grade)
	if err != nil {
		return Result{}, err
	}
	turns := lesson.Normalize(raw)

	docPath := filepath.Join(outDir, basename+"_generated.json")
	rec, err := s.store.CreateLesson(ctx, basename, docPath, grade)
	if err != nil {
		return Result{}, fmt.Errorf("save lesson: %w", err)
	}

	if err := writeDocument(docPath, Document{Words: words, Conversations: turns}); err != nil {
		return Result{}, err
	}

	for _, turn := range turns {
		s.dispatcher.Dispatch(ctx, audio.Job{
			LessonID:     rec.ID,
			Turn:         turn,
			OutputDir:    outDir,
			FileBasename: basename,
		})
	}
	log.Info("scheduled audio", slog.Int64("lesson_id", rec.ID), slog.Int("turns", len(turns)))
	return Result{LessonID: rec.ID, Grade: grade}, nil
}

// Conversation loads the generated turns of a lesson.
func (s *Service) Conversation(ctx context.Context, lessonID int64) ([]lesson.Turn, error) {
	rec, err := s.store.GetLesson(ctx, lessonID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(rec.GeneratedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	var doc Document
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if doc.Conversations == nil {
		doc.Conversations = []lesson.Turn{}
	}
	return doc.Conversations, nil
}

// AudioPath finds the first audio file recorded for a turn.
func (s *Service) AudioPath(ctx context.Context, lessonID int64, turnID int) (string, error) {
	a, err := s.store.GetAudioArtifact(ctx, lessonID, turnID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrAudioNotFound
	}
	if err != nil {
		return "", err
	}
	return a.Filepath, nil
}

func writeDocument(path string, doc Document) error {
	if doc.Words == nil {
		doc.Words = []string{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}
	return os.Rename(tmp, path)
}
