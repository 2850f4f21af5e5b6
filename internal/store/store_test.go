package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/loqalabs/loqa-lessons/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "lessons.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateLessonIsIdempotentByFilename(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, err := s.CreateLesson(ctx, "3rd-animal", "output/3rd-animal/3rd-animal_generated.json", 3)
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	second, err := s.CreateLesson(ctx, "3rd-animal", "elsewhere.json", 5)
	if err != nil {
		t.Fatalf("create lesson again: %v", err)
	}
	if first.ID != second.ID || second.GradeLevel != 3 || second.GeneratedPath != first.GeneratedPath {
		t.Fatalf("expected existing record, got %+v vs %+v", first, second)
	}

	got, err := s.GetLesson(ctx, first.ID)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if got.OriginalFilename != "3rd-animal" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected lesson %+v", got)
	}
	if _, err := s.GetLesson(ctx, first.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAudioArtifactIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l, err := s.CreateLesson(ctx, "lesson", "lesson.json", 8)
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	a1, err := s.CreateAudioArtifact(ctx, l.ID, "output/lesson/lesson_1_A_0.wav", 1)
	if err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	a2, err := s.CreateAudioArtifact(ctx, l.ID, "output/lesson/lesson_1_A_0.wav", 1)
	if err != nil {
		t.Fatalf("create artifact again: %v", err)
	}
	if a1.ID != a2.ID || a1.Filepath != a2.Filepath {
		t.Fatalf("expected same record twice, got %+v and %+v", a1, a2)
	}
	all, err := s.ListAudioArtifacts(ctx, l.ID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(all))
	}
}

func TestCreateAudioArtifactConcurrent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l, err := s.CreateLesson(ctx, "lesson", "lesson.json", 8)
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	ids := make(chan int64, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every path is written by four goroutines
			path := fmt.Sprintf("lesson_%d_A_0.wav", i%10)
			a, err := s.CreateAudioArtifact(ctx, l.ID, path, i%10+1)
			if err != nil {
				errs <- err
				return
			}
			ids <- a.ID
		}(i)
	}
	wg.Wait()
	close(errs)
	close(ids)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	distinct := map[int64]struct{}{}
	for id := range ids {
		distinct[id] = struct{}{}
	}
	if len(distinct) != 10 {
		t.Fatalf("expected 10 distinct records, got %d", len(distinct))
	}
}

func TestGetAudioArtifact(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	l, err := s.CreateLesson(ctx, "lesson", "lesson.json", 8)
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if _, err := s.GetAudioArtifact(ctx, l.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before synthesis, got %v", err)
	}
	if _, err := s.CreateAudioArtifact(ctx, l.ID, "lesson_2_B_0.wav", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateAudioArtifact(ctx, l.ID, "lesson_2_B_1.wav", 2); err != nil {
		t.Fatal(err)
	}
	a, err := s.GetAudioArtifact(ctx, l.ID, 2)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if a.Filepath != "lesson_2_B_0.wav" || a.TurnID != 2 || a.LessonID != l.ID {
		t.Fatalf("unexpected artifact %+v", a)
	}
}
