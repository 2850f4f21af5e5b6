package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/loqalabs/loqa-lessons/internal/audio"
	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/store"
)

type stubTutor struct {
	words []string
	turns []lesson.RawTurn
	err   error
	grade int
}

func (s *stubTutor) PickWords(_ context.Context, _ string, grade int) []string {
	s.grade = grade
	return s.words
}

func (s *stubTutor) Conversation(context.Context, []string, int) ([]lesson.RawTurn, error) {
	return s.turns, s.err
}

type captureDispatcher struct {
	mu   sync.Mutex
	jobs []audio.Job
}

func (d *captureDispatcher) Dispatch(_ context.Context, job audio.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *captureDispatcher) Close(context.Context) error { return nil }

func newService(t *testing.T, tutor Tutor) (*Service, *captureDispatcher, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(context.Background(), config.StoreConfig{Path: filepath.Join(dir, "lessons.db")}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	d := &captureDispatcher{}
	out := filepath.Join(dir, "output")
	return NewService(tutor, st, d, out, logger), d, st, out
}

func TestProcessWritesDocumentAndDispatches(t *testing.T) {
	tutor := &stubTutor{
		words: []string{"habitat", "migrate"},
		turns: []lesson.RawTurn{
			{Shape: lesson.ShapeExplicit, Speaker: "Student1", Text: "Birds migrate."},
			{Shape: lesson.ShapeKeyed, Speaker: "Student2", Text: "Their habitat changes."},
		},
	}
	svc, d, _, out := newService(t, tutor)

	res, err := svc.Process(context.Background(), "3rd-animal-madness_ANIMA.md", "# Animals")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Grade != 3 || tutor.grade != 3 || res.LessonID == 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	docPath := filepath.Join(out, "3rd-animal-madness_ANIMA", "3rd-animal-madness_ANIMA_generated.json")
	data, err := os.ReadFile(docPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc struct {
		Words         []string         `json:"words"`
		Conversations []map[string]any `json:"conversations"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if len(doc.Words) != 2 || len(doc.Conversations) != 2 {
		t.Fatalf("unexpected document %s", data)
	}
	if doc.Conversations[1]["turn_id"] != float64(2) || doc.Conversations[1]["speaker"] != "Student2" {
		t.Fatalf("unexpected second turn %v", doc.Conversations[1])
	}

	if len(d.jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(d.jobs))
	}
	for i, job := range d.jobs {
		if job.Turn.ID != i+1 || job.LessonID != res.LessonID || job.FileBasename != "3rd-animal-madness_ANIMA" {
			t.Fatalf("unexpected job %+v", job)
		}
		if job.OutputDir != filepath.Join(out, "3rd-animal-madness_ANIMA") {
			t.Fatalf("unexpected output dir %q", job.OutputDir)
		}
	}

	turns, err := svc.Conversation(context.Background(), res.LessonID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(turns) != 2 || turns[0].Text != "Birds migrate." {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestProcessRejectsNonMarkdown(t *testing.T) {
	svc, d, _, _ := newService(t, &stubTutor{})
	if _, err := svc.Process(context.Background(), "notes.txt", "x"); !errors.Is(err, ErrNotMarkdown) {
		t.Fatalf("expected ErrNotMarkdown, got %v", err)
	}
	if len(d.jobs) != 0 {
		t.Fatal("no jobs expected")
	}
}

func TestProcessConversationError(t *testing.T) {
	svc, d, _, _ := newService(t, &stubTutor{err: errors.New("model offline")})
	if _, err := svc.Process(context.Background(), "grade-7-lesson.md", "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(d.jobs) != 0 {
		t.Fatal("no jobs expected on failure")
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	svc, _, st, _ := newService(t, &stubTutor{})
	ctx := context.Background()
	if _, err := svc.Conversation(ctx, 99); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
	if _, err := svc.AudioPath(ctx, 99, 1); !errors.Is(err, ErrAudioNotFound) {
		t.Fatalf("expected ErrAudioNotFound, got %v", err)
	}

	rec, err := st.CreateLesson(ctx, "lesson", "/missing/lesson_generated.json", 8)
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if _, err := svc.Conversation(ctx, rec.ID); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("missing document should read as not found, got %v", err)
	}
	if _, err := st.CreateAudioArtifact(ctx, rec.ID, "/audio/lesson_1_A_0.wav", 1); err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	path, err := svc.AudioPath(ctx, rec.ID, 1)
	if err != nil || path != "/audio/lesson_1_A_0.wav" {
		t.Fatalf("unexpected audio path %q %v", path, err)
	}
}
