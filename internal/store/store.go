// Package store persists lessons and their synthesized audio artifacts in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite database holding lessons and audio artifacts.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", cfg.Path, busy)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log.With(slog.String("component", "store")), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS lessons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    original_filename TEXT NOT NULL UNIQUE,
    generated_filepath TEXT NOT NULL,
    grade_level INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS audio_artifacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lesson_id INTEGER NOT NULL,
    turn_id INTEGER NOT NULL,
    filepath TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,
    FOREIGN KEY(lesson_id) REFERENCES lessons(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_audio_lesson_turn ON audio_artifacts(lesson_id, turn_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateLesson records a lesson, returning the existing record when one with
// the same original filename is already stored.
func (s *Store) CreateLesson(ctx context.Context, originalFilename, generatedPath string, grade int) (lesson.Lesson, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons(original_filename, generated_filepath, grade_level, created_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(original_filename) DO NOTHING`,
		originalFilename, generatedPath, grade, s.clock().UTC().UnixNano())
	if err != nil {
		return lesson.Lesson{}, fmt.Errorf("insert lesson: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, original_filename, generated_filepath, grade_level, created_at
		 FROM lessons WHERE original_filename = ?`, originalFilename)
	return scanLesson(row)
}

// GetLesson looks up a lesson by id.
func (s *Store) GetLesson(ctx context.Context, id int64) (lesson.Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, original_filename, generated_filepath, grade_level, created_at
		 FROM lessons WHERE id = ?`, id)
	return scanLesson(row)
}

// CreateAudioArtifact records a synthesized file for a turn. Filepath is the
// conflict key: a second call for the same file returns the stored record.
// Safe for concurrent use.
func (s *Store) CreateAudioArtifact(ctx context.Context, lessonID int64, path string, turnID int) (lesson.Artifact, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_artifacts(lesson_id, turn_id, filepath, created_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(filepath) DO NOTHING`,
		lessonID, turnID, path, s.clock().UTC().UnixNano())
	if err != nil {
		return lesson.Artifact{}, fmt.Errorf("insert audio artifact: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lesson_id, turn_id, filepath, created_at
		 FROM audio_artifacts WHERE filepath = ?`, path)
	return scanArtifact(row)
}

// GetAudioArtifact returns the first artifact recorded for a turn.
func (s *Store) GetAudioArtifact(ctx context.Context, lessonID int64, turnID int) (lesson.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lesson_id, turn_id, filepath, created_at
		 FROM audio_artifacts WHERE lesson_id = ? AND turn_id = ?
		 ORDER BY id ASC LIMIT 1`, lessonID, turnID)
	return scanArtifact(row)
}

// ListAudioArtifacts returns all artifacts of a lesson ordered by turn.
func (s *Store) ListAudioArtifacts(ctx context.Context, lessonID int64) ([]lesson.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lesson_id, turn_id, filepath, created_at
		 FROM audio_artifacts WHERE lesson_id = ?
		 ORDER BY turn_id ASC, id ASC`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []lesson.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLesson(row scanner) (lesson.Lesson, error) {
	var l lesson.Lesson
	var created int64
	if err := row.Scan(&l.ID, &l.OriginalFilename, &l.GeneratedPath, &l.GradeLevel, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lesson.Lesson{}, ErrNotFound
		}
		return lesson.Lesson{}, err
	}
	l.CreatedAt = time.Unix(0, created).UTC()
	return l, nil
}

func scanArtifact(row scanner) (lesson.Artifact, error) {
	var a lesson.Artifact
	var created int64
	if err := row.Scan(&a.ID, &a.LessonID, &a.TurnID, &a.Filepath, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lesson.Artifact{}, ErrNotFound
		}
		return lesson.Artifact{}, err
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return a, nil
}
