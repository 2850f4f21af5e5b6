// Package lesson holds the domain model shared by the lesson pipeline and the
// background audio generator.
package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoTurnText is reported when a turn carries no recoverable dialogue.
	ErrNoTurnText = errors.New("turn has no text")
	// ErrEmptyAfterSanitize is reported when sanitizing leaves nothing to speak.
	ErrEmptyAfterSanitize = errors.New("turn text empty after sanitizing")
)

// UnknownSpeaker is used when a turn names no speaker.
const UnknownSpeaker = "unknown"

// Lesson is one uploaded Markdown file and everything derived from it.
type Lesson struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	GeneratedPath    string    `json:"generated_filepath"`
	GradeLevel       int       `json:"grade_level"`
	CreatedAt        time.Time `json:"created_at"`
}

// Turn is one line of dialogue. IDs start at 1 and are sequential within a
// conversation.
type Turn struct {
	ID      int    `json:"turn_id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Artifact is a synthesized audio file recorded against its lesson and turn.
type Artifact struct {
	ID        int64     `json:"id"`
	LessonID  int64     `json:"lesson_id"`
	TurnID    int       `json:"turn_id"`
	Filepath  string    `json:"filepath"`
	CreatedAt time.Time `json:"created_at"`
}

// FilePrefix returns the artifact filename prefix for a turn. Segment files
// append "{index}.wav".
func FilePrefix(basename string, turnID int, speaker string) string {
	speaker = strings.NewReplacer("/", "_", `\`, "_").Replace(speaker)
	return fmt.Sprintf("%s_%d_%s_", basename, turnID, speaker)
}
