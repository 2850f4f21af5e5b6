// Package audio generates speech for conversation turns in the background.
//
// Each turn becomes an independent Job. A Dispatcher hands jobs to workers
// without blocking the caller; the Orchestrator turns one job into persisted
// audio artifacts; the Runner tracks each job through its states.
package audio

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-lessons/internal/eventstore"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/protocol"
)

var (
	// ErrNoAudio means synthesis ran but produced no files.
	ErrNoAudio = errors.New("synthesis produced no audio")
	// ErrQueueFull means a job was dropped because every queue slot was taken.
	ErrQueueFull = errors.New("audio queue full")
	// ErrQueueClosed means a job arrived after shutdown began.
	ErrQueueClosed = errors.New("audio queue closed")
)

// State of a background audio task.
type State string

const (
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is a self-contained request to voice one turn of a lesson.
type Job struct {
	TaskID       string
	LessonID     int64
	Turn         lesson.Turn
	OutputDir    string
	FileBasename string
}

// SynthesisPool speaks text into WAV files and returns their paths.
type SynthesisPool interface {
	Synthesize(ctx context.Context, text, outputDir, filePrefix string) []string
}

// ArtifactStore records produced audio. CreateAudioArtifact must be
// idempotent by path and safe for concurrent use.
type ArtifactStore interface {
	CreateAudioArtifact(ctx context.Context, lessonID int64, path string, turnID int) (lesson.Artifact, error)
}

// Recorder keeps the task timeline.
type Recorder interface {
	RecordTransition(ctx context.Context, t eventstore.Transition) error
}

// Dispatcher schedules jobs without waiting for them to run.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job)
	Close(ctx context.Context) error
}

func ensureTaskID(job Job) Job {
	if job.TaskID == "" {
		job.TaskID = uuid.NewString()
	}
	return job
}

func turnLabel(id int) string {
	if id <= 0 {
		return lesson.UnknownSpeaker
	}
	return strconv.Itoa(id)
}

func toMessage(job Job) protocol.AudioJob {
	return protocol.AudioJob{
		TaskID:   job.TaskID,
		LessonID: job.LessonID,
		Turn: protocol.AudioTurn{
			TurnID:  job.Turn.ID,
			Speaker: job.Turn.Speaker,
			Text:    job.Turn.Text,
		},
		OutputDir:    job.OutputDir,
		FileBasename: job.FileBasename,
	}
}

func fromMessage(msg protocol.AudioJob) Job {
	return Job{
		TaskID:   msg.TaskID,
		LessonID: msg.LessonID,
		Turn: lesson.Turn{
			ID:      msg.Turn.TurnID,
			Speaker: msg.Turn.Speaker,
			Text:    msg.Turn.Text,
		},
		OutputDir:    msg.OutputDir,
		FileBasename: msg.FileBasename,
	}
}
