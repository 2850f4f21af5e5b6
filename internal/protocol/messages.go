package protocol

import "time"

// AudioTurn is the turn payload carried by an audio job.
type AudioTurn struct {
	TurnID  int    `json:"turn_id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// AudioJob asks a worker to synthesize one conversation turn.
type AudioJob struct {
	TaskID       string    `json:"task_id"`
	LessonID     int64     `json:"lesson_id"`
	Turn         AudioTurn `json:"turn"`
	OutputDir    string    `json:"output_dir"`
	FileBasename string    `json:"file_basename"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

const (
	SubjectAudioTurn  = "lessons.audio.turn"
	QueueAudioWorkers = "audio-workers"
)
