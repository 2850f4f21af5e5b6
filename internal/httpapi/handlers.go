package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/pipeline"
)

// ProcessResponse answers an upload. The id and grade are null on failure.
type ProcessResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	GeneratedFileID *int64 `json:"generated_file_id"`
	GradeLevel      *int   `json:"grade_level"`
}

// ConversationResponse carries the turns of a generated lesson.
type ConversationResponse struct {
	GeneratedFileID int64         `json:"generated_file_id"`
	Conversations   []lesson.Turn `json:"conversations"`
}

type handlers struct {
	lessons   Lessons
	maxUpload int64
	logger    *slog.Logger
}

func (h *handlers) generateConversation(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing upload field \"file\""})
		return
	}
	if !strings.HasSuffix(fh.Filename, ".md") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": pipeline.ErrNotMarkdown.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.lessons.Process(c.Request.Context(), fh.Filename, string(content))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProcessResponse{
		Success:         true,
		Message:         "File processed successfully",
		GeneratedFileID: &res.LessonID,
		GradeLevel:      &res.Grade,
	})
}

// Processing errors are reported in the body with a 200 status.
func (h *handlers) fail(c *gin.Context, err error) {
	h.logger.Warn("lesson processing failed", slog.String("error", err.Error()))
	c.JSON(http.StatusOK, ProcessResponse{
		Success: false,
		Message: fmt.Sprintf("Error processing file: %s", err),
	})
}

func (h *handlers) getConversation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	turns, err := h.lessons.Conversation(c.Request.Context(), id)
	if errors.Is(err, pipeline.ErrLessonNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("load conversation failed", slog.Int64("lesson_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{GeneratedFileID: id, Conversations: turns})
}

func (h *handlers) getAudio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	turnID, ok := parseID(c, "turnId")
	if !ok {
		return
	}
	path, err := h.lessons.AudioPath(c.Request.Context(), id, int(turnID))
	if errors.Is(err, pipeline.ErrAudioNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Audio file for conversation %d not found", turnID)})
		return
	}
	if err != nil {
		h.logger.Error("load audio failed", slog.Int64("lesson_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load audio"})
		return
	}
	c.Header("Content-Type", "audio/wav")
	c.File(path)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}
