// Package httpapi exposes the lesson pipeline over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/pipeline"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Lessons is the pipeline surface the handlers need.
type Lessons interface {
	Process(ctx context.Context, filename, markdown string) (pipeline.Result, error)
	Conversation(ctx context.Context, lessonID int64) ([]lesson.Turn, error)
	AudioPath(ctx context.Context, lessonID int64, turnID int) (string, error)
}

// Options configures the router.
type Options struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Ready       func() bool
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter builds the gin engine serving the lesson API and the
// operational endpoints.
func NewRouter(lessons Lessons, opts Options) *gin.Engine {
	logger := opts.Logger.With(slog.String("component", "http"))
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(opts.ServiceName))
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	}))

	h := &handlers{lessons: lessons, maxUpload: opts.HTTP.MaxUploadBytes, logger: logger}
	prefix := opts.HTTP.APIPrefix

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to ESL AI - Vocabulary Practice Generator",
			"docs":    "/docs",
			"api":     prefix,
		})
	})
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/readyz", func(c *gin.Context) {
		if opts.Ready == nil || opts.Ready() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not ready")
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := router.Group(prefix)
	{
		api.POST("/generate-conversation", h.generateConversation)
		api.GET("/conversation/:id", h.getConversation)
		api.GET("/conversation/:id/audio/:turnId", h.getAudio)
	}
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
