package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/loqalabs/loqa-lessons/internal/config"
	"github.com/loqalabs/loqa-lessons/internal/eventstore"
	"github.com/loqalabs/loqa-lessons/internal/lesson"
	"github.com/loqalabs/loqa-lessons/internal/runtime"
	"github.com/loqalabs/loqa-lessons/internal/tts"
)

var version = "0.1.0-dev"

const usage = "expected 'grade', 'sanitize', 'synth', 'events' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "grade":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: lessonctl grade <filename>")
			os.Exit(2)
		}
		fmt.Println(lesson.GradeFromFilename(os.Args[2]))
	case "sanitize":
		fmt.Println(lesson.Sanitize(strings.Join(os.Args[2:], " ")))
	case "synth":
		err = runSynth(os.Args[2:])
	case "events":
		err = runEvents(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSynth(args []string) error {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	text := fs.String("text", "", "Text to speak")
	outDir := fs.String("out", "output/adhoc", "Directory for WAV files")
	prefix := fs.String("prefix", "adhoc_", "File name prefix")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	sanitized := lesson.Sanitize(*text)
	if sanitized == "" {
		return lesson.ErrEmptyAfterSanitize
	}
	synth, err := tts.FromConfig(cfg.TTS)
	if err != nil {
		return err
	}
	logger := runtime.NewLogger(cfg.Telemetry, os.Stderr)
	pool := tts.NewPool(synth, 1, time.Duration(cfg.Audio.SynthesisTimeoutMS)*time.Millisecond, logger)

	paths := pool.Synthesize(context.Background(), sanitized, *outDir, *prefix)
	if len(paths) == 0 {
		return fmt.Errorf("no audio produced")
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	lessonID := fs.Int64("lesson", 0, "Lesson id")
	limit := fs.Int("limit", 100, "Maximum events")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if cfg.EventStore.RetentionMode == "ephemeral" {
		return fmt.Errorf("event store is ephemeral; nothing recorded")
	}
	logger := runtime.NewLogger(cfg.Telemetry, os.Stderr)
	ctx := context.Background()
	es, err := eventstore.Open(ctx, cfg.EventStore, logger)
	if err != nil {
		return err
	}
	defer es.Close()

	events, err := es.ListLessonEvents(ctx, *lessonID, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTASK\tTURN\tSTATE\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.TaskID, e.TurnID, e.State, e.Detail)
	}
	return w.Flush()
}
