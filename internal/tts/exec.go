package tts

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// maxSegmentLine bounds a single NDJSON line; a minute of 24 kHz PCM is ~3.8MB
// once base64 encoded.
const maxSegmentLine = 16 << 20

// execSynth runs the speech engine as a child process, one process per call.
// A crash or hang in the engine only affects that call.
type execSynth struct {
	cmd   []string
	voice string
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Error     string `json:"error,omitempty"`
}

func NewExecSynth(command, voice string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &execSynth{cmd: args, voice: voice}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan Segment, <-chan error) {
	segments := make(chan Segment)
	errs := make(chan error, 1)
	go func() {
		defer close(segments)
		defer close(errs)

		voice := req.Voice
		if voice == "" {
			voice = e.voice
		}
		data, err := json.Marshal(execRequest{
			Text:       req.Text,
			Voice:      voice,
			SampleRate: SampleRate,
			Channels:   Channels,
		})
		if err != nil {
			errs <- err
			return
		}

		base := e.cmd[0]
		args := append([]string{}, e.cmd[1:]...)
		cmd := exec.CommandContext(ctx, base, args...)
		var stderr strings.Builder
		cmd.Stderr = &stderr
		stdin, err := cmd.StdinPipe()
		if err != nil {
			errs <- err
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- fmt.Errorf("start tts engine: %w", err)
			return
		}

		if _, err := stdin.Write(data); err != nil {
			stdin.Close()
			cmd.Wait()
			errs <- fmt.Errorf("write tts request: %w", err)
			return
		}
		stdin.Close()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSegmentLine)
		index := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			seg := Segment{Index: index}
			index++
			var resp execResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				seg.Err = fmt.Errorf("decode segment: %w", err)
			} else if resp.Error != "" {
				seg.Err = errors.New(resp.Error)
			} else if pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64); err != nil {
				seg.Err = fmt.Errorf("decode segment pcm: %w", err)
			} else {
				seg.PCM = pcm
			}
			select {
			case segments <- seg:
			case <-ctx.Done():
				cmd.Wait()
				errs <- ctx.Err()
				return
			}
		}
		scanErr := scanner.Err()
		if err := cmd.Wait(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			errs <- fmt.Errorf("tts engine failed: %w", err)
			return
		}
		if scanErr != nil {
			errs <- scanErr
		}
	}()
	return segments, errs
}
