package tts

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes 16-bit little-endian PCM into a WAV file at path. The file
// is written beside its destination and renamed into place so readers never
// observe a partial file.
func WriteWAV(path string, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".segment-*.wav")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		SourceBitDepth: BitDepth,
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(tmp, SampleRate, BitDepth, Channels, 1)
	if err := enc.Write(buffer); err != nil {
		tmp.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close wav file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename wav: %w", err)
	}
	return nil
}
