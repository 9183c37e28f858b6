package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

// transcoded is the normalized result of decoding an upload, regardless of
// which path produced it.
type transcoded struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// transcodeUpload implements spec.md §4.8 step 3: prefer an ffmpeg child
// process (`-f f32le -ac 1 -ar 16000 -`); if ffmpeg is not found, fall back
// to the in-process WAV decoder. Any other input without ffmpeg is
// protocol.ErrTranscodeUnsupported, which the caller maps to HTTP 500.
func transcodeUpload(ctx context.Context, raw []byte) (transcoded, error) {
	if ffmpegAvailable() {
		samples, err := transcodeViaFFmpeg(ctx, raw)
		if err != nil {
			return transcoded{}, fmt.Errorf("ffmpeg transcode failed: %w", err)
		}
		return transcoded{SampleRate: 16000, Channels: 1, Samples: samples}, nil
	}

	wav, err := decodeWAV(raw)
	if err != nil {
		return transcoded{}, protocol.ErrTranscodeUnsupported
	}
	return transcoded{SampleRate: wav.SampleRate, Channels: wav.Channels, Samples: wav.Samples}, nil
}

// transcodeViaFFmpeg persists raw to a temp file (ffmpeg needs a seekable
// input for most containers), runs it through ffmpeg, and decodes its
// stdout as little-endian float32 mono samples at 16kHz. The temp file is
// removed on every exit path.
func transcodeViaFFmpeg(ctx context.Context, raw []byte) ([]float32, error) {
	tmp, err := os.CreateTemp("", "capswriter-upload-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", tmpPath, "-f", "f32le", "-ac", "1", "-ar", "16000", "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %s", err, stderr.String())
	}
	return decodeFloat32(stdout.Bytes()), nil
}
