// Package framer implements SessionFramer (C3): it turns an utterance's
// block stream into overlapping protocol Frames at 16kHz mono, downsampling
// from the 48kHz capture rate.
package framer

import (
	"time"

	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

const (
	captureRate = 48000
	outputRate  = 16000
)

// Session accumulates blocks for one utterance and emits Frames.
type Session struct {
	taskID      string
	segDuration float64
	segOverlap  float64
	source      protocol.Source

	buf       []float32
	timeStart float64

	segmentIndex uint32
}

// New begins a session for one utterance (the client creates it on the
// ShortcutEngine's key-down "pending" event).
func New(taskID string, segDuration, segOverlap float64, source protocol.Source) *Session {
	return &Session{
		taskID:      taskID,
		segDuration: segDuration,
		segOverlap:  segOverlap,
		source:      source,
		timeStart:   nowSeconds(),
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// downmix collapses an interleaved multi-channel block to mono by averaging
// channels; capture already delivers mono so this is a no-op there, but
// framer accepts multi-channel input for file-sourced audio.
func downmix(samples []float32, channels uint16) []float32 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / int(channels)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < int(channels); c++ {
			sum += samples[i*int(channels)+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample48to16 performs linear-interpolation decimation. The contract is
// output length = round(len(in) * 16000/48000) +/- 1, which linear
// interpolation satisfies exactly for this 3:1 ratio.
func resample48to16(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}
	outLen := (len(in)*outputRate + captureRate/2) / captureRate
	out := make([]float32, outLen)
	ratio := float64(len(in)-1) / float64(maxInt(outLen-1, 1))
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// AddBlock downmixes and resamples an incoming block, appends it to the
// rolling buffer, and returns zero or more non-final Frames ready to send.
func (s *Session) AddBlock(block protocol.AudioBlock) []protocol.Frame {
	mono := downmix(block.Samples, block.Channels)
	resampled := resample48to16(mono)
	return s.addResampled(resampled)
}

// AddSamples16k appends samples already at 16kHz mono (e.g. an ffmpeg
// transcode's stdout) directly to the rolling buffer, skipping the
// downmix/resample AddBlock applies to raw 48kHz capture blocks, and returns
// zero or more non-final Frames ready to send.
func (s *Session) AddSamples16k(samples []float32) []protocol.Frame {
	return s.addResampled(samples)
}

func (s *Session) addResampled(resampled []float32) []protocol.Frame {
	s.buf = append(s.buf, resampled...)

	var frames []protocol.Frame
	segSamples := int(s.segDuration * outputRate)
	overlapSamples := int(s.segOverlap * outputRate)
	emitLen := segSamples + overlapSamples
	threshold := segSamples + 2*overlapSamples

	for len(s.buf) >= threshold {
		payload := make([]float32, emitLen)
		copy(payload, s.buf[:emitLen])
		frames = append(frames, s.buildFrame(payload, false))
		s.buf = s.buf[segSamples:]
	}
	return frames
}

// Finish flushes the remaining buffer as a terminal Frame.
func (s *Session) Finish() protocol.Frame {
	payload := s.buf
	s.buf = nil
	return s.buildFrame(payload, true)
}

// Cancel drops the buffer without emitting anything.
func (s *Session) Cancel() {
	s.buf = nil
}

func (s *Session) buildFrame(samples []float32, isFinal bool) protocol.Frame {
	s.segmentIndex++
	return protocol.Frame{
		Header: protocol.FrameHeader{
			TaskID:      s.taskID,
			SegDuration: s.segDuration,
			SegOverlap:  s.segOverlap,
			IsFinal:     isFinal,
			TimeStart:   s.timeStart,
			TimeSubmit:  nowSeconds(),
			Source:      s.source,
		},
		Payload: protocol.EncodePCM32f(samples),
	}
}
