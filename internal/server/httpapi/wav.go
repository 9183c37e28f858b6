package httpapi

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodedWAV holds the PCM samples and format fields recovered from a RIFF
// container, inverted from the encode side in the teacher's
// pkg/audio.NewWavBuffer (RIFF/WAVE/fmt /data chunk layout).
type decodedWAV struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// decodeWAV parses a canonical RIFF/WAVE file with 16-bit or 32-bit float
// PCM data, the two formats ffmpeg (or a browser's MediaRecorder fallback)
// is likely to hand the HTTP API.
func decodeWAV(data []byte) (decodedWAV, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return decodedWAV{}, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		audioFormat   uint16
		pcm           []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return decodedWAV{}, fmt.Errorf("fmt chunk too short")
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if pcm == nil || sampleRate == 0 || channels == 0 {
		return decodedWAV{}, fmt.Errorf("missing fmt or data chunk")
	}

	var samples []float32
	switch {
	case audioFormat == 1 && bitsPerSample == 16:
		samples = decodePCM16(pcm)
	case audioFormat == 3 && bitsPerSample == 32:
		samples = decodeFloat32(pcm)
	default:
		return decodedWAV{}, fmt.Errorf("unsupported WAV format %d/%d bits", audioFormat, bitsPerSample)
	}

	return decodedWAV{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}

func decodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

func decodeFloat32(pcm []byte) []float32 {
	n := len(pcm) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4:]))
	}
	return out
}
