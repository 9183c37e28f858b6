package protocol

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WriteFrame sends one Frame as a JSON text message (the header) followed by
// a binary message (the PCM payload), mirroring the teacher's
// wsjson.Write-then-binary-Write idiom from pkg/providers/tts/lokutor.go.
func WriteFrame(ctx context.Context, conn *websocket.Conn, f Frame) error {
	if err := wsjson.Write(ctx, conn, f.Header); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, f.Payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one header/payload pair in the order WriteFrame sends
// them. It also accepts the single-binary-frame encoding permitted by
// spec.md §4.4 (a 4-byte big-endian header length followed by the JSON
// header and the PCM payload), detected by the first message's type.
func ReadFrame(ctx context.Context, conn *websocket.Conn) (Frame, error) {
	msgType, payload, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}

	switch msgType {
	case websocket.MessageText:
		var hdr FrameHeader
		if err := json.Unmarshal(payload, &hdr); err != nil {
			return Frame{}, fmt.Errorf("decode frame header: %w", err)
		}
		_, pcm, err := conn.Read(ctx)
		if err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
		return Frame{Header: hdr, Payload: pcm}, nil

	case websocket.MessageBinary:
		return decodeConcatenatedFrame(payload)

	default:
		return Frame{}, fmt.Errorf("unexpected websocket message type %v", msgType)
	}
}

// decodeConcatenatedFrame handles the alternate single-binary-frame
// encoding: a 4-byte big-endian header length, the JSON header bytes, then
// the raw PCM payload.
func decodeConcatenatedFrame(msg []byte) (Frame, error) {
	if len(msg) < 4 {
		return Frame{}, fmt.Errorf("concatenated frame too short: %d bytes", len(msg))
	}
	hdrLen := binary.BigEndian.Uint32(msg[:4])
	if uint32(len(msg)-4) < hdrLen {
		return Frame{}, fmt.Errorf("concatenated frame header length %d exceeds message size", hdrLen)
	}
	var hdr FrameHeader
	if err := json.Unmarshal(msg[4:4+hdrLen], &hdr); err != nil {
		return Frame{}, fmt.Errorf("decode concatenated frame header: %w", err)
	}
	return Frame{Header: hdr, Payload: msg[4+hdrLen:]}, nil
}

// EncodePCM32f converts float32 samples into the wire payload format
// spec.md §3 specifies: contiguous float32 PCM, little-endian.
func EncodePCM32f(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// DecodePCM32f is the inverse of EncodePCM32f.
func DecodePCM32f(payload []byte) []float32 {
	n := len(payload) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return out
}
