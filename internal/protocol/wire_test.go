package protocol

import (
	"math"
	"testing"
)

func TestEncodeDecodePCM32fRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.000123}
	encoded := EncodePCM32f(samples)
	if len(encoded) != len(samples)*4 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*4, len(encoded))
	}
	decoded := DecodePCM32f(encoded)
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i, want := range samples {
		if math.Abs(float64(decoded[i]-want)) > 1e-7 {
			t.Errorf("sample %d: want %v got %v", i, want, decoded[i])
		}
	}
}

func TestDecodeConcatenatedFrame(t *testing.T) {
	hdr := []byte(`{"task_id":"abc","is_final":true}`)
	payload := EncodePCM32f([]float32{0.1, 0.2})

	msg := make([]byte, 0, 4+len(hdr)+len(payload))
	lenBuf := make([]byte, 4)
	lenBuf[0] = byte(len(hdr) >> 24)
	lenBuf[1] = byte(len(hdr) >> 16)
	lenBuf[2] = byte(len(hdr) >> 8)
	lenBuf[3] = byte(len(hdr))
	msg = append(msg, lenBuf...)
	msg = append(msg, hdr...)
	msg = append(msg, payload...)

	frame, err := decodeConcatenatedFrame(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Header.TaskID != "abc" || !frame.Header.IsFinal {
		t.Errorf("unexpected header: %+v", frame.Header)
	}
	if len(frame.Payload) != len(payload) {
		t.Errorf("expected payload len %d, got %d", len(payload), len(frame.Payload))
	}
}

func TestDecodeConcatenatedFrameTooShort(t *testing.T) {
	if _, err := decodeConcatenatedFrame([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short message")
	}
}
