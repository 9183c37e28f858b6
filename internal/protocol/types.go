// Package protocol defines the wire and queue data model shared by the
// client and server: AudioBlock, Frame, Task, Result, QueueAck and the
// UtteranceSession bookkeeping that guarantees exactly one terminal frame per
// task_id (spec.md §3).
package protocol

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source identifies where audio for a Task originated.
type Source string

const (
	SourceMic  Source = "mic"
	SourceFile Source = "file"
)

// DropReason enumerates why the recognizer discarded a Task instead of
// producing a Result for it.
type DropReason string

const (
	DropExpired    DropReason = "expired"
	DropSuperseded DropReason = "superseded"
	DropModelError DropReason = "model_error"
)

// AudioBlock is one 50ms capture callback's worth of mono float32 samples.
// It is ephemeral: SessionFramer consumes it and it is never queued.
type AudioBlock struct {
	TimestampNS int64
	Samples     []float32
	Channels    uint16
}

// NewTaskID mints a UUIDv1 task identifier, matching spec.md §3's
// `task_id: UUIDv1` requirement.
func NewTaskID() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// FrameHeader is the JSON object sent immediately before a Frame's binary
// PCM payload over the WebSocket connection (spec.md §4.4).
type FrameHeader struct {
	TaskID      string  `json:"task_id"`
	SegDuration float64 `json:"seg_duration"`
	SegOverlap  float64 `json:"seg_overlap"`
	IsFinal     bool    `json:"is_final"`
	TimeStart   float64 `json:"time_start"`
	TimeSubmit  float64 `json:"time_submit"`
	Source      Source  `json:"source"`
	Context     string  `json:"context,omitempty"`
}

// Frame is one client->server wire unit: a header plus its PCM payload,
// little-endian float32 samples at 16kHz mono.
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// Task is the server-side queue element: a Frame plus the socket it arrived
// on. Ordering invariant: for one (SocketID, TaskID) pair, tasks are consumed
// by the recognizer in enqueue order (spec.md §3).
type Task struct {
	FrameHeader
	SocketID string
	Payload  []byte
}

// Result is produced by the recognizer for a Task (partial or final) and
// forwarded to the originating WS session or HTTP waiter.
type Result struct {
	TaskID       string    `json:"task_id"`
	Duration     float64   `json:"duration"`
	TimeStart    float64   `json:"time_start"`
	TimeSubmit   float64   `json:"time_submit"`
	TimeComplete float64   `json:"time_complete"`
	Text         string    `json:"text"`
	TextAccu     string    `json:"text_accu"`
	Tokens       []string  `json:"tokens,omitempty"`
	Timestamps   []float64 `json:"timestamps,omitempty"`
	IsFinal      bool      `json:"is_final"`
	Source       Source    `json:"source"`
}

// QueueAck is emitted by the recognizer for every Task that did not produce
// a Result (or in addition to one), so RecognizerQueue can reconcile its
// backpressure counters regardless of outcome.
type QueueAck struct {
	TaskID   string
	SocketID string
	Dropped  bool
	Reason   DropReason
}

// UtteranceSession is the client-side bookkeeping for one press-to-record
// session. Invariant: exactly one Frame with IsFinal=true is ever sent under
// this TaskID; RecordSegment returns ErrSessionClosed for anything after it.
type UtteranceSession struct {
	mu           sync.Mutex
	TaskID       string
	TimeStart    float64
	samplesSent  uint64
	segmentIndex uint32
	closed       bool
}

// NewUtteranceSession starts bookkeeping for a freshly minted task_id.
func NewUtteranceSession(taskID string) *UtteranceSession {
	return &UtteranceSession{
		TaskID:    taskID,
		TimeStart: float64(time.Now().UnixNano()) / 1e9,
	}
}

// RecordSegment advances the session's sample/segment counters before a
// Frame is sent. Returns ErrSessionClosed if a final frame was already sent.
func (s *UtteranceSession) RecordSegment(sampleCount int, isFinal bool) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	idx := s.segmentIndex
	s.segmentIndex++
	s.samplesSent += uint64(sampleCount)
	if isFinal {
		s.closed = true
	}
	return idx, nil
}

// Closed reports whether this session's terminal frame has been sent.
func (s *UtteranceSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SamplesSent returns the running total of samples sent under this session.
func (s *UtteranceSession) SamplesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesSent
}
