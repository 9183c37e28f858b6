package protocol

import "errors"

// ResultWaiter lets a non-WS collaborator (HTTPTranscriptAPI) claim the
// Results for a task_id it submitted directly rather than over a socket.
type ResultWaiter interface {
	// Deliver is called with every Result produced for a given task_id.
	// Returns true once it no longer needs further Results (i.e. after
	// IsFinal).
	Deliver(result Result) (done bool)
}

var (
	// ErrDeviceMissing is returned when AudioCapture finds no input device
	// to open. Fatal on first open per spec.md §7 kind 2.
	ErrDeviceMissing = errors.New("no input audio device available")

	// ErrEmptyTranscription names a Result that arrived with no text where
	// one was expected. Nothing in this module returns it.
	ErrEmptyTranscription = errors.New("transcription returned empty text")

	// ErrSessionClosed is returned when a caller writes to an
	// UtteranceSession after its terminal frame has already been sent.
	ErrSessionClosed = errors.New("utterance session already closed")

	// ErrQueueRejected names a backpressure rejection of a non-final task.
	// Queue.TryEnqueue itself reports a rejection by returning false.
	ErrQueueRejected = errors.New("task rejected by queue backpressure")

	// ErrAuthFailed names a client hello secret that does not match the
	// server's configured secret. wsserver reports such a mismatch by
	// closing the connection with StatusPolicyViolation, not by returning
	// this error.
	ErrAuthFailed = errors.New("authentication failed: secret mismatch")

	// ErrTranslationUnavailable names an unreachable translation endpoint.
	// The translate package does not return it: MaybeTranslate reports any
	// translation failure as ok=false and callers fall back to the original
	// text.
	ErrTranslationUnavailable = errors.New("translation backend unreachable")

	// ErrTranscodeUnsupported is returned by the HTTP transcription path when
	// ffmpeg is unavailable and the uploaded file is not a decodable WAV.
	ErrTranscodeUnsupported = errors.New("unsupported audio format without ffmpeg")
)
