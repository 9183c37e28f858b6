// Package httpapi implements HTTPTranscriptAPI (C8): batch file
// transcription through the same RecognizerQueue, synchronous wait for the
// final Result, over a gin.Engine. Route grouping follows the
// RegisterRoutes(engine, ...) convention the example pack's gin-based
// services use.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lokutor-ai/capswriter-go/internal/client/framer"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
)

// admissionRetryInterval is how often enqueueWithRetry retries a rejected
// segment, per spec.md §4.8: "if admission fails it retries every 50 ms
// until timeout".
const admissionRetryInterval = 50 * time.Millisecond

// ResultSink is implemented by wsserver.Server: it lets the HTTP API
// register itself as the recipient of Results for a submitted task_id, and
// release that registration on its own exit paths (spec.md §4.8 cleanup).
type ResultSink interface {
	RegisterWaiter(taskID string, w protocol.ResultWaiter)
	UnregisterWaiter(taskID string)
}

// Config carries the http_* keys from spec.md §6 relevant to this package.
type Config struct {
	Secret      string
	SegDuration float64
	SegOverlap  float64
	TimeoutSecs float64
	MaxUploadMB int
}

// API wires /api/healthz and /api/transcript.
type API struct {
	log logging.Logger
	cfg Config
	q   *queue.Queue
	reg ResultSink
}

// New builds the API. reg is typically a *wsserver.Server.
func New(log logging.Logger, cfg Config, q *queue.Queue, reg ResultSink) *API {
	return &API{log: log, cfg: cfg, q: q, reg: reg}
}

// RegisterRoutes attaches this API's routes to engine.
func (a *API) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/api/healthz", a.handleHealthz)
	engine.POST("/api/transcript", a.handleTranscript)
}

func (a *API) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "running"})
}

func (a *API) authenticated(c *gin.Context) bool {
	if a.cfg.Secret == "" {
		return true
	}
	return c.GetHeader("X-CapsWriter-Secret") == a.cfg.Secret
}

// resultWaiter collects Results for one task_id until IsFinal, then signals
// done. It implements protocol.ResultWaiter.
type resultWaiter struct {
	mu     sync.Mutex
	final  *protocol.Result
	doneCh chan struct{}
	closed bool
}

func newResultWaiter() *resultWaiter {
	return &resultWaiter{doneCh: make(chan struct{})}
}

func (w *resultWaiter) Deliver(r protocol.Result) bool {
	if !r.IsFinal {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return true
	}
	result := r
	w.final = &result
	w.closed = true
	close(w.doneCh)
	return true
}

// transcriptParams holds the per-request overrides spec.md §4.8 names as
// optional form fields, layered over the configured defaults.
type transcriptParams struct {
	SegDuration float64
	SegOverlap  float64
	TimeoutSecs float64
	Context     string
}

func (a *API) parseParams(c *gin.Context) transcriptParams {
	p := transcriptParams{
		SegDuration: a.cfg.SegDuration,
		SegOverlap:  a.cfg.SegOverlap,
		TimeoutSecs: a.cfg.TimeoutSecs,
		Context:     c.PostForm("context"),
	}
	if v, err := strconv.ParseFloat(c.PostForm("seg_duration"), 64); err == nil && v > 0 {
		p.SegDuration = v
	}
	if v, err := strconv.ParseFloat(c.PostForm("seg_overlap"), 64); err == nil && v >= 0 {
		p.SegOverlap = v
	}
	if v, err := strconv.ParseFloat(c.PostForm("timeout_secs"), 64); err == nil && v > 0 {
		p.TimeoutSecs = v
	}
	if p.TimeoutSecs < 5 {
		p.TimeoutSecs = 5 // spec.md §4.8: timeout_secs lower bound 5s
	}
	return p
}

func (a *API) handleTranscript(c *gin.Context) {
	if !a.authenticated(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid secret"})
		return
	}

	maxBytes := int64(a.cfg.MaxUploadMB) * 1024 * 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file: " + err.Error()})
		return
	}
	params := a.parseParams(c)

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open upload"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	taskID, err := protocol.NewTaskID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint task id"})
		return
	}
	socketID := "http:" + taskID

	timeout := time.Duration(params.TimeoutSecs * float64(time.Second))
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	// Cleanup guaranteed on every exit path: the waiter registration and
	// this request's synthetic socket's pending slots, per spec.md §4.8.
	defer a.reg.UnregisterWaiter(taskID)
	defer a.q.OnSocketClosed(socketID)

	audio, err := transcodeUpload(ctx, raw)
	if err != nil {
		if errors.Is(err, protocol.ErrTranscodeUnsupported) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unsupported audio format without ffmpeg"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transcode failed: " + err.Error()})
		}
		return
	}

	waiter := newResultWaiter()
	a.reg.RegisterWaiter(taskID, waiter)

	if !a.submitSegments(ctx, taskID, socketID, params, audio) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "transcription timed out", "task_id": taskID})
		return
	}

	select {
	case <-waiter.doneCh:
		c.JSON(http.StatusOK, waiter.final)
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "transcription timed out", "task_id": taskID})
	}
}

// submitSegments reuses SessionFramer to cut the uploaded file into the same
// overlapping segments a live mic session would produce, then enqueues each
// as a Task with a synthetic socket_id scoped to this request. Returns false
// if ctx expired before every segment (including the final) was admitted.
func (a *API) submitSegments(ctx context.Context, taskID, socketID string, params transcriptParams, audio transcoded) bool {
	sess := framer.New(taskID, params.SegDuration, params.SegOverlap, protocol.SourceFile)

	if audio.SampleRate == 16000 && audio.Channels == 1 {
		// Already at the wire rate (the ffmpeg transcode path): feed the
		// framer's windowing directly, skipping its 48k->16k resampler.
		for _, frame := range sess.AddSamples16k(audio.Samples) {
			if !a.enqueueWithRetry(ctx, socketID, params.Context, frame) {
				return false
			}
		}
	} else {
		const blockSamples = 48000 * framerBlockMS / 1000
		samples := audio.Samples
		for len(samples) > 0 {
			n := blockSamples
			if n > len(samples) {
				n = len(samples)
			}
			block := protocol.AudioBlock{Samples: samples[:n], Channels: uint16(audio.Channels)}
			for _, frame := range sess.AddBlock(block) {
				if !a.enqueueWithRetry(ctx, socketID, params.Context, frame) {
					return false
				}
			}
			samples = samples[n:]
		}
	}
	return a.enqueueWithRetry(ctx, socketID, params.Context, sess.Finish())
}

const framerBlockMS = 50

// enqueueWithRetry admits frame onto the queue, retrying every 50ms while
// admission is rejected by backpressure, until ctx expires (spec.md §4.8:
// "if admission fails it retries every 50 ms until timeout"). Final frames
// are always admitted by Queue.TryEnqueue, so this only loops for
// non-final segments under sustained backpressure.
func (a *API) enqueueWithRetry(ctx context.Context, socketID, reqContext string, frame protocol.Frame) bool {
	frame.Header.Context = reqContext
	task := protocol.Task{
		FrameHeader: frame.Header,
		SocketID:    socketID,
		Payload:     frame.Payload,
	}

	ticker := time.NewTicker(admissionRetryInterval)
	defer ticker.Stop()

	for {
		if a.q.TryEnqueue(ctx, task) {
			return true
		}
		select {
		case <-ctx.Done():
			a.log.Warn("http transcript segment dropped: admission timed out",
				"task_id", task.TaskID, "socket_id", socketID)
			return false
		case <-ticker.C:
		}
	}
}
