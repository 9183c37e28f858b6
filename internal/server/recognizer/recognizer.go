// Package recognizer defines the contract between RecognizerQueue and the
// external ASR/model collaborator (out of scope per spec.md's non-goals:
// model internals are never implemented here). It also provides a minimal
// in-process stub used by tests and as a development fallback when no real
// recognizer process is configured.
package recognizer

import (
	"context"
	"strconv"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
	"github.com/lokutor-ai/capswriter-go/internal/server/translate"
)

// Model produces a Result (or an ack-only drop) for one Task. A real
// implementation wraps an external process or RPC client; this package only
// defines the seam.
type Model interface {
	Recognize(ctx context.Context, task protocol.Task) (protocol.Result, error)
}

// ResultSink receives a Result produced for a Task, routed back to the
// originating socket or HTTP waiter.
type ResultSink interface {
	DeliverResult(ctx context.Context, socketID string, result protocol.Result)
}

// Worker drains q.Tasks(), calls model.Recognize, and forwards the outcome
// both to sink (for delivery) and back to q (as a QueueAck, to reconcile
// backpressure counters) per spec.md §3's QueueAck contract.
type Worker struct {
	log   logging.Logger
	q     *queue.Queue
	model Model
	sink  ResultSink

	translateEnabled bool
	translator       *translate.Client
}

// NewWorker builds a Worker bound to one recognizer Model.
func NewWorker(log logging.Logger, q *queue.Queue, model Model, sink ResultSink) *Worker {
	return &Worker{log: log, q: q, model: model, sink: sink}
}

// WithTranslate enables the spec.md §4.5 translation-prefix intercept on
// final Results: text opening with a "please translate" command has its
// remainder translated via client and the Result's text replaced.
func (w *Worker) WithTranslate(client *translate.Client) *Worker {
	w.translateEnabled = true
	w.translator = client
	return w
}

// Run drains tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-w.q.Tasks():
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task protocol.Task) {
	result, err := w.model.Recognize(ctx, task)
	if err != nil {
		w.log.Warn("recognizer error", "task_id", task.TaskID, "error", err)
		w.q.Ack(protocol.QueueAck{TaskID: task.TaskID, SocketID: task.SocketID, Dropped: true, Reason: protocol.DropModelError})
		return
	}
	if w.translateEnabled && result.IsFinal {
		if translated, ok := translate.MaybeTranslate(ctx, w.translator, true, result.Text); ok {
			result.Text = translated
		} else if _, hadCommand := translate.ParseCommand(result.Text); hadCommand {
			w.log.Warn("translation backend unreachable, passing original text through", "task_id", task.TaskID)
		}
	}

	w.sink.DeliverResult(ctx, task.SocketID, result)
	w.q.Ack(protocol.QueueAck{TaskID: task.TaskID, SocketID: task.SocketID, Dropped: false})
}

// EchoModel is a minimal stub Model: it returns the task's payload length as
// a placeholder "text", useful for exercising the queue/worker/sink wiring
// in tests and local development without a real recognizer process.
type EchoModel struct{}

func (EchoModel) Recognize(_ context.Context, task protocol.Task) (protocol.Result, error) {
	return protocol.Result{
		TaskID:     task.TaskID,
		Text:       strconv.Itoa(len(task.Payload)),
		TimeStart:  task.TimeStart,
		TimeSubmit: task.TimeSubmit,
		IsFinal:    task.IsFinal,
		Source:     task.Source,
	}, nil
}
