package recognizer

import (
	"context"
	"testing"
	"time"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
)

type recordingSink struct {
	delivered []protocol.Result
}

func (s *recordingSink) DeliverResult(_ context.Context, _ string, result protocol.Result) {
	s.delivered = append(s.delivered, result)
}

func TestWorkerProcessesTaskAndAcks(t *testing.T) {
	q := queue.New(logging.NoOpLogger{}, 10, 10)
	sink := &recordingSink{}
	worker := NewWorker(logging.NoOpLogger{}, q, EchoModel{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	task := protocol.Task{FrameHeader: protocol.FrameHeader{TaskID: "t1", IsFinal: true}, SocketID: "s1"}
	if !q.TryEnqueue(ctx, task) {
		t.Fatal("expected task to be admitted")
	}

	deadline := time.After(time.Second)
	for len(sink.delivered) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for worker to deliver a result")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if sink.delivered[0].TaskID != "t1" {
		t.Fatalf("unexpected delivered result: %+v", sink.delivered[0])
	}
	if got := q.PendingForSocket("s1"); got != 0 {
		t.Fatalf("expected pending count to be reconciled to 0, got %d", got)
	}
}
