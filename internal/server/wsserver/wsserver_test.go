package wsserver

import (
	"context"
	"testing"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
)

type fakeWaiter struct {
	delivered []protocol.Result
	doneOn    bool
}

func (f *fakeWaiter) Deliver(r protocol.Result) bool {
	f.delivered = append(f.delivered, r)
	return r.IsFinal
}

func TestDeliverResultRoutesToWaiterAndUnregistersOnFinal(t *testing.T) {
	q := queue.New(logging.NoOpLogger{}, 10, 10)
	s := New(logging.NoOpLogger{}, "", q)

	w := &fakeWaiter{}
	s.RegisterWaiter("task-1", w)

	s.DeliverResult(context.Background(), "no-such-socket", protocol.Result{TaskID: "task-1", IsFinal: false})
	if len(w.delivered) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(w.delivered))
	}

	s.mu.Lock()
	_, stillRegistered := s.waiters["task-1"]
	s.mu.Unlock()
	if !stillRegistered {
		t.Fatal("expected waiter to remain registered after non-final result")
	}

	s.DeliverResult(context.Background(), "no-such-socket", protocol.Result{TaskID: "task-1", IsFinal: true})

	s.mu.Lock()
	_, stillRegistered = s.waiters["task-1"]
	s.mu.Unlock()
	if stillRegistered {
		t.Fatal("expected waiter to be unregistered after final result")
	}
}

func TestDeliverResultNoWaiterOrSocketLogsAndReturns(t *testing.T) {
	q := queue.New(logging.NoOpLogger{}, 10, 10)
	s := New(logging.NoOpLogger{}, "", q)
	// must not panic
	s.DeliverResult(context.Background(), "unknown", protocol.Result{TaskID: "unknown-task"})
}
