// Package queue implements RecognizerQueue (C7): a bounded, in-process
// multi-consumer queue with per-client and global backpressure, grounded
// directly on original_source/util/server/queue_guard.py's QueueGuard.
package queue

import (
	"context"
	"sync"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

// Queue admits Tasks subject to per-client and global limits, always
// admitting final Tasks so a session's tail is never dropped, and dispatches
// admitted Tasks to whichever recognizer worker receives on Tasks().
type Queue struct {
	log logging.Logger

	maxTotal     int
	maxPerClient int

	mu             sync.Mutex
	pendingTotal   int
	pendingBySocket map[string]int

	tasks chan protocol.Task
	acks  chan protocol.QueueAck
}

// New builds a Queue with the given admission limits.
func New(log logging.Logger, maxTotal, maxPerClient int) *Queue {
	return &Queue{
		log:             log,
		maxTotal:        maxTotal,
		maxPerClient:    maxPerClient,
		pendingBySocket: make(map[string]int),
		tasks:           make(chan protocol.Task, maxTotal),
		acks:            make(chan protocol.QueueAck, maxTotal),
	}
}

// Tasks returns the channel recognizer workers should receive admitted
// Tasks from.
func (q *Queue) Tasks() <-chan protocol.Task {
	return q.tasks
}

// TryEnqueue applies the admission policy from queue_guard.py's
// try_enqueue: final segments are always admitted (a session's tail must
// never be lost); non-final segments are subject to the per-client and
// global limits.
func (q *Queue) TryEnqueue(ctx context.Context, task protocol.Task) bool {
	q.mu.Lock()
	perClient := q.pendingBySocket[task.SocketID]

	if !task.IsFinal {
		if perClient >= q.maxPerClient {
			q.mu.Unlock()
			q.log.Warn("dropping segment: per-client queue limit exceeded",
				"socket_id", task.SocketID, "pending", perClient, "limit", q.maxPerClient)
			return false
		}
		if q.pendingTotal >= q.maxTotal {
			q.mu.Unlock()
			q.log.Warn("dropping segment: global queue limit exceeded",
				"pending_total", q.pendingTotal, "limit", q.maxTotal)
			return false
		}
	}

	q.pendingTotal++
	q.pendingBySocket[task.SocketID] = perClient + 1
	q.mu.Unlock()

	select {
	case q.tasks <- task:
		return true
	case <-ctx.Done():
		q.OnTaskDone(task.SocketID)
		return false
	}
}

// OnTaskDone decrements the counters after an ACK (success or drop),
// matching queue_guard.py's on_task_done.
func (q *Queue) OnTaskDone(socketID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	current := q.pendingBySocket[socketID]
	if current > 0 {
		current--
	}
	if current <= 0 {
		delete(q.pendingBySocket, socketID)
	} else {
		q.pendingBySocket[socketID] = current
	}

	if q.pendingTotal > 0 {
		q.pendingTotal--
	}
}

// OnSocketClosed reclaims every pending slot held by a disconnected socket
// in one shot, matching queue_guard.py's on_socket_closed.
func (q *Queue) OnSocketClosed(socketID string) {
	q.mu.Lock()
	removed := q.pendingBySocket[socketID]
	delete(q.pendingBySocket, socketID)
	if removed > 0 {
		q.pendingTotal -= removed
		if q.pendingTotal < 0 {
			q.pendingTotal = 0
		}
	}
	total := q.pendingTotal
	q.mu.Unlock()

	if removed > 0 {
		q.log.Info("socket disconnected, reclaimed queue slots",
			"socket_id", socketID, "removed", removed, "pending_total", total)
	}
}

// Ack publishes a QueueAck and reconciles counters via OnTaskDone.
func (q *Queue) Ack(ack protocol.QueueAck) {
	q.OnTaskDone(ack.SocketID)
	select {
	case q.acks <- ack:
	default:
	}
}

// Acks returns the channel QueueAcks are published on.
func (q *Queue) Acks() <-chan protocol.QueueAck {
	return q.acks
}

// PendingTotal reports the current global pending count, for tests and
// diagnostics.
func (q *Queue) PendingTotal() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingTotal
}

// PendingForSocket reports the current pending count for one socket.
func (q *Queue) PendingForSocket(socketID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingBySocket[socketID]
}
