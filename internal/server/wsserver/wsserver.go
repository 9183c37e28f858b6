// Package wsserver implements WSServer (C6): it accepts WebSocket clients,
// authenticates them, deserializes Frames into Tasks, and enqueues them on
// the RecognizerQueue, then routes the recognizer's Results back to the
// originating socket (or an HTTP waiter, see httpapi). Grounded on the
// coder/websocket accept/read/write idioms protocol/wire.go already
// establishes for the client side.
package wsserver

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
	"github.com/lokutor-ai/capswriter-go/internal/server/queue"
)

type helloMessage struct {
	Secret string `json:"secret,omitempty"`
}

// Server accepts WebSocket connections and bridges them to a Queue.
type Server struct {
	log    logging.Logger
	secret string
	q      *queue.Queue

	mu      sync.Mutex
	sockets map[string]*socketSession
	waiters map[string]protocol.ResultWaiter
}

type socketSession struct {
	conn *websocket.Conn
}

// New builds a Server bridging WS clients to q.
func New(log logging.Logger, secret string, q *queue.Queue) *Server {
	return &Server{
		log:     log,
		secret:  secret,
		q:       q,
		sockets: make(map[string]*socketSession),
		waiters: make(map[string]protocol.ResultWaiter),
	}
}

// RegisterWaiter lets httpapi claim Results for a task_id submitted outside
// of any WebSocket session.
func (s *Server) RegisterWaiter(taskID string, w protocol.ResultWaiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[taskID] = w
}

func (s *Server) unregisterWaiter(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, taskID)
}

// UnregisterWaiter removes a previously registered ResultWaiter without
// waiting for a final delivery — used by httpapi on its timeout path so a
// request that never saw a final Result still releases its waiter entry
// (spec.md §4.8 "remove the waiter" on every exit path).
func (s *Server) UnregisterWaiter(taskID string) {
	s.unregisterWaiter(taskID)
}

// ServeHTTP upgrades the connection and runs the session until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"binary"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	socketID := uuid.NewString()
	ctx := r.Context()

	if !s.authenticate(ctx, conn) {
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	s.mu.Lock()
	s.sockets[socketID] = &socketSession{conn: conn}
	s.mu.Unlock()

	s.log.Info("client connected", "socket_id", socketID)
	s.sessionLoop(ctx, socketID, conn)

	s.mu.Lock()
	delete(s.sockets, socketID)
	s.mu.Unlock()
	s.q.OnSocketClosed(socketID)
	conn.Close(websocket.StatusNormalClosure, "")
	s.log.Info("client disconnected", "socket_id", socketID)
}

func (s *Server) authenticate(ctx context.Context, conn *websocket.Conn) bool {
	if s.secret == "" {
		return true
	}
	var hello helloMessage
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return false
	}
	return hello.Secret == s.secret
}

func (s *Server) sessionLoop(ctx context.Context, socketID string, conn *websocket.Conn) {
	for {
		frame, err := protocol.ReadFrame(ctx, conn)
		if err != nil {
			return
		}
		task := protocol.Task{
			FrameHeader: frame.Header,
			SocketID:    socketID,
			Payload:     frame.Payload,
		}
		if !s.q.TryEnqueue(ctx, task) {
			// Rejected by admission control: TryEnqueue already logged the
			// drop at WARN. The task was never admitted (counters were
			// never incremented for it), so no QueueAck is emitted here —
			// QueueAck exists to reconcile counters for tasks the
			// recognizer actually received (spec.md §4.7); acking a
			// rejected task would decrement some other in-flight task's
			// count on this socket.
			continue
		}
	}
}

// DeliverResult routes a Result to the ResultWaiter registered for its
// task_id if there is one (HTTP-submitted tasks), and otherwise to the
// originating socket.
func (s *Server) DeliverResult(ctx context.Context, socketID string, result protocol.Result) {
	s.mu.Lock()
	waiter, isWaiter := s.waiters[result.TaskID]
	sess, hasSocket := s.sockets[socketID]
	s.mu.Unlock()

	if isWaiter {
		if waiter.Deliver(result) {
			s.unregisterWaiter(result.TaskID)
		}
		return
	}

	if !hasSocket {
		s.log.Warn("no socket or waiter for result", "task_id", result.TaskID, "socket_id", socketID)
		return
	}
	if err := wsjson.Write(ctx, sess.conn, result); err != nil {
		s.log.Warn("failed to deliver result", "socket_id", socketID, "error", err)
	}
}
