// Package wsclient implements WSClient (C4): a persistent authenticated
// WebSocket connection to the server, sending Frames and receiving Results.
// The dial/reconnect/send/receive shape follows the teacher's LokutorTTS
// provider (getConn + wsjson.Write + conn.Read loop), generalized with
// exponential-backoff reconnection per spec.md §4.4.
package wsclient

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

const (
	backoffMin = 500 * time.Millisecond
	backoffMax = 8 * time.Second
)

type helloMessage struct {
	Secret string `json:"secret,omitempty"`
}

// Client maintains one WebSocket connection and republishes Results on a
// single channel. Non-final Results for task_ids not registered via
// MarkActive are discarded before publishing, matching spec.md §4.4's
// "discard results for inactive task_ids" contract; final Results are always
// published.
type Client struct {
	log    logging.Logger
	uri    string
	secret string

	mu   sync.Mutex
	conn *websocket.Conn

	results chan protocol.Result

	activeTaskIDs map[string]struct{}
	activeMu      sync.Mutex
}

// New normalizes http(s)/ws(s)/bare host:port server_uri values to ws/wss,
// per spec.md §6.
func New(log logging.Logger, serverURI, secret string) *Client {
	return &Client{
		log:           log,
		uri:           normalizeURI(serverURI),
		secret:        secret,
		results:       make(chan protocol.Result, 32),
		activeTaskIDs: make(map[string]struct{}),
	}
}

func normalizeURI(raw string) string {
	switch {
	case strings.HasPrefix(raw, "ws://"), strings.HasPrefix(raw, "wss://"):
		return raw
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	default:
		return "ws://" + raw
	}
}

// Results returns the channel Results are published on.
func (c *Client) Results() <-chan protocol.Result {
	return c.results
}

// MarkActive registers a task_id as one whose results should be delivered;
// call before sending its first Frame.
func (c *Client) MarkActive(taskID string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	c.activeTaskIDs[taskID] = struct{}{}
}

// MarkInactive forgets a task_id, e.g. once its final Result is committed.
func (c *Client) MarkInactive(taskID string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	delete(c.activeTaskIDs, taskID)
}

func (c *Client) isActive(taskID string) bool {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	_, ok := c.activeTaskIDs[taskID]
	return ok
}

// Run dials, authenticates, and runs the receive loop until ctx is
// cancelled, reconnecting with exponential backoff and jitter on any
// disconnect. Any in-flight session is abandoned on reconnect rather than
// retried, per spec.md §4.4 -- the caller must re-arm via MarkActive.
func (c *Client) Run(ctx context.Context) {
	backoff := backoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("dial failed, retrying", "error", err, "backoff", backoff)
			if !sleepCtx(ctx, jitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = backoffMin
		c.setConn(conn)
		c.receiveLoop(ctx, conn)
		c.setConn(nil)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.uri, &websocket.DialOptions{
		Subprotocols: []string{"binary"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.uri, err)
	}
	if c.secret != "" {
		if err := wsjson.Write(ctx, conn, helloMessage{Secret: c.secret}); err != nil {
			conn.Close(websocket.StatusAbnormalClosure, "hello failed")
			return nil, fmt.Errorf("send hello: %w", err)
		}
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var result protocol.Result
		if err := wsjson.Read(ctx, conn, &result); err != nil {
			c.log.Warn("connection lost", "error", err)
			return
		}
		if !result.IsFinal && !c.isActive(result.TaskID) {
			continue // stale partial for a task_id we no longer consider active
		}
		select {
		case c.results <- result:
		default:
			c.log.Warn("result channel full, dropping result", "task_id", result.TaskID)
		}
	}
}

// SendFrame writes a Frame on the current connection, if any.
func (c *Client) SendFrame(ctx context.Context, f protocol.Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no active connection")
	}
	return protocol.WriteFrame(ctx, conn, f)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffMax {
		next = backoffMax
	}
	return next
}

func jitter(d time.Duration) time.Duration {
	j := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + j
}
