package output

import (
	"context"
	"testing"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/platform"
)

func newTestCommitter() *Committer {
	return New(logging.NoOpLogger{}, platform.NoOp{}, Config{Paste: false, RestoreClip: true, CharIntervalMs: 10})
}

// S1 — Happy-path partial commit.
func TestHappyPathPartialCommit(t *testing.T) {
	c := newTestCommitter()
	ctx := context.Background()
	taskID := "task-s1"

	c.HandlePartialResult(ctx, taskID, "你", false, true)
	if st, _ := c.State(taskID); st.Committed != "" {
		t.Fatalf("expected no commit on first partial, got %q", st.Committed)
	}

	c.HandlePartialResult(ctx, taskID, "你好", false, true)
	if st, _ := c.State(taskID); st.Committed != "你" {
		t.Fatalf("expected committed=你, got %q", st.Committed)
	}

	c.HandlePartialResult(ctx, taskID, "你好世", false, true)
	if st, _ := c.State(taskID); st.Committed != "你好" {
		t.Fatalf("expected committed=你好, got %q", st.Committed)
	}

	c.HandlePartialResult(ctx, taskID, "你好世界", true, true)
	if _, ok := c.State(taskID); ok {
		t.Fatal("expected PartialCommitState to be removed after final")
	}
}

// S2 — Regression partial ignored.
func TestRegressionPartialIgnored(t *testing.T) {
	c := newTestCommitter()
	ctx := context.Background()
	state := &PartialCommitState{Committed: "hello"}

	c.commitPartialIncrement(ctx, state, "help", false)

	if state.Committed != "hello" {
		t.Fatalf("expected committed to stay 'hello' after regression, got %q", state.Committed)
	}
}

func TestCommitNeverShrinks(t *testing.T) {
	c := newTestCommitter()
	ctx := context.Background()
	state := &PartialCommitState{}

	c.commitPartialIncrement(ctx, state, "ab", false)
	if state.Committed != "ab" {
		t.Fatalf("expected 'ab', got %q", state.Committed)
	}
	c.commitPartialIncrement(ctx, state, "abc", false)
	if state.Committed != "abc" {
		t.Fatalf("expected 'abc', got %q", state.Committed)
	}
}

func TestLCPLenRuneSafe(t *testing.T) {
	if got := lcpLen("你好", "你好世界"); got != 2 {
		t.Fatalf("expected lcp length 2 runes, got %d", got)
	}
	if got := lcpLen("abc", "abd"); got != 2 {
		t.Fatalf("expected lcp length 2, got %d", got)
	}
}
