package lifecycle

import (
	"testing"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

func TestShutdownRunsHooksInLIFOOrder(t *testing.T) {
	m := New(logging.NoOpLogger{}, false)

	var order []string
	m.RegisterOnShutdown("first", func() { order = append(order, "first") })
	m.RegisterOnShutdown("second", func() { order = append(order, "second") })
	m.RegisterOnShutdown("third", func() { order = append(order, "third") })

	m.Shutdown()
	m.WaitForShutdown()

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	m := New(logging.NoOpLogger{}, false)
	calls := 0
	m.RegisterOnShutdown("only", func() { calls++ })

	m.Shutdown()
	m.Shutdown()
	m.WaitForShutdown()

	if calls != 1 {
		t.Fatalf("expected hook to run exactly once, got %d", calls)
	}
}

func TestRegisterAfterShutdownRunsImmediately(t *testing.T) {
	m := New(logging.NoOpLogger{}, false)
	m.Shutdown()

	ran := false
	m.RegisterOnShutdown("late", func() { ran = true })
	if !ran {
		t.Fatal("expected hook registered after shutdown to run immediately")
	}
}

func TestIsShuttingDown(t *testing.T) {
	m := New(logging.NoOpLogger{}, false)
	if m.IsShuttingDown() {
		t.Fatal("should not be shutting down initially")
	}
	m.Shutdown()
	if !m.IsShuttingDown() {
		t.Fatal("should report shutting down after Shutdown")
	}
}
