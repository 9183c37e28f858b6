package shortcut

import (
	"sync"
	"testing"
	"time"

	"github.com/lokutor-ai/capswriter-go/internal/config"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

type fakeVAD struct {
	mu   sync.Mutex
	last time.Time
}

func (f *fakeVAD) set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = t
}

func (f *fakeVAD) LastVoiceActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func specFor(key string, threshold float64) config.ShortcutSpec {
	return config.ShortcutSpec{
		Key: key, Type: "keyboard", HoldMode: true, Suppress: true, Enabled: true, Threshold: threshold,
	}
}

func drainEvent(t *testing.T, events <-chan Event, timeout time.Duration) (Event, bool) {
	t.Helper()
	select {
	case e := <-events:
		return e, true
	case <-time.After(timeout):
		return Event{}, false
	}
}

func TestTapShorterThanThresholdEmitsNoSession(t *testing.T) {
	vad := &fakeVAD{}
	e := New(logging.NoOpLogger{}, vad, config.ReleaseTail{}, []config.ShortcutSpec{specFor("caps_lock", 0.2)}, func(string) {})

	e.KeyDown("caps_lock")
	time.Sleep(20 * time.Millisecond) // well under the 200ms threshold
	e.KeyUp("caps_lock")

	for {
		evt, ok := drainEvent(t, e.Events(), 300*time.Millisecond)
		if !ok {
			return
		}
		if evt.Type == EventBegin || evt.Type == EventFinish {
			t.Fatalf("expected no begin/finish pair for a short tap, got %+v", evt)
		}
	}
}

func TestThresholdElapsedEmitsBeginThenFinishOnRelease(t *testing.T) {
	vad := &fakeVAD{}
	e := New(logging.NoOpLogger{}, vad, config.ReleaseTail{Enabled: false}, []config.ShortcutSpec{specFor("caps_lock", 0.02)}, func(string) {})

	e.KeyDown("caps_lock")
	evt, ok := drainEvent(t, e.Events(), 500*time.Millisecond)
	if !ok || evt.Type != EventPending {
		t.Fatalf("expected pending event immediately on key-down, got %+v ok=%v", evt, ok)
	}
	evt, ok = drainEvent(t, e.Events(), 500*time.Millisecond)
	if !ok || evt.Type != EventBegin {
		t.Fatalf("expected begin event once threshold elapses, got %+v ok=%v", evt, ok)
	}

	e.KeyUp("caps_lock")
	evt, ok = drainEvent(t, e.Events(), 500*time.Millisecond)
	if !ok || evt.Type != EventFinish {
		t.Fatalf("expected immediate finish (release_tail disabled), got %+v ok=%v", evt, ok)
	}
}

// S5 — Release tail extension (scaled down from spec.md's seconds to
// milliseconds to keep the test fast; the ratios are preserved).
func TestReleaseTailExtendsWhileVoiceActive(t *testing.T) {
	vad := &fakeVAD{}
	tail := config.ReleaseTail{Enabled: true, Adaptive: true, Ms: 35, MaxMs: 300, SilenceMs: 50, VADThreshold: 0.02}
	e := New(logging.NoOpLogger{}, vad, tail, []config.ShortcutSpec{specFor("caps_lock", 0.01)}, func(string) {})

	e.KeyDown("caps_lock")
	if _, ok := drainEvent(t, e.Events(), 200*time.Millisecond); !ok {
		t.Fatal("expected pending event")
	}
	if _, ok := drainEvent(t, e.Events(), 200*time.Millisecond); !ok {
		t.Fatal("expected begin event")
	}

	releaseAt := time.Now()
	vad.set(releaseAt)
	// keep "voice active" for 80ms past release, then go silent
	stop := time.NewTimer(80 * time.Millisecond)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop.C:
				return
			case <-ticker.C:
				vad.set(time.Now())
			}
		}
	}()

	e.KeyUp("caps_lock")

	evt, ok := drainEvent(t, e.Events(), 1*time.Second)
	if !ok || evt.Type != EventFinish {
		t.Fatalf("expected finish event, got %+v ok=%v", evt, ok)
	}
	elapsed := time.Since(releaseAt)
	if elapsed < time.Duration(tail.SilenceMs)*time.Millisecond {
		t.Fatalf("finish fired too early: %v", elapsed)
	}
	if elapsed >= time.Duration(tail.MaxMs)*time.Millisecond {
		t.Fatalf("finish should fire strictly before max_ms cap, elapsed=%v", elapsed)
	}
}

func TestComboKeyNormalizesModifierAliases(t *testing.T) {
	a := comboKey([]string{"ctrl_l", "c"})
	b := comboKey([]string{"ctrl", "c"})
	if a != b {
		t.Fatalf("expected alias-normalized combos to match: %q vs %q", a, b)
	}
}

func TestIsToggleKey(t *testing.T) {
	if !isToggleKey("caps_lock") {
		t.Fatal("expected caps_lock to be a toggle key")
	}
	if isToggleKey("a") {
		t.Fatal("expected 'a' not to be a toggle key")
	}
}
