package wsclient

import (
	"testing"
	"time"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

func TestNormalizeURI(t *testing.T) {
	cases := map[string]string{
		"ws://host:6016":    "ws://host:6016",
		"wss://host:6016":   "wss://host:6016",
		"http://host:6016":  "ws://host:6016",
		"https://host:6016": "wss://host:6016",
		"host:6016":         "ws://host:6016",
	}
	for in, want := range cases {
		if got := normalizeURI(in); got != want {
			t.Errorf("normalizeURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	b := backoffMin
	for i := 0; i < 20; i++ {
		b = nextBackoff(b)
	}
	if b != backoffMax {
		t.Fatalf("expected backoff to cap at %v, got %v", backoffMax, b)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	d := 2 * time.Second
	for i := 0; i < 50; i++ {
		j := jitter(d)
		if j < d/2 || j > d {
			t.Fatalf("jitter(%v) = %v out of expected [%v, %v] range", d, j, d/2, d)
		}
	}
}

func TestActiveTaskIDTracking(t *testing.T) {
	c := New(logging.NoOpLogger{}, "ws://127.0.0.1:6016", "")
	if c.isActive("t1") {
		t.Fatal("expected t1 inactive before MarkActive")
	}
	c.MarkActive("t1")
	if !c.isActive("t1") {
		t.Fatal("expected t1 active after MarkActive")
	}
	c.MarkInactive("t1")
	if c.isActive("t1") {
		t.Fatal("expected t1 inactive after MarkInactive")
	}
}
