package platform

import "testing"

func TestShouldForcePasteMatchesKeyword(t *testing.T) {
	w := WindowInfo{ProcessName: "rustdesk.exe"}
	ok, kw := ShouldForcePaste(w)
	if !ok || kw != "rustdesk" {
		t.Fatalf("expected match on rustdesk, got ok=%v kw=%q", ok, kw)
	}
}

func TestShouldForcePasteCaseInsensitive(t *testing.T) {
	w := WindowInfo{Title: "WeChat"}
	ok, _ := ShouldForcePaste(w)
	if !ok {
		t.Fatal("expected case-insensitive match on WeChat")
	}
}

func TestShouldForcePasteNoMatch(t *testing.T) {
	w := WindowInfo{ProcessName: "notepad.exe", Title: "Untitled"}
	if ok, _ := ShouldForcePaste(w); ok {
		t.Fatal("expected no match for notepad")
	}
}
