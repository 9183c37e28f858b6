package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseCommandCNPrefix(t *testing.T) {
	cmd, ok := ParseCommand("请翻译为英语：你好世界")
	if !ok {
		t.Fatal("expected command to be recognized")
	}
	if cmd.TargetLang != "en" {
		t.Fatalf("expected target lang en, got %q", cmd.TargetLang)
	}
	if cmd.Content != "你好世界" {
		t.Fatalf("expected content 你好世界, got %q", cmd.Content)
	}
}

func TestParseCommandENPrefix(t *testing.T) {
	cmd, ok := ParseCommand("Please translate to Japanese: hello there")
	if !ok {
		t.Fatal("expected command to be recognized")
	}
	if cmd.TargetLang != "ja" {
		t.Fatalf("expected target lang ja, got %q", cmd.TargetLang)
	}
	if cmd.Content != "hello there" {
		t.Fatalf("expected content 'hello there', got %q", cmd.Content)
	}
}

func TestParseCommandISOCode(t *testing.T) {
	cmd, ok := ParseCommand("请翻译 fr: bonjour")
	if !ok {
		t.Fatal("expected command to be recognized")
	}
	if cmd.TargetLang != "fr" {
		t.Fatalf("expected target lang fr, got %q", cmd.TargetLang)
	}
	if cmd.Content != "bonjour" {
		t.Fatalf("expected content bonjour, got %q", cmd.Content)
	}
}

func TestParseCommandNoPrefixIsNotRecognized(t *testing.T) {
	if _, ok := ParseCommand("just a normal sentence"); ok {
		t.Fatal("expected no command to be recognized")
	}
}

func TestParseCommandDefaultsToEnglishWhenLangUnrecognized(t *testing.T) {
	cmd, ok := ParseCommand("请翻译 这段话没有语言前缀")
	if !ok {
		t.Fatal("expected command to be recognized")
	}
	if cmd.TargetLang != "en" {
		t.Fatalf("expected default target lang en, got %q", cmd.TargetLang)
	}
}

func TestClientTranslateV2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/google/language/translate/v2" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req translateV2Request
		json.NewDecoder(r.Body).Decode(&req)
		if req.Target != "en" {
			t.Fatalf("unexpected target %q", req.Target)
		}
		json.NewEncoder(w).Encode(translateV2Response{
			Data: struct {
				Translations []struct {
					TranslatedText string `json:"translatedText"`
				} `json:"translations"`
			}{
				Translations: []struct {
					TranslatedText string `json:"translatedText"`
				}{{TranslatedText: "Hello world"}},
			},
		})
	}))
	defer srv.Close()

	client := New(Config{ServerURL: srv.URL, SourceLang: "auto", Timeout: time.Second})
	out, err := client.Translate(context.Background(), "你好世界", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello world" {
		t.Fatalf("unexpected translation: %q", out)
	}
}

func TestClientTranslateFallsBackToNative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/google/language/translate/v2":
			w.WriteHeader(http.StatusNotFound)
		case "/translate":
			json.NewEncoder(w).Encode(translateNativeResponse{Result: "bonjour le monde"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := New(Config{ServerURL: srv.URL, SourceLang: "auto", Timeout: time.Second})
	out, err := client.Translate(context.Background(), "hello world", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "bonjour le monde" {
		t.Fatalf("unexpected translation: %q", out)
	}
}

func TestMaybeTranslateUnreachableFallsThrough(t *testing.T) {
	client := New(Config{ServerURL: "http://127.0.0.1:1", Timeout: 50 * time.Millisecond})
	out, ok := MaybeTranslate(context.Background(), client, true, "请翻译为英语：你好")
	if ok {
		t.Fatal("expected translation to fail and fall through")
	}
	if out != "请翻译为英语：你好" {
		t.Fatalf("expected original text passthrough, got %q", out)
	}
}

func TestMaybeTranslateDisabled(t *testing.T) {
	client := New(Config{})
	out, ok := MaybeTranslate(context.Background(), client, false, "请翻译为英语：你好")
	if ok {
		t.Fatal("expected no-op when disabled")
	}
	if out != "请翻译为英语：你好" {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestMaybeTranslateNoCommand(t *testing.T) {
	client := New(Config{ServerURL: "http://127.0.0.1:1"})
	out, ok := MaybeTranslate(context.Background(), client, true, "plain text")
	if ok {
		t.Fatal("expected no-op without a command prefix")
	}
	if out != "plain text" {
		t.Fatalf("expected passthrough, got %q", out)
	}
}
