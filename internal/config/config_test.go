package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, _, err := LoadClientConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURI != "ws://127.0.0.1:6016" {
		t.Errorf("unexpected default server_uri: %q", cfg.ServerURI)
	}
	if !cfg.ReleaseTail.Enabled {
		t.Error("expected release_tail.enabled default true")
	}
	if len(cfg.Shortcuts) != 1 || cfg.Shortcuts[0].Key != "caps_lock" {
		t.Errorf("unexpected default shortcuts: %+v", cfg.Shortcuts)
	}
}

func TestLoadClientConfigFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	body := "server_uri: \"ws://example.com:9000\"\nthreshold: 0.7\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURI != "ws://example.com:9000" {
		t.Errorf("file override not applied: %q", cfg.ServerURI)
	}
	if cfg.Threshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.Threshold)
	}
	// unrelated defaults should survive the partial override
	if !cfg.RestoreClip {
		t.Error("expected restore_clip default to survive file override")
	}
}

func TestLoadClientConfigEnvOverride(t *testing.T) {
	t.Setenv("CAPSWRITER_SECRET", "s3cr3t")
	cfg, _, err := LoadClientConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Secret != "s3cr3t" {
		t.Errorf("expected env override to set secret, got %q", cfg.Secret)
	}
}

func TestEffectivePartialInput(t *testing.T) {
	cases := []struct {
		mode      PartialInputMode
		mic       bool
		expect    bool
	}{
		{PartialInputOff, true, false},
		{PartialInputOn, true, true},
		{PartialInputOn, false, false},
		{PartialInputForce, false, true},
	}
	for _, tc := range cases {
		c := ClientConfig{PartialInputEnabled: tc.mode}
		if got := c.EffectivePartialInput(tc.mic); got != tc.expect {
			t.Errorf("mode=%s mic=%v: expected %v, got %v", tc.mode, tc.mic, tc.expect, got)
		}
	}
}

func TestSegDurationDefaults(t *testing.T) {
	c := ClientConfig{}
	d, o := c.SegDuration(true)
	if d != 6 || o != 1 {
		t.Errorf("expected partial defaults 6/1, got %v/%v", d, o)
	}
	d, o = c.SegDuration(false)
	if d != 60 || o != 4 {
		t.Errorf("expected mic defaults 60/4, got %v/%v", d, o)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:6016" {
		t.Errorf("unexpected listen addr: %q", cfg.ListenAddr())
	}
	if cfg.ModelType != ModelParaformer {
		t.Errorf("unexpected default model_type: %q", cfg.ModelType)
	}
	if cfg.QueueMaxTotal != 64 || cfg.QueueMaxPerClient != 8 {
		t.Errorf("unexpected queue defaults: %+v", cfg)
	}
}

func TestLoadServerConfigTimeoutFloor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	body := "http:\n  timeout_secs: 1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.TimeoutSecs != 5 {
		t.Errorf("expected timeout floor of 5s, got %v", cfg.HTTP.TimeoutSecs)
	}
}
