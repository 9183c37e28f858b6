// Package config implements the layered defaults->file->env configuration
// model described in spec.md §9 DESIGN NOTES, backed by github.com/spf13/viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PartialInputMode mirrors spec.md §6's partial_input_enabled tri-state.
type PartialInputMode string

const (
	PartialInputOff   PartialInputMode = "false"
	PartialInputOn    PartialInputMode = "true"
	PartialInputForce PartialInputMode = "force"
)

// ShortcutSpec is the configured form of spec.md §3's Shortcut type.
type ShortcutSpec struct {
	Key       string `mapstructure:"key"`
	Type      string `mapstructure:"type"` // "keyboard" | "mouse"
	HoldMode  bool   `mapstructure:"hold_mode"`
	Suppress  bool   `mapstructure:"suppress"`
	Enabled   bool   `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
}

// ReleaseTail carries the six release_tail_* keys from spec.md §6 as one
// group. The shortcut engine's release-tail loop reads the timing keys and
// AudioCapture reads vad_threshold.
type ReleaseTail struct {
	Enabled       bool    `mapstructure:"enabled"`
	Adaptive      bool    `mapstructure:"adaptive"`
	Ms            int     `mapstructure:"ms"`
	MaxMs         int     `mapstructure:"max_ms"`
	SilenceMs     int     `mapstructure:"silence_ms"`
	VADThreshold  float64 `mapstructure:"vad_threshold"`
}

// ClientConfig holds every client-recognized key from spec.md §6.
type ClientConfig struct {
	ServerURI string `mapstructure:"server_uri"`
	Secret    string `mapstructure:"secret"`
	Paste     bool   `mapstructure:"paste"`
	RestoreClip bool `mapstructure:"restore_clip"`

	Threshold   float64     `mapstructure:"threshold"`
	ReleaseTail ReleaseTail `mapstructure:"release_tail"`

	PartialInputEnabled       PartialInputMode `mapstructure:"partial_input_enabled"`
	PartialInputCharIntervalMs int             `mapstructure:"partial_input_char_interval_ms"`
	PartialInputSegDuration    float64         `mapstructure:"partial_input_seg_duration"`
	PartialInputSegOverlap     float64         `mapstructure:"partial_input_seg_overlap"`

	MicSegDuration float64 `mapstructure:"mic_seg_duration"`
	MicSegOverlap  float64 `mapstructure:"mic_seg_overlap"`

	AudioDeviceAutoRefresh     bool    `mapstructure:"audio_device_auto_refresh"`
	AudioDevicePollIntervalSecs float64 `mapstructure:"audio_device_poll_interval_secs"`

	TrashPunc string         `mapstructure:"trash_punc"`
	Shortcuts []ShortcutSpec `mapstructure:"shortcuts"`

	TraditionalConvert bool   `mapstructure:"traditional_convert"`
	TraditionalLocale  string `mapstructure:"traditional_locale"`
}

// EffectivePartialInput resolves the tri-state against whether the session
// is currently a live mic stream (force always enables it).
func (c ClientConfig) EffectivePartialInput(isMicStream bool) bool {
	switch c.PartialInputEnabled {
	case PartialInputForce:
		return true
	case PartialInputOn:
		return isMicStream
	default:
		return false
	}
}

// SegDuration returns the configured segment duration for the given input
// mode, in seconds, applying spec.md §4.3's defaults (6/1 for partial input,
// 60/4 otherwise) when the user left the value at zero.
func (c ClientConfig) SegDuration(partial bool) (duration, overlap float64) {
	if partial {
		duration, overlap = c.PartialInputSegDuration, c.PartialInputSegOverlap
		if duration == 0 {
			duration = 6
		}
		if overlap == 0 {
			overlap = 1
		}
		return duration, overlap
	}
	duration, overlap = c.MicSegDuration, c.MicSegOverlap
	if duration == 0 {
		duration = 60
	}
	if overlap == 0 {
		overlap = 4
	}
	return duration, overlap
}

// DeviceReopenInterval returns the device poll interval as a time.Duration,
// defaulting to 1.5s per spec.md §4.1.
func (c ClientConfig) DeviceReopenInterval() time.Duration {
	if c.AudioDevicePollIntervalSecs <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.AudioDevicePollIntervalSecs * float64(time.Second))
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURI:   "ws://127.0.0.1:6016",
		Paste:       false,
		RestoreClip: true,
		Threshold:   0.3,
		ReleaseTail: ReleaseTail{
			Enabled:      true,
			Adaptive:     true,
			Ms:           350,
			MaxMs:        1000,
			SilenceMs:    180,
			VADThreshold: 0.02,
		},
		PartialInputEnabled:        PartialInputOff,
		PartialInputCharIntervalMs: 10,
		AudioDeviceAutoRefresh:     true,
		AudioDevicePollIntervalSecs: 1.5,
		TrashPunc: "，。,.、",
		Shortcuts: []ShortcutSpec{
			{Key: "caps_lock", Type: "keyboard", HoldMode: true, Suppress: true, Enabled: true, Threshold: 0.3},
		},
	}
}

// LoadClientConfig builds a ClientConfig by layering defaults, an optional
// config file, and CAPSWRITER_-prefixed environment variables, in that
// order, per spec.md §9's "defaults -> file overrides -> env overrides"
// directive.
func LoadClientConfig(path string) (ClientConfig, *viper.Viper, error) {
	v := newViper()

	defaults := defaultClientConfig()
	setDefaultsFromStruct(v, "", defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return ClientConfig{}, nil, fmt.Errorf("read client config %s: %w", path, err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	return cfg, v, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CAPSWRITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
