// Package shortcut implements ShortcutEngine (C2): per-shortcut state
// machines turning raw key/mouse events into begin/finish/cancel sessions,
// including the release-tail extension loop. Grounded on
// original_source/util/client/shortcut/task.py's ShortcutTask
// (launch/cancel/finish/_finish_with_release_tail/_finalize_finish).
package shortcut

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/capswriter-go/internal/config"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

// EventType mirrors spec.md §2's begin/finish/cancel vocabulary.
type EventType string

const (
	// EventPending fires immediately on key-down, before the threshold timer
	// elapses, so a consumer can start buffering audio right away (spec.md
	// §4.2: "set recording=true immediately") without losing the threshold
	// window's samples. EventBegin still marks the session confirmed.
	EventPending EventType = "pending"
	EventBegin   EventType = "begin"
	EventFinish  EventType = "finish"
	EventCancel  EventType = "cancel"
)

// Event is emitted on the engine's Events channel.
type Event struct {
	Type EventType
	Key  string
	Time time.Time
}

// state is a shortcut's position in the idle -> pending -> recording ->
// (cancelled | finishing -> final_sent -> idle) machine from spec.md §3.
type state int

const (
	stateIdle state = iota
	statePending
	stateRecording
	stateFinishing
)

// modifierAliases groups left/right variants, per spec.md §4.2.
var modifierAliases = map[string]string{
	"ctrl_l": "ctrl", "ctrl_r": "ctrl", "ctrl": "ctrl",
	"cmd_l": "cmd", "cmd_r": "cmd", "cmd": "cmd",
	"alt_l": "alt", "alt_r": "alt", "alt": "alt",
	"shift_l": "shift", "shift_r": "shift", "shift": "shift",
}

func normalizeKey(key string) string {
	if alias, ok := modifierAliases[key]; ok {
		return alias
	}
	return key
}

// comboKey joins normalized key names canonically so set-equality combos
// match regardless of press order.
func comboKey(keys []string) string {
	normalized := make([]string, len(keys))
	for i, k := range keys {
		normalized[i] = normalizeKey(k)
	}
	sort.Strings(normalized)
	return strings.Join(normalized, "+")
}

var toggleKeys = map[string]bool{
	"caps_lock": true, "num_lock": true, "scroll_lock": true,
}

func isToggleKey(key string) bool {
	return toggleKeys[normalizeKey(key)]
}

// task tracks one shortcut's session.
type task struct {
	spec config.ShortcutSpec

	mu            sync.Mutex
	st            state
	pendingTimer  *time.Timer
	releaseCancel context.CancelFunc
	synthetic     bool // guards the next matching event from re-triggering
}

// VoiceActivityClock reports the last time voice activity was observed, so
// the release-tail loop can extend capture while the user is still talking.
type VoiceActivityClock interface {
	LastVoiceActivity() time.Time
}

// Engine owns one task per configured shortcut and publishes begin/finish/
// cancel events.
type Engine struct {
	log   logging.Logger
	vad   VoiceActivityClock
	tail  config.ReleaseTail
	tasks map[string]*task

	events chan Event

	restoreFn func(key string) // re-emit a suppressed tap / restore a toggle key
}

// New builds an Engine from the configured Shortcut specs.
func New(log logging.Logger, vad VoiceActivityClock, tail config.ReleaseTail, specs []config.ShortcutSpec, restoreFn func(string)) *Engine {
	tasks := make(map[string]*task)
	for _, s := range specs {
		if !s.Enabled {
			continue
		}
		tasks[s.Key] = &task{spec: s}
	}
	return &Engine{
		log:       log,
		vad:       vad,
		tail:      tail,
		tasks:     tasks,
		events:    make(chan Event, 16),
		restoreFn: restoreFn,
	}
}

// Events returns the channel begin/finish/cancel events are published on.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(evt Event) {
	select {
	case e.events <- evt:
	default:
		e.log.Warn("shortcut event dropped, consumer too slow", "type", evt.Type, "key", evt.Key)
	}
}

// KeyDown handles a key-down for a configured shortcut key, advancing its
// state machine. Unconfigured keys are ignored.
func (e *Engine) KeyDown(key string) {
	t, ok := e.tasks[key]
	if !ok {
		return
	}
	t.mu.Lock()
	if t.synthetic {
		t.synthetic = false
		t.mu.Unlock()
		return
	}
	if t.st != stateIdle {
		t.mu.Unlock()
		return
	}
	t.st = statePending
	t.mu.Unlock()
	e.emit(Event{Type: EventPending, Key: t.spec.Key, Time: time.Now()})

	threshold := t.spec.Threshold
	if threshold <= 0 {
		threshold = 0.3
	}
	timer := time.AfterFunc(time.Duration(threshold*float64(time.Second)), func() {
		e.onThresholdElapsed(t)
	})

	t.mu.Lock()
	t.pendingTimer = timer
	t.mu.Unlock()
}

func (e *Engine) onThresholdElapsed(t *task) {
	t.mu.Lock()
	if t.st != statePending {
		t.mu.Unlock()
		return
	}
	t.st = stateRecording
	t.mu.Unlock()
	e.emit(Event{Type: EventBegin, Key: t.spec.Key, Time: time.Now()})
}

// KeyUp handles a key-up for a configured shortcut key.
func (e *Engine) KeyUp(key string) {
	t, ok := e.tasks[key]
	if !ok {
		return
	}

	t.mu.Lock()
	if t.synthetic {
		t.synthetic = false
		t.mu.Unlock()
		return
	}
	switch t.st {
	case statePending:
		if t.pendingTimer != nil {
			t.pendingTimer.Stop()
		}
		t.st = stateIdle
		suppress := t.spec.Suppress
		holdMode := t.spec.HoldMode
		t.mu.Unlock()
		e.emit(Event{Type: EventCancel, Key: t.spec.Key, Time: time.Now()})
		if holdMode && suppress {
			e.reemitSuppressedTap(t)
		}
		return
	case stateRecording:
		t.st = stateFinishing
		t.mu.Unlock()
		e.startReleaseTail(t)
		return
	default:
		t.mu.Unlock()
		return
	}
}

func (e *Engine) reemitSuppressedTap(t *task) {
	if e.restoreFn == nil {
		return
	}
	t.mu.Lock()
	t.synthetic = true
	t.mu.Unlock()
	e.restoreFn(t.spec.Key)
}

// startReleaseTail implements _finish_with_release_tail: wait at least
// release_tail_ms, then extend up to release_tail_max_ms while voice
// activity continues within release_tail_silence_ms of "now".
func (e *Engine) startReleaseTail(t *task) {
	if !e.tail.Enabled || e.tail.Ms <= 0 {
		e.finalizeFinish(t)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.releaseCancel = cancel
	t.mu.Unlock()

	go func() {
		releaseTime := time.Now()
		minWaitDur := time.Duration(e.tail.Ms) * time.Millisecond
		maxWaitDur := time.Duration(e.tail.MaxMs) * time.Millisecond
		if maxWaitDur < minWaitDur {
			maxWaitDur = minWaitDur
		}
		silenceWaitDur := time.Duration(e.tail.SilenceMs) * time.Millisecond

		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			elapsed := time.Since(releaseTime)
			if elapsed >= maxWaitDur {
				break
			}
			if elapsed < minWaitDur {
				continue
			}
			if !e.tail.Adaptive {
				break
			}
			lastVoice := releaseTime
			if e.vad != nil {
				if v := e.vad.LastVoiceActivity(); v.After(lastVoice) {
					lastVoice = v
				}
			}
			if time.Since(lastVoice) >= silenceWaitDur {
				break
			}
			continue
		}
		e.finalizeFinish(t)
	}()
}

func (e *Engine) finalizeFinish(t *task) {
	t.mu.Lock()
	if t.st != stateFinishing {
		t.mu.Unlock()
		return
	}
	t.st = stateIdle
	suppress := t.spec.Suppress
	key := t.spec.Key
	t.mu.Unlock()

	e.emit(Event{Type: EventFinish, Key: key, Time: time.Now()})

	if isToggleKey(key) && !suppress {
		e.restoreToggleKey(t)
	}
}

func (e *Engine) restoreToggleKey(t *task) {
	if e.restoreFn == nil {
		return
	}
	t.mu.Lock()
	t.synthetic = true
	t.mu.Unlock()
	e.restoreFn(t.spec.Key)
}

// Cancel aborts the in-flight session for key, e.g. on device failure.
func (e *Engine) Cancel(key string) {
	t, ok := e.tasks[key]
	if !ok {
		return
	}
	t.mu.Lock()
	if t.releaseCancel != nil {
		t.releaseCancel()
	}
	t.st = stateIdle
	t.mu.Unlock()
	e.emit(Event{Type: EventCancel, Key: key, Time: time.Now()})
}

// IsRecording reports whether key's shortcut currently has an active
// session, including the pre-threshold pending window: spec.md §4.2 sets
// recording=true at key-down, before the threshold timer confirms the
// session, so audio isn't lost while a tap is still deciding whether it's
// long enough to count.
func (e *Engine) IsRecording(key string) bool {
	t, ok := e.tasks[key]
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st == statePending || t.st == stateRecording || t.st == stateFinishing
}
