// clipboard.go implements ClipboardRestoreState (spec.md §3): baseline save,
// guarded restore, and a ring of recently-injected texts, so a restore only
// overwrites a clipboard that still holds the baseline or one of our own
// recent pastes, never a value someone else has since copied. Grounded on
// original_source/util/client/clipboard/clipboard.py's
// save_and_restore_clipboard/paste_text.
package output

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/platform"
)

const injectedRingSize = 8

// restoreGuardWindow bounds how long after a paste a restore is still
// considered part of the same coalescing window.
const restoreGuardWindow = 2 * time.Second

const (
	restorePreDelay  = 30 * time.Millisecond
	restoreDelay     = 100 * time.Millisecond
	restoreRetries   = 2
	restoreRetryWait = 80 * time.Millisecond
)

// ClipboardManager guards clipboard save/restore across concurrent pastes.
type ClipboardManager struct {
	log logging.Logger

	mu           sync.Mutex
	baseline     string
	hasBaseline  bool
	lastPasteAt  time.Time
	injectedRing []string
}

func NewClipboardManager(log logging.Logger) *ClipboardManager {
	return &ClipboardManager{log: log}
}

func (m *ClipboardManager) remember(text string) {
	m.injectedRing = append(m.injectedRing, text)
	if len(m.injectedRing) > injectedRingSize {
		m.injectedRing = m.injectedRing[len(m.injectedRing)-injectedRingSize:]
	}
}

func (m *ClipboardManager) isGuardedValue(current string) bool {
	if current == m.baseline {
		return true
	}
	for _, t := range m.injectedRing {
		if t == current {
			return true
		}
	}
	return false
}

// PasteWithRestore copies text to the clipboard, sends the platform paste
// hotkey, then restores the pre-paste baseline if restore is enabled and the
// clipboard still holds a value this manager recognizes (baseline or one of
// its own recent injections) -- never an externally-changed value.
func (m *ClipboardManager) PasteWithRestore(ctx context.Context, plat platform.Platform, text string, restore bool, profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var original string
	hadOriginal := false
	if restore {
		if v, err := clipboard.ReadAll(); err == nil {
			original = v
			hadOriginal = true
			if !m.hasBaseline || time.Since(m.lastPasteAt) > restoreGuardWindow {
				m.baseline = original
				m.hasBaseline = true
			}
		}
	}

	if err := clipboard.WriteAll(text); err != nil {
		m.log.Warn("clipboard write failed", "error", err)
		return
	}
	m.remember(text)
	m.lastPasteAt = time.Now()

	sleepCtx(ctx, pasteDelayForProfile(profile, restorePreDelay))

	if err := plat.SendPasteHotkey(ctx); err != nil {
		m.log.Warn("paste hotkey failed", "error", err)
	}

	if !restore || !hadOriginal {
		return
	}

	sleepCtx(ctx, pasteDelayForProfile(profile, restoreDelay))
	m.restoreWithRetry(ctx, m.baseline)
}

// pasteDelayForProfile lengthens timing for the "remote" profile, where
// clipboard propagation across the remote-desktop link is slower.
func pasteDelayForProfile(profile string, base time.Duration) time.Duration {
	if profile == "remote" {
		return base * 3
	}
	return base
}

func (m *ClipboardManager) restoreWithRetry(ctx context.Context, baseline string) {
	for attempt := 0; attempt <= restoreRetries; attempt++ {
		current, err := clipboard.ReadAll()
		if err == nil && !m.isGuardedValue(current) {
			// externally changed since our paste; don't clobber it
			return
		}
		if err := clipboard.WriteAll(baseline); err != nil {
			m.log.Warn("clipboard restore failed", "attempt", attempt, "error", err)
		} else {
			return
		}
		sleepCtx(ctx, restoreRetryWait)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
