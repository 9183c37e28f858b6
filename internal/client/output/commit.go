// Package output implements OutputCommitter (C5): the lag-1 stable-prefix
// commit algorithm and the typing/paste mode selection, grounded directly on
// original_source/util/client/output/result_processor.py's
// ResultProcessor._commit_partial_increment / _handle_partial_input.
package output

import (
	"context"
	"strings"
	"sync"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/platform"
)

// TextTransform is an optional text-level rewrite applied to a final
// Result's text before its remaining increment reaches typing/paste,
// composing with the lag-1 committer rather than the recognizer. Partial
// results are not transformed. The original_source's traditional
// Chinese conversion toggle (config_client.py's traditional_convert/
// traditional_locale) is the one SPEC_FULL.md names; none of the example
// pack carries a script-conversion table, so Passthrough is the only
// concrete implementation shipped here (see DESIGN.md).
type TextTransform interface {
	Transform(s string) string
}

// Passthrough is the no-op TextTransform, used when traditional_convert is
// disabled (the default) or no conversion table is wired in.
type Passthrough struct{}

func (Passthrough) Transform(s string) string { return s }

// PartialCommitState is the per-task_id bookkeeping spec.md §3 names.
type PartialCommitState struct {
	PrevPartial string
	Committed   string
}

// Committer owns the partial-commit state of each task_id, keyed by task_id,
// plus the clipboard/typing mechanics shared across tasks.
type Committer struct {
	log      logging.Logger
	plat     platform.Platform
	clipboard *ClipboardManager

	paste          bool
	restoreClip    bool
	charIntervalMs int
	trashPunc      string
	transform      TextTransform

	mu     sync.Mutex
	states map[string]*PartialCommitState
}

// Config carries the OutputCommitter-relevant client config values.
type Config struct {
	Paste          bool
	RestoreClip    bool
	CharIntervalMs int
	TrashPunc      string
	// Transform, if non-nil, rewrites the final committed text (e.g. a
	// simplified->traditional Chinese conversion) before it is typed or
	// pasted. Defaults to Passthrough.
	Transform TextTransform
}

// New builds a Committer.
func New(log logging.Logger, plat platform.Platform, cfg Config) *Committer {
	transform := cfg.Transform
	if transform == nil {
		transform = Passthrough{}
	}
	return &Committer{
		log:            log,
		plat:           plat,
		clipboard:      NewClipboardManager(log),
		paste:          cfg.Paste,
		restoreClip:    cfg.RestoreClip,
		charIntervalMs: cfg.CharIntervalMs,
		trashPunc:      cfg.TrashPunc,
		transform:      transform,
		states:         make(map[string]*PartialCommitState),
	}
}

// lcpLen returns the length of the longest common prefix of a and b,
// measured in runes so multi-byte UTF-8 text (Chinese in particular) is
// never split mid-character.
func lcpLen(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := len(ar)
	if len(br) < n {
		n = len(br)
	}
	i := 0
	for i < n && ar[i] == br[i] {
		i++
	}
	return i
}

func runeSlice(s string, from int) string {
	r := []rune(s)
	if from >= len(r) {
		return ""
	}
	return string(r[from:])
}

func runeLen(s string) int {
	return len([]rune(s))
}

// commitPartialIncrement delivers target's increment beyond state.Committed
// to the foreground application, choosing typing vs paste per the
// foreground window, and never deleting already-committed text. streaming
// indicates the key is still held (char-by-char typing feel); otherwise the
// increment is pasted/typed in one shot.
func (c *Committer) commitPartialIncrement(ctx context.Context, state *PartialCommitState, target string, streaming bool) {
	if target == "" {
		return
	}

	if !strings.HasPrefix(target, state.Committed) {
		common := lcpLen(state.Committed, target)
		if common < runeLen(state.Committed) {
			c.log.Debug("partial regression, skipping increment",
				"committed_len", runeLen(state.Committed), "target_len", runeLen(target))
			return
		}
	}

	delta := runeSlice(target, runeLen(state.Committed))
	if delta == "" {
		return
	}

	win, _ := c.plat.ForegroundWindow()
	forcePaste, keyword := platform.ShouldForcePaste(win)

	if forcePaste {
		if streaming {
			// remote-compat windows coalesce: don't paste during the
			// stream, commit once at final instead.
			c.log.Debug("remote window matched, deferring to final", "keyword", keyword)
			return
		}
		c.log.Debug("remote window matched, pasting", "keyword", keyword)
		c.pasteText(ctx, delta, "remote")
		state.Committed += delta
		return
	}

	if streaming {
		c.typeStreaming(ctx, delta)
	} else {
		if c.paste {
			c.pasteText(ctx, delta, "default")
		} else {
			c.plat.TypeText(ctx, delta, 0)
		}
	}
	state.Committed += delta
}

func (c *Committer) typeStreaming(ctx context.Context, delta string) {
	c.plat.TypeText(ctx, delta, c.charIntervalMs)
}

func (c *Committer) pasteText(ctx context.Context, text string, profile string) {
	c.clipboard.PasteWithRestore(ctx, c.plat, text, c.restoreClip, profile)
}

// HandlePartialResult implements _handle_partial_input: lag-1 stable prefix
// commit on non-final results, then the final flush.
func (c *Committer) HandlePartialResult(ctx context.Context, taskID, text string, isFinal, recording bool) {
	c.mu.Lock()
	state, ok := c.states[taskID]
	if !ok {
		state = &PartialCommitState{}
		c.states[taskID] = state
	}
	c.mu.Unlock()

	useStreaming := recording && !isFinal

	if !isFinal {
		if state.PrevPartial == "" {
			state.PrevPartial = text
			return
		}
		stable := text[:byteOffsetForRunes(text, lcpLen(state.PrevPartial, text))]
		c.commitPartialIncrement(ctx, state, stable, useStreaming)
		state.PrevPartial = text
		return
	}

	finalText := c.transform.Transform(trimTrash(text, c.trashPunc))

	win, _ := c.plat.ForegroundWindow()
	if forcePaste, _ := platform.ShouldForcePaste(win); forcePaste {
		c.commitPartialIncrement(ctx, state, finalText, false)
		c.mu.Lock()
		delete(c.states, taskID)
		c.mu.Unlock()
		return
	}

	if state.PrevPartial != "" {
		stable := text[:byteOffsetForRunes(text, lcpLen(state.PrevPartial, text))]
		c.commitPartialIncrement(ctx, state, stable, useStreaming)
	}
	c.commitPartialIncrement(ctx, state, finalText, useStreaming)

	c.mu.Lock()
	delete(c.states, taskID)
	c.mu.Unlock()
}

func byteOffsetForRunes(s string, runeCount int) int {
	r := []rune(s)
	if runeCount >= len(r) {
		return len(s)
	}
	return len(string(r[:runeCount]))
}

// trimTrash strips configured trailing punctuation from the final tail,
// e.g. a trailing "，" left by the recognizer on a cut-off utterance.
func trimTrash(text, chars string) string {
	if chars == "" {
		return text
	}
	return strings.TrimRight(text, chars)
}

// State returns a copy of the current PartialCommitState for a task, for
// tests and diagnostics.
func (c *Committer) State(taskID string) (PartialCommitState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[taskID]
	if !ok {
		return PartialCommitState{}, false
	}
	return *s, true
}
