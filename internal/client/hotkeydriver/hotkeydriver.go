// Package hotkeydriver is the OS-level collaborator that turns global key
// press/release events into shortcut.Engine.KeyDown/KeyUp calls. It is the
// one piece of the client that is unavoidably platform-specific; everything
// upstream of it (shortcut.Engine) is pure state-machine logic that never
// touches an OS API directly.
package hotkeydriver

import (
	"context"
	"strings"

	"golang.design/x/hotkey"

	"github.com/lokutor-ai/capswriter-go/internal/config"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
)

// KeyEvents is the narrow surface hotkeydriver drives; shortcut.Engine
// satisfies it directly.
type KeyEvents interface {
	KeyDown(key string)
	KeyUp(key string)
}

// namedKeys maps the config's lowercase key names to golang.design/x/hotkey
// key codes, covering the keys spec.md's default shortcut set actually uses.
var namedKeys = map[string]hotkey.Key{
	"caps_lock": hotkey.KeyCapsLock,
	"a":         hotkey.KeyA,
	"b":         hotkey.KeyB,
	"c":         hotkey.KeyC,
	"space":     hotkey.KeySpace,
	"f1":        hotkey.KeyF1,
	"f2":        hotkey.KeyF2,
}

func resolveKey(name string) (hotkey.Key, bool) {
	k, ok := namedKeys[strings.ToLower(name)]
	return k, ok
}

// Driver registers one hotkey.Hotkey per configured shortcut and forwards its
// Keydown/Keyup channels into a KeyEvents sink.
type Driver struct {
	log   logging.Logger
	sink  KeyEvents
	hooks []*hotkey.Hotkey
}

// New registers a global hotkey for every enabled, resolvable shortcut spec.
// Specs naming a key this platform library doesn't expose a constant for are
// skipped with a warning rather than failing the whole driver.
func New(log logging.Logger, sink KeyEvents, specs []config.ShortcutSpec) *Driver {
	d := &Driver{log: log, sink: sink}
	for _, spec := range specs {
		if !spec.Enabled || spec.Type != "keyboard" {
			continue
		}
		key, ok := resolveKey(spec.Key)
		if !ok {
			log.Warn("hotkey: no platform key mapping, skipping", "key", spec.Key)
			continue
		}
		hk := hotkey.New(nil, key)
		if err := hk.Register(); err != nil {
			log.Warn("hotkey: failed to register", "key", spec.Key, "error", err)
			continue
		}
		d.hooks = append(d.hooks, hk)
		go d.watch(hk, spec.Key)
	}
	return d
}

func (d *Driver) watch(hk *hotkey.Hotkey, name string) {
	for {
		select {
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			d.sink.KeyDown(name)
		case _, ok := <-hk.Keyup():
			if !ok {
				return
			}
			d.sink.KeyUp(name)
		}
	}
}

// Close unregisters every hotkey this driver holds.
func (d *Driver) Close() {
	for _, hk := range d.hooks {
		hk.Unregister()
	}
}

// RunUntil blocks until ctx is cancelled, then closes the driver. Kept as a
// convenience for callers who'd rather register a lifecycle hook that both
// stops watching and unregisters in one call.
func RunUntil(ctx context.Context, d *Driver) {
	<-ctx.Done()
	d.Close()
}
