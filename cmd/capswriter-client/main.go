package main

import (
	"context"
	"flag"
	"sync"

	"github.com/joho/godotenv"

	"github.com/lokutor-ai/capswriter-go/internal/client/capture"
	"github.com/lokutor-ai/capswriter-go/internal/client/framer"
	"github.com/lokutor-ai/capswriter-go/internal/client/hotkeydriver"
	"github.com/lokutor-ai/capswriter-go/internal/client/output"
	"github.com/lokutor-ai/capswriter-go/internal/client/shortcut"
	"github.com/lokutor-ai/capswriter-go/internal/client/wsclient"
	"github.com/lokutor-ai/capswriter-go/internal/config"
	"github.com/lokutor-ai/capswriter-go/internal/lifecycle"
	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/platform"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

// activeUtterance bundles the bookkeeping a recording session needs: the
// framer producing Frames from capture blocks, and the task_id its Frames
// and Results carry.
type activeUtterance struct {
	session *framer.Session
	taskID  string
}

func main() {
	configPath := flag.String("config", "", "path to a client config file (yaml/json/toml, per viper)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		// No .env file present is the common case; not fatal.
	}

	log := logging.NewConsole("client", *debug)

	cfg, _, err := config.LoadClientConfig(*configPath)
	if err != nil {
		log.Error("failed to load client config", "error", err)
		return
	}

	lc := lifecycle.New(log, true)
	ctx, cancel := context.WithCancel(context.Background())
	lc.RegisterOnShutdown("root-context", cancel)

	audioCap, err := capture.New(log, cfg.DeviceReopenInterval(), cfg.ReleaseTail.VADThreshold)
	if err != nil {
		log.Error("failed to initialize audio capture", "error", err)
		return
	}
	if err := audioCap.Open(""); err != nil {
		log.Error("failed to open audio device", "error", err)
		return
	}
	audioCap.StartDeviceMonitor(ctx)
	lc.RegisterOnShutdown("capture", audioCap.Close)

	wsc := wsclient.New(log, cfg.ServerURI, cfg.Secret)
	go wsc.Run(ctx)

	var plat platform.Platform = platform.NoOp{}
	committer := output.New(log, plat, output.Config{
		Paste:          cfg.Paste,
		RestoreClip:    cfg.RestoreClip,
		CharIntervalMs: cfg.PartialInputCharIntervalMs,
		TrashPunc:      cfg.TrashPunc,
	})

	var mu sync.Mutex
	var current *activeUtterance

	restoreFn := func(key string) {
		// Re-synthesizing the suppressed key press/toggle is an OS-specific
		// concern not implemented by the NoOp platform; left as a seam for a
		// concrete Platform implementation.
		_ = key
	}

	engine := shortcut.New(log, audioCap, cfg.ReleaseTail, cfg.Shortcuts, restoreFn)
	hkDriver := hotkeydriver.New(log, engine, cfg.Shortcuts)
	lc.RegisterOnShutdown("hotkey-driver", hkDriver.Close)

	// Drain capture blocks, feeding the currently active utterance (if any).
	go func() {
		for block := range audioCap.Blocks() {
			mu.Lock()
			u := current
			mu.Unlock()
			if u == nil {
				continue
			}
			for _, frame := range u.session.AddBlock(block) {
				if err := wsc.SendFrame(ctx, frame); err != nil {
					log.Warn("failed to send frame", "task_id", u.taskID, "error", err)
				}
			}
		}
	}()

	// Drive begin/finish/cancel events into utterance lifecycle.
	go func() {
		for evt := range engine.Events() {
			switch evt.Type {
			case shortcut.EventPending:
				// Start buffering immediately on key-down, before the
				// threshold timer confirms the session (spec.md §4.2: "set
				// recording=true immediately"), so the pre-threshold window
				// isn't dropped once EventBegin arrives.
				taskID, err := protocol.NewTaskID()
				if err != nil {
					log.Error("failed to mint task id", "error", err)
					continue
				}
				partial := cfg.EffectivePartialInput(true)
				duration, overlap := cfg.SegDuration(partial)
				sess := framer.New(taskID, duration, overlap, protocol.SourceMic)
				mu.Lock()
				current = &activeUtterance{session: sess, taskID: taskID}
				mu.Unlock()
				wsc.MarkActive(taskID)

			case shortcut.EventBegin:
				mu.Lock()
				u := current
				mu.Unlock()
				if u != nil {
					log.Info("utterance begin", "task_id", u.taskID)
				}

			case shortcut.EventFinish:
				mu.Lock()
				u := current
				current = nil
				mu.Unlock()
				if u == nil {
					continue
				}
				final := u.session.Finish()
				if err := wsc.SendFrame(ctx, final); err != nil {
					log.Warn("failed to send final frame", "task_id", u.taskID, "error", err)
				}
				log.Info("utterance finish", "task_id", u.taskID)

			case shortcut.EventCancel:
				mu.Lock()
				u := current
				current = nil
				mu.Unlock()
				if u != nil {
					u.session.Cancel()
					wsc.MarkInactive(u.taskID)
				}
			}
		}
	}()

	// Route results to the output committer.
	go func() {
		for result := range wsc.Results() {
			mu.Lock()
			recording := current != nil && current.taskID == result.TaskID
			mu.Unlock()
			committer.HandlePartialResult(ctx, result.TaskID, result.Text, result.IsFinal, recording)
			if result.IsFinal {
				wsc.MarkInactive(result.TaskID)
			}
		}
	}()

	log.Info("capswriter client started", "server_uri", cfg.ServerURI)
	lc.WaitForShutdown()
}
