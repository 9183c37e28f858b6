// Package capture implements AudioCapture (C1): it opens an input device via
// malgo, delivers 50ms float32 blocks to a consumer channel, tracks a
// best-effort VAD envelope, and re-opens the stream when the active device
// disappears. The driver-callback shape (RMS over the float32 sample buffer,
// fed into a downstream consumer) is grounded on cmd/agent's onSamples
// callback.
package capture

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/capswriter-go/internal/logging"
	"github.com/lokutor-ai/capswriter-go/internal/protocol"
)

const (
	// BlockMS is the fixed callback block size spec.md §3 names.
	BlockMS = 50
	// SampleRate is the capture-side rate; SessionFramer resamples to 16kHz.
	SampleRate = 48000
	// BlockSamples is BLOCK_MS * SR / 1000.
	BlockSamples = BlockMS * SampleRate / 1000
)

// Capture owns the malgo device and republishes blocks on a channel.
type Capture struct {
	log          logging.Logger
	pollInterval time.Duration

	mctx *malgo.AllocatedContext

	mu           sync.Mutex
	device       *malgo.Device
	signature    string
	running      bool
	lastActivity time.Time

	vadThreshold float64

	blocks chan protocol.AudioBlock

	stopPoll context.CancelFunc
	wg       sync.WaitGroup
}

// New initializes the malgo context. Failing to find an audio backend at all
// is treated as fatal by the caller, per spec.md §4.1's "missing-device on
// first open is fatal" rule.
func New(log logging.Logger, pollInterval time.Duration, vadThreshold float64) (*Capture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Capture{
		log:          log,
		pollInterval: pollInterval,
		mctx:         mctx,
		vadThreshold: vadThreshold,
		blocks:       make(chan protocol.AudioBlock, 32),
	}, nil
}

// Blocks returns the channel blocks are published on. Callers must keep
// draining it; the driver callback never blocks on send.
func (c *Capture) Blocks() <-chan protocol.AudioBlock {
	return c.blocks
}

// LastVoiceActivity returns the last time RMS crossed vadThreshold, used by
// the release-tail loop in the shortcut engine.
func (c *Capture) LastVoiceActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

type deviceInfo struct {
	id       malgo.DeviceID
	name     string
	hostapi  string
	isDefault bool
	channels  uint32
}

func (d deviceInfo) signature() string {
	return d.hostapi + "|" + d.name
}

func (c *Capture) enumerateCaptureDevices() ([]deviceInfo, error) {
	infos, err := c.mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	out := make([]deviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, deviceInfo{
			id:        info.ID,
			name:      info.Name(),
			hostapi:   c.mctx.Context.Backend.String(),
			isDefault: info.IsDefault != 0,
			channels:  info.MaxChannels,
		})
	}
	return out, nil
}

// selectDevice implements spec.md §4.1's priority order: previously
// preferred signature, then OS default input, then first with
// max_input_channels>=1.
func selectDevice(devices []deviceInfo, preferredSignature string) (deviceInfo, bool) {
	if preferredSignature != "" {
		for _, d := range devices {
			if d.signature() == preferredSignature {
				return d, true
			}
		}
	}
	for _, d := range devices {
		if d.isDefault {
			if isSoundMapper(d.name) {
				continue
			}
			return d, true
		}
	}
	for _, d := range devices {
		if d.channels >= 1 {
			return d, true
		}
	}
	return deviceInfo{}, false
}

func isSoundMapper(name string) bool {
	return strings.Contains(strings.ToLower(name), "sound mapper")
}

// Open selects a device and starts streaming. preferredSignature may be
// empty on first call.
func (c *Capture) Open(preferredSignature string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(preferredSignature)
}

func (c *Capture) openLocked(preferredSignature string) error {
	devices, err := c.enumerateCaptureDevices()
	if err != nil {
		return err
	}
	chosen, ok := selectDevice(devices, preferredSignature)
	if !ok {
		return protocol.ErrDeviceMissing
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	if isSoundMapper(chosen.name) {
		// open with a null device index so the host resolves the physical
		// default instead of the abstract Sound Mapper device.
	} else {
		deviceConfig.Capture.DeviceID = chosen.id.Pointer()
	}
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(c.mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: c.onSamples,
	})
	if err != nil {
		return fmt.Errorf("init device %q: %w", chosen.name, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device %q: %w", chosen.name, err)
	}

	c.device = device
	c.signature = chosen.signature()
	c.running = true
	c.log.Info("audio device opened", "signature", c.signature)
	return nil
}

// onSamples is invoked from the audio driver thread and must be wait-free:
// it only computes RMS, updates the last-voice-activity timestamp, and
// enqueues a copy of the block.
func (c *Capture) onSamples(_ []byte, pInput []byte, frameCount uint32) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	n := len(pInput) / 4
	samples := make([]float32, n)
	var sum float64
	for i := 0; i < n; i++ {
		bits := uint32(pInput[i*4]) | uint32(pInput[i*4+1])<<8 | uint32(pInput[i*4+2])<<16 | uint32(pInput[i*4+3])<<24
		f := math.Float32frombits(bits)
		samples[i] = f
		sum += float64(f) * float64(f)
	}
	rms := math.Sqrt(sum / float64(n))

	c.mu.Lock()
	if rms >= c.vadThreshold {
		c.lastActivity = time.Now()
	}
	c.mu.Unlock()

	block := protocol.AudioBlock{
		TimestampNS: time.Now().UnixNano(),
		Samples:     samples,
		Channels:    1,
	}
	select {
	case c.blocks <- block:
	default:
		// consumer fell behind; drop rather than block the driver thread
	}
}

// StartDeviceMonitor launches the cooperative poller that watches for
// device-list changes every pollInterval, per spec.md §4.1.
func (c *Capture) StartDeviceMonitor(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.stopPoll = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.pollOnce()
			}
		}
	}()
}

func (c *Capture) pollOnce() {
	c.mu.Lock()
	current := c.signature
	c.mu.Unlock()

	devices, err := c.enumerateCaptureDevices()
	if err != nil {
		c.log.Warn("device enumeration failed", "error", err)
		return
	}

	stillPresent := false
	for _, d := range devices {
		if d.signature() == current {
			stillPresent = true
			break
		}
	}
	if stillPresent {
		return
	}

	chosen, ok := selectDevice(devices, current)
	if ok && chosen.signature() == current {
		return
	}

	c.log.Info("active device disappeared, reopening", "previous", current)
	c.reopen()
}

func (c *Capture) reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// mark not-running before closing so the stopped-callback does not
	// misinterpret the close as a fault and self-restart.
	c.running = false
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	if err := c.openLocked(""); err != nil {
		c.log.Error("device reopen failed", "error", err)
	}
}

// Close stops the poller and the device.
func (c *Capture) Close() {
	if c.stopPoll != nil {
		c.stopPoll()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.running = false
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.mu.Unlock()

	c.mctx.Uninit()
	close(c.blocks)
}
