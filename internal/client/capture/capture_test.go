package capture

import "testing"

func TestSelectDevicePrefersPreferredSignature(t *testing.T) {
	devices := []deviceInfo{
		{name: "Built-in Mic", hostapi: "coreaudio", isDefault: true, channels: 2},
		{name: "USB Headset", hostapi: "coreaudio", isDefault: false, channels: 1},
	}
	chosen, ok := selectDevice(devices, "coreaudio|USB Headset")
	if !ok || chosen.name != "USB Headset" {
		t.Fatalf("expected preferred USB Headset, got %+v ok=%v", chosen, ok)
	}
}

func TestSelectDeviceFallsBackToDefault(t *testing.T) {
	devices := []deviceInfo{
		{name: "USB Headset", hostapi: "coreaudio", isDefault: false, channels: 1},
		{name: "Built-in Mic", hostapi: "coreaudio", isDefault: true, channels: 2},
	}
	chosen, ok := selectDevice(devices, "coreaudio|Disconnected Device")
	if !ok || chosen.name != "Built-in Mic" {
		t.Fatalf("expected default Built-in Mic, got %+v ok=%v", chosen, ok)
	}
}

func TestSelectDeviceSkipsSoundMapperDefault(t *testing.T) {
	devices := []deviceInfo{
		{name: "Microsoft Sound Mapper - Input", hostapi: "mme", isDefault: true, channels: 2},
		{name: "Realtek Mic", hostapi: "wasapi", isDefault: false, channels: 1},
	}
	chosen, ok := selectDevice(devices, "")
	if !ok || chosen.name != "Realtek Mic" {
		t.Fatalf("expected to skip Sound Mapper default, got %+v ok=%v", chosen, ok)
	}
}

func TestSelectDeviceFallsBackToFirstWithInputChannel(t *testing.T) {
	devices := []deviceInfo{
		{name: "Playback Only", hostapi: "alsa", isDefault: false, channels: 0},
		{name: "Line In", hostapi: "alsa", isDefault: false, channels: 1},
	}
	chosen, ok := selectDevice(devices, "")
	if !ok || chosen.name != "Line In" {
		t.Fatalf("expected first device with input channel, got %+v ok=%v", chosen, ok)
	}
}

func TestSelectDeviceNoneAvailable(t *testing.T) {
	if _, ok := selectDevice(nil, ""); ok {
		t.Fatal("expected no device to be selectable from an empty list")
	}
}

func TestDeviceSignatureExcludesIndex(t *testing.T) {
	a := deviceInfo{name: "Mic", hostapi: "wasapi"}
	b := deviceInfo{name: "Mic", hostapi: "wasapi"}
	if a.signature() != b.signature() {
		t.Fatalf("expected identical signatures, got %q vs %q", a.signature(), b.signature())
	}
}

func TestIsSoundMapper(t *testing.T) {
	cases := map[string]bool{
		"Microsoft Sound Mapper - Input": true,
		"sound mapper":                   true,
		"Realtek Mic":                    false,
	}
	for name, want := range cases {
		if got := isSoundMapper(name); got != want {
			t.Errorf("isSoundMapper(%q) = %v, want %v", name, got, want)
		}
	}
}
