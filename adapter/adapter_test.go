package adapter

import (
	"sort"
	"testing"

	"gridadapter/device"
	"gridadapter/devicemgr"
	"gridadapter/table"
)

func newTestDevice(id string) *device.Device {
	return device.New(id, device.NewDescriptor(nil, nil, nil), table.NewPair())
}

func TestRegisterDeviceAndDevices(t *testing.T) {
	b := NewBase()
	b.RegisterDevice(newTestDevice("a"))
	b.RegisterDevice(newTestDevice("b"))

	got := b.Devices()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected devices: %v", got)
	}
}

func TestStartedFlag(t *testing.T) {
	b := NewBase()
	if b.Started() {
		t.Fatal("expected fresh Base to report not started")
	}
	b.MarkStarted()
	if !b.Started() {
		t.Fatal("expected Base to report started after MarkStarted")
	}
}

func TestRevealDevicesRevealsAllOwnedIDs(t *testing.T) {
	b := NewBase()
	mgr := devicemgr.New(nil)
	for _, id := range []string{"a", "b", "c"} {
		d := newTestDevice(id)
		_ = mgr.Add(d)
		b.RegisterDevice(d)
	}

	if err := b.RevealDevices(mgr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if !mgr.Exists(id) {
			t.Fatalf("expected %s to be visible after RevealDevices", id)
		}
	}
}

func TestRevealDevicesPropagatesError(t *testing.T) {
	b := NewBase()
	mgr := devicemgr.New(nil)
	b.RegisterDevice(newTestDevice("ghost"))

	if err := b.RevealDevices(mgr); err == nil {
		t.Fatal("expected error revealing a device never added to the manager")
	}
}
