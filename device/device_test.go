package device

import (
	"testing"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

func newTestDevice(t *testing.T, id string, states, commands []string) (*Device, *table.Pair) {
	t.Helper()
	tables := table.NewPair()
	for _, s := range states {
		tables.State.Insert(signal.New(id, s))
	}
	for _, c := range commands {
		tables.Command.Insert(signal.New(id, c))
	}
	desc := NewDescriptor([]string{"Sst"}, states, commands)
	return New(id, desc, tables), tables
}

func TestGetStateUnclaimedFails(t *testing.T) {
	d, _ := newTestDevice(t, "sst1", []string{"gateway"}, nil)
	if _, err := d.GetState("voltage"); errcode.Of(err) != errcode.UnknownSignal {
		t.Fatalf("expected UnknownSignal, got %v", err)
	}
}

func TestSetCommandUnclaimedFails(t *testing.T) {
	d, _ := newTestDevice(t, "sst1", nil, []string{"gateway"})
	if err := d.SetCommand("other", 1.0); errcode.Of(err) != errcode.UnknownSignal {
		t.Fatalf("expected UnknownSignal, got %v", err)
	}
}

func TestGetCommandReturnsSentinelWhenAbsent(t *testing.T) {
	// the device claims the command, but its key is not in the table
	tables := table.NewPair()
	d := New("sst1", NewDescriptor([]string{"Sst"}, nil, []string{"gateway"}), tables)
	v, err := d.GetCommand("gateway", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != signal.Unknown {
		t.Fatalf("expected sentinel, got %v", v)
	}
	// once inserted and set, no longer the sentinel
	tables.Command.Insert(signal.New("sst1", "gateway"))
	if err := tables.Command.Set(signal.New("sst1", "gateway"), 3.14); err != nil {
		t.Fatal(err)
	}
	v, err = d.GetCommand("gateway", false)
	if err != nil || v != 3.14 {
		t.Fatalf("expected 3.14, got %v, %v", v, err)
	}
}

func TestGetCommandOverrideBypassesClaim(t *testing.T) {
	d, tables := newTestDevice(t, "sst1", nil, nil)
	tables.Command.Insert(signal.New("sst1", "extra"))
	_ = tables.Command.Set(signal.New("sst1", "extra"), 5)

	if _, err := d.GetCommand("extra", false); errcode.Of(err) != errcode.UnknownSignal {
		t.Fatal("expected unclaimed command to fail without override")
	}
	v, err := d.GetCommand("extra", true)
	if err != nil || v != 5 {
		t.Fatalf("expected override read to succeed with value 5, got %v, %v", v, err)
	}
}

func TestClearCommandsWritesSentinel(t *testing.T) {
	d, tables := newTestDevice(t, "sst1", nil, []string{"a", "b"})
	_ = tables.Command.Set(signal.New("sst1", "a"), 1)
	_ = tables.Command.Set(signal.New("sst1", "b"), 2)

	if err := d.ClearCommands(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	va, _ := tables.Command.Get(signal.New("sst1", "a"))
	vb, _ := tables.Command.Get(signal.New("sst1", "b"))
	if va != signal.Unknown || vb != signal.Unknown {
		t.Fatalf("expected both commands cleared to sentinel, got %v, %v", va, vb)
	}
}

func TestHasTypeStateCommand(t *testing.T) {
	d, _ := newTestDevice(t, "sst1", []string{"gateway"}, []string{"gateway"})
	if !d.HasType("Sst") || d.HasType("Drer") {
		t.Fatal("unexpected type membership")
	}
	if !d.HasState("gateway") || d.HasState("voltage") {
		t.Fatal("unexpected state membership")
	}
	if !d.HasCommand("gateway") || d.HasCommand("voltage") {
		t.Fatal("unexpected command membership")
	}
}

func TestDeviceStringIncludesIDAndTypes(t *testing.T) {
	d, _ := newTestDevice(t, "sst1", []string{"gateway"}, nil)
	s := d.String()
	if s != "sst1 (Sst)" {
		t.Fatalf("expected %q, got %q", "sst1 (Sst)", s)
	}
}
