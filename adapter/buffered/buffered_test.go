package buffered

import (
	"testing"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

func TestRegisterAndGetSet(t *testing.T) {
	b := NewBuffer(2)
	k0 := signal.New("gen1", "V")
	k1 := signal.New("gen1", "Q")

	if err := b.Register(k0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Register(k1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Set(k0, 3.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := b.Get(k0)
	if err != nil || v != 3.5 {
		t.Fatalf("expected 3.5, got %v, %v", v, err)
	}
}

func TestRegisterOutOfRangeIsBadSpec(t *testing.T) {
	b := NewBuffer(1)
	k := signal.New("gen1", "V")
	if err := b.Register(k, 1); errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
	if err := b.Register(k, -1); errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
}

func TestRegisterDuplicateIndexIsBadSpec(t *testing.T) {
	b := NewBuffer(2)
	k0 := signal.New("gen1", "V")
	k1 := signal.New("gen1", "Q")
	if err := b.Register(k0, 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Register(k1, 0); errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec for duplicate index, got %v", err)
	}
}

func TestGetSetUnregisteredIsUnknownSignal(t *testing.T) {
	b := NewBuffer(1)
	k := signal.New("gen1", "V")
	if _, err := b.Get(k); errcode.Of(err) != errcode.UnknownSignal {
		t.Fatalf("expected UnknownSignal, got %v", err)
	}
	if err := b.Set(k, 1); errcode.Of(err) != errcode.UnknownSignal {
		t.Fatalf("expected UnknownSignal, got %v", err)
	}
}

func TestCompleteDetectsUnfilledIndex(t *testing.T) {
	b := NewBuffer(2)
	if err := b.Complete(); errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec for empty buffer, got %v", err)
	}
	_ = b.Register(signal.New("gen1", "V"), 0)
	if err := b.Complete(); errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec with index 1 unfilled, got %v", err)
	}
	_ = b.Register(signal.New("gen1", "Q"), 1)
	if err := b.Complete(); err != nil {
		t.Fatalf("expected no error once fully registered, got %v", err)
	}
}

func TestSnapshotAndLoadRoundTrip(t *testing.T) {
	b := NewBuffer(3)
	_ = b.Register(signal.New("gen1", "a"), 0)
	_ = b.Register(signal.New("gen1", "b"), 1)
	_ = b.Register(signal.New("gen1", "c"), 2)
	_ = b.Set(signal.New("gen1", "a"), 1)
	_ = b.Set(signal.New("gen1", "b"), 2)
	_ = b.Set(signal.New("gen1", "c"), 3)

	snap := b.Snapshot()
	if len(snap) != 3 || snap[0] != 1 || snap[1] != 2 || snap[2] != 3 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}

	b.Load([]float32{9, 8, 7})
	v, _ := b.Get(signal.New("gen1", "a"))
	if v != 9 {
		t.Fatalf("expected loaded value 9, got %v", v)
	}
}

func TestKeyAt(t *testing.T) {
	b := NewBuffer(1)
	k := signal.New("gen1", "V")
	_ = b.Register(k, 0)
	got, ok := b.KeyAt(0)
	if !ok || got != k {
		t.Fatalf("expected %v, got %v, %v", k, got, ok)
	}
	if _, ok := b.KeyAt(5); ok {
		t.Fatal("expected KeyAt to report false for an unregistered index")
	}
}

func TestPairRxTx(t *testing.T) {
	p := NewPair(2, 1)
	if p.Rx.Len() != 2 || p.Tx.Len() != 1 {
		t.Fatalf("unexpected lengths: rx=%d tx=%d", p.Rx.Len(), p.Tx.Len())
	}
}

func TestSyncToTablePublishesBufferValues(t *testing.T) {
	b := NewBuffer(1)
	k := signal.New("gen1", "V")
	_ = b.Register(k, 0)
	_ = b.Set(k, 1.0)

	tables := table.NewPair()
	tables.State.Insert(k)

	if err := b.SyncToTable(tables.State); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := tables.State.Get(k)
	if v != 1.0 {
		t.Fatalf("expected table to observe 1.0, got %v", v)
	}
}

func TestSyncFromTablePullsTableValues(t *testing.T) {
	b := NewBuffer(1)
	k := signal.New("gen1", "Q")
	_ = b.Register(k, 0)

	tables := table.NewPair()
	tables.Command.Insert(k)
	_ = tables.Command.Set(k, 0.5)

	if err := b.SyncFromTable(tables.Command); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := b.Get(k)
	if v != 0.5 {
		t.Fatalf("expected buffer to observe 0.5, got %v", v)
	}
}
