// Package buffered implements the buffered adapter variant: a pair of
// fixed-size, index-addressed vectors backing a device-table pair,
// held by the adapters with fixed wire positions (rtds, pnp) to stage
// values between the wire and the shared tables. The line-text
// adapter (pscad) addresses signals by name and holds no buffer.
package buffered

import (
	"fmt"
	"sync"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

// Buffer is one direction (receive or transmit): a fixed-length vector
// plus the bijective map from device signal to position within it.
// Indices are supplied 1-based in the specification (§4.5) and stored
// 0-based internally.
type Buffer struct {
	mu    sync.RWMutex
	index map[signal.Key]int
	keys  []signal.Key // keys[i] is the signal bound to position i, for O(1) KeyAt
	vals  []float32
}

// NewBuffer builds an empty buffer of the given length. Registering
// indices up to len-1 fills it; a buffer with unregistered positions
// is a construction-time bug the caller's spec validation must catch
// before Start.
func NewBuffer(length int) *Buffer {
	return &Buffer{
		index: make(map[signal.Key]int),
		keys:  make([]signal.Key, length),
		vals:  make([]float32, length),
	}
}

// Register binds key to the 0-based position index. It fails with
// errcode.BadSpec if index is out of range or already bound to a
// different key, or if key is already bound to a different index —
// preserving bijectivity (§4.5 invariants i, iii, iv).
func (b *Buffer) Register(key signal.Key, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.vals) {
		return errcode.New(errcode.BadSpec, "buffered.Register", fmt.Sprintf("index %d out of range [0,%d)", index, len(b.vals)))
	}
	if existing := b.keys[index]; existing.Valid() && existing != key {
		return errcode.New(errcode.BadSpec, "buffered.Register", fmt.Sprintf("index %d already bound to %s", index, existing))
	}
	if existing, ok := b.index[key]; ok && existing != index {
		return errcode.New(errcode.BadSpec, "buffered.Register", fmt.Sprintf("%s already bound to index %d", key, existing))
	}
	b.index[key] = index
	b.keys[index] = key
	return nil
}

// Len reports the vector's fixed length.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vals)
}

// Complete reports errcode.BadSpec if any position in [0,len) has not
// been bound by Register — invariant (v), checked once after an
// adapter spec has registered every declared signal.
func (b *Buffer) Complete() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make([]bool, len(b.vals))
	for _, i := range b.index {
		seen[i] = true
	}
	for i, ok := range seen {
		if !ok {
			return errcode.New(errcode.BadSpec, "buffered.Complete", fmt.Sprintf("index %d never registered", i))
		}
	}
	return nil
}

// HasKey reports whether key has been registered at some index.
func (b *Buffer) HasKey(key signal.Key) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.index[key]
	return ok
}

// AllKeysIn reports whether every key this buffer has registered is
// present in seen — used by the PNP adapter to check that an incoming
// DeviceStates packet covers every registered state signal.
func (b *Buffer) AllKeysIn(seen map[signal.Key]bool) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for k := range b.index {
		if !seen[k] {
			return false
		}
	}
	return true
}

// Get reads key's value under a shared lock, failing with
// errcode.UnknownSignal if key is unregistered.
func (b *Buffer) Get(key signal.Key) (float32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[key]
	if !ok {
		return 0, errcode.New(errcode.UnknownSignal, "buffered.Get", key.String())
	}
	return b.vals[i], nil
}

// Set writes key's value under an exclusive lock, failing with
// errcode.UnknownSignal if key is unregistered.
func (b *Buffer) Set(key signal.Key, v float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[key]
	if !ok {
		return errcode.New(errcode.UnknownSignal, "buffered.Set", key.String())
	}
	b.vals[i] = v
	return nil
}

// Snapshot copies the vector out in index order, for a cycle's bulk
// write (the RTDS adapter sends the whole vector each transaction
// rather than per-key).
func (b *Buffer) Snapshot() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float32, len(b.vals))
	copy(out, b.vals)
	return out
}

// Load overwrites the whole vector in index order, for a cycle's bulk
// read. It panics if len(vals) does not match the buffer's fixed
// length — a transport-framing bug, not a data error.
func (b *Buffer) Load(vals []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(vals) != len(b.vals) {
		panic(fmt.Sprintf("buffered.Load: got %d values, want %d", len(vals), len(b.vals)))
	}
	copy(b.vals, vals)
}

// KeyAt returns the device signal bound to position index, if any —
// used when framing a bulk write that must name each value (the PNP
// adapter's DeviceCommands reply).
func (b *Buffer) KeyAt(index int) (signal.Key, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if index < 0 || index >= len(b.keys) {
		return signal.Key{}, false
	}
	k := b.keys[index]
	return k, k.Valid()
}

// SyncToTable copies this buffer's current values into t, keyed by
// each position's registered signal — the step that makes a freshly
// received wire vector visible to the rest of the DGI through the
// shared device-table pair.
func (b *Buffer) SyncToTable(t *table.Table) error {
	snap := b.Snapshot()
	keys := make([]signal.Key, len(snap))
	b.mu.RLock()
	copy(keys, b.keys)
	b.mu.RUnlock()

	for i, k := range keys {
		if err := t.Set(k, snap[i]); err != nil {
			return err
		}
	}
	return nil
}

// SyncFromTable is the reverse of SyncToTable: it reads t at every
// registered key and loads the result into this buffer, for building
// the next wire vector to send.
func (b *Buffer) SyncFromTable(t *table.Table) error {
	b.mu.RLock()
	keys := make([]signal.Key, len(b.keys))
	copy(keys, b.keys)
	b.mu.RUnlock()

	vals := make([]float32, len(keys))
	for i, k := range keys {
		v, err := t.Get(k)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	b.Load(vals)
	return nil
}

// Pair holds the receive (state) and transmit (command) buffers a
// buffered adapter reads from and writes through.
type Pair struct {
	Rx *Buffer // state, adapter-written
	Tx *Buffer // command, DGI-written
}

// NewPair builds a Pair with the given receive and transmit lengths.
func NewPair(rxLen, txLen int) *Pair {
	return &Pair{Rx: NewBuffer(rxLen), Tx: NewBuffer(txLen)}
}
