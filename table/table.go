// Package table implements the device-table pair: the two process-wide
// maps ("state", "command") that adapters and the rest of the DGI
// exchange sensed values and actuation commands through.
package table

import (
	"sync"

	"gridadapter/errcode"
	"gridadapter/signal"
)

// Table is one of the two directions (state or command): a map from
// device signal to value, guarded by its own readers/writer lock.
// Keys are inserted at adapter construction; Table has no delete
// operation, so a key stays after its owning adapter is removed. Set
// never grows the map implicitly.
type Table struct {
	mu   sync.RWMutex
	vals map[signal.Key]float32
}

func newTable() *Table {
	return &Table{vals: make(map[signal.Key]float32)}
}

// Insert idempotently creates key with value 0.
func (t *Table) Insert(key signal.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.vals[key]; !ok {
		t.vals[key] = 0
	}
}

// Exists reports whether key is present, under a shared read lock.
func (t *Table) Exists(key signal.Key) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.vals[key]
	return ok
}

// Get reads key's value under a shared read lock, failing with
// errcode.UnknownSignal if absent.
func (t *Table) Get(key signal.Key) (float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vals[key]
	if !ok {
		return 0, errcode.New(errcode.UnknownSignal, "table.Get", key.String())
	}
	return v, nil
}

// Set writes key's value under an exclusive write lock, failing with
// errcode.UnknownSignal if absent — tables never grow implicitly.
func (t *Table) Set(key signal.Key, v float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.vals[key]; !ok {
		return errcode.New(errcode.UnknownSignal, "table.Set", key.String())
	}
	t.vals[key] = v
	return nil
}

// Snapshot copies the table's current contents for diagnostics. It
// never aliases the internal map.
func (t *Table) Snapshot() map[signal.Key]float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[signal.Key]float32, len(t.vals))
	for k, v := range t.vals {
		out[k] = v
	}
	return out
}

// Reset copies, for every key present in both t and source, source's
// value into t. Keys present in only one table are left untouched.
//
// Lock discipline: a shared read lock is acquired on source and
// released before an exclusive write lock is acquired on t — the two
// locks are never held simultaneously, so this can never participate
// in a lock-order inversion with any other double-locking path.
func (t *Table) Reset(source *Table) {
	snapshot := source.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range snapshot {
		if _, ok := t.vals[k]; ok {
			t.vals[k] = v
		}
	}
}

// Pair holds the STATE and COMMAND tables. STATE is sensed and written
// by adapters, read by the rest of the DGI; COMMAND is actuation,
// written by the DGI, read by adapters. They are kept separate (rather
// than one map of tuples) because the two directions have different
// producer/consumer shapes and different read/write ratios.
type Pair struct {
	State   *Table
	Command *Table
}

// NewPair builds an empty state/command table pair.
func NewPair() *Pair {
	return &Pair{State: newTable(), Command: newTable()}
}

// ResetCommandFromState synchronises the command table with the state
// table for every key present in both, per §4.1's reset operation —
// used by the simulation server's RST dialect.
func (p *Pair) ResetCommandFromState() {
	p.Command.Reset(p.State)
}
