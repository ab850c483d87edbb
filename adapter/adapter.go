// Package adapter defines the contract every concrete adapter variant
// (buffered, tcp-binary, line-text, plug-and-play) implements, plus a
// small embeddable Base shared by all of them.
package adapter

import (
	"sync"

	"gridadapter/device"
	"gridadapter/devicemgr"
)

// Adapter is the uniform surface the factory and device manager drive
// every adapter variant through.
type Adapter interface {
	Start() error
	Stop()

	GetState(deviceID, signal string) (float32, error)
	SetCommand(deviceID, signal string, value float32) error

	RegisterStateIndex(deviceID, signal string, index int) error
	RegisterCommandIndex(deviceID, signal string, index int) error
	RegisterDevice(d *device.Device)

	Devices() []string
	RevealDevices(mgr *devicemgr.Manager) error
}

// Base holds the bookkeeping every concrete adapter needs regardless of
// wire dialect: the set of device identifiers it owns and a lifecycle
// flag recording whether it has completed at least one successful
// transaction. It is embedded, never used standalone.
type Base struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	started bool
}

// NewBase returns a zero-value Base ready to embed.
func NewBase() Base {
	return Base{ids: make(map[string]struct{})}
}

// RegisterDevice records d as owned by this adapter. Safe to call
// concurrently with Devices/RevealDevices.
func (b *Base) RegisterDevice(d *device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids[d.ID] = struct{}{}
}

// Devices returns the identifiers this adapter owns.
func (b *Base) Devices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.ids))
	for id := range b.ids {
		out = append(out, id)
	}
	return out
}

// RevealDevices calls mgr.Reveal for every device this adapter owns.
// Per §5's reveal ordering guarantee, the device manager's own lock
// makes each reveal atomic; a caller observing any one of this
// adapter's devices is guaranteed to observe all of them once this
// call returns without error.
func (b *Base) RevealDevices(mgr *devicemgr.Manager) error {
	for _, id := range b.Devices() {
		if err := mgr.Reveal(id); err != nil {
			return err
		}
	}
	return nil
}

// MarkStarted records that the adapter has completed at least one
// successful transaction; until then devices stay hidden (§4.5).
func (b *Base) MarkStarted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
}

// Started reports whether MarkStarted has been called.
func (b *Base) Started() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}
