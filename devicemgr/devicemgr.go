// Package devicemgr implements the process-wide device manager: the
// hidden/visible partition that keeps the rest of the DGI from
// observing a partially-initialised adapter's devices.
package devicemgr

import (
	"sync"

	"golang.org/x/exp/constraints"

	"gridadapter/device"
	"gridadapter/errcode"
	"gridadapter/eventbus"
)

// Manager holds two mutually exclusive maps of identifier to device:
// hidden (newly constructed, not yet visible) and visible. Only Reveal
// may move a device from hidden to visible; Remove may delete from
// either. Iteration, counting, type-based selection, and aggregation
// operate only over visible.
type Manager struct {
	mu      sync.RWMutex
	hidden  map[string]*device.Device
	visible map[string]*device.Device

	events *eventbus.Connection
}

// New builds an empty device manager. If bus is nil, lifecycle events
// are not published — passing nil is valid and costs nothing extra.
func New(bus *eventbus.Bus) *Manager {
	m := &Manager{
		hidden:  make(map[string]*device.Device),
		visible: make(map[string]*device.Device),
	}
	if bus != nil {
		m.events = bus.NewConnection("devicemgr")
	}
	return m
}

func (m *Manager) publish(id, event string) {
	if m.events == nil {
		return
	}
	m.events.Publish(m.events.NewMessage(eventbus.DeviceMgrEvent(id, event), nil, false))
}

// Add inserts device into hidden. It fails with errcode.DuplicateId if
// the identifier already exists in either map.
func (m *Manager) Add(d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hidden[d.ID]; ok {
		return errcode.New(errcode.DuplicateId, "devicemgr.Add", d.ID)
	}
	if _, ok := m.visible[d.ID]; ok {
		return errcode.New(errcode.DuplicateId, "devicemgr.Add", d.ID)
	}
	m.hidden[d.ID] = d
	return nil
}

// Reveal moves id from hidden to visible. It fails with
// errcode.UnknownId if id is not currently in hidden — including when
// it is already visible (decided open question (a): see DESIGN.md).
func (m *Manager) Reveal(id string) error {
	m.mu.Lock()
	d, ok := m.hidden[id]
	if !ok {
		m.mu.Unlock()
		return errcode.New(errcode.UnknownId, "devicemgr.Reveal", id)
	}
	delete(m.hidden, id)
	m.visible[id] = d
	m.mu.Unlock()

	m.publish(id, "revealed")
	return nil
}

// Remove deletes id from whichever map contains it, reporting whether
// a deletion happened.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	_, inHidden := m.hidden[id]
	_, inVisible := m.visible[id]
	delete(m.hidden, id)
	delete(m.visible, id)
	m.mu.Unlock()

	removed := inHidden || inVisible
	if removed {
		m.publish(id, "removed")
	}
	return removed
}

// Exists reports whether id is in the visible map.
func (m *Manager) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.visible[id]
	return ok
}

// Count returns the number of visible devices.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.visible)
}

// Get returns the visible device with id, if any.
func (m *Manager) Get(id string) (*device.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.visible[id]
	return d, ok
}

// DevicesOfType returns every visible device whose descriptor contains
// type t.
func (m *Manager) DevicesOfType(t string) []*device.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*device.Device
	for _, d := range m.visible {
		if d.HasType(t) {
			out = append(out, d)
		}
	}
	return out
}

// Values returns the multiset of GetState(s) over every visible device
// of type t. Devices that fail to report (e.g. the signal is absent
// from that device) are skipped rather than aborting the whole query —
// aggregation over a type-tagged population tolerates a heterogeneous
// signal set across members.
func (m *Manager) Values(t, s string) []float32 {
	devices := m.DevicesOfType(t)
	out := make([]float32, 0, len(devices))
	for _, d := range devices {
		if v, err := d.GetState(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Net sums Values(t, s), defined as 0 over the empty set.
func (m *Manager) Net(t, s string) float32 {
	return sum(m.Values(t, s))
}

func sum[T constraints.Float](vs []T) T {
	var total T
	for _, v := range vs {
		total += v
	}
	return total
}
