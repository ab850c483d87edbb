// Package factory implements the adapter factory: a registry of
// adapter-class builders keyed by type string, plus the live
// adapter_id -> Adapter map that construction, start, reveal and
// removal operate on, per spec §4.10.
package factory

import (
	"fmt"
	"sync"
	"time"

	"gridadapter/adapter"
	"gridadapter/config"
	"gridadapter/device"
	"gridadapter/devicemgr"
	"gridadapter/errcode"
	"gridadapter/eventbus"
	"gridadapter/internal/logging"
	"gridadapter/table"
)

// Builder constructs one concrete adapter instance from a parsed spec:
// it builds the adapter, registers every declared state/command index
// into tables, and builds the device objects the spec implies — but it
// must not start the adapter or touch the device manager. tables is the
// single process-wide state/command pair every adapter and device
// shares (§1); a builder never constructs its own. Factory.Create owns
// starting, reveal and duplicate-checking, so every adapter type gets
// the same construction sequence.
type Builder func(spec config.AdapterSpec, tables *table.Pair) (adapter.Adapter, []*device.Device, error)

var (
	muBuilders sync.RWMutex
	builders   = map[string]Builder{}
)

// Register installs a builder for an adapter type string ("rtds",
// "pscad", "pnp", "buffered", ...). It panics on duplicate
// registration, matching the teacher's fail-fast startup convention.
func Register(adapterType string, b Builder) {
	muBuilders.Lock()
	defer muBuilders.Unlock()
	if adapterType == "" {
		panic("factory: empty adapter type")
	}
	if _, exists := builders[adapterType]; exists {
		panic(fmt.Sprintf("factory: builder already registered for type %q", adapterType))
	}
	builders[adapterType] = b
}

func findBuilder(adapterType string) (Builder, bool) {
	muBuilders.RLock()
	defer muBuilders.RUnlock()
	b, ok := builders[adapterType]
	return b, ok
}

// revealPollInterval is how often Create's background goroutine checks
// whether a newly started adapter has completed its first successful
// transaction and is ready to have its devices revealed.
const revealPollInterval = 5 * time.Millisecond

// starter is implemented by every adapter variant embedding
// adapter.Base (rtds, pscad, pnp). rtds and pnp set the flag on their
// first successful transaction; the line dialect (pscad) sets it as
// soon as Start's dial succeeds, so its devices reveal on the first
// poll.
type starter interface{ Started() bool }

// fatalSetter is implemented by adapter variants with a background
// goroutine that can end the adapter's lifetime on its own (rtds,
// pnp). The factory wires their OnFatal callback to its own Remove so
// neither adapter variant needs to know the factory exists.
type fatalSetter interface{ SetOnFatal(func(id string)) }

// Factory owns the live adapter_id -> Adapter map and the device
// manager every adapter's devices are added to and revealed through.
// Its mutex protects only the map and the per-adapter poll-stop
// channels; per §5 it is never held across I/O.
type Factory struct {
	mgr    *devicemgr.Manager
	events *eventbus.Connection
	tables *table.Pair

	mu       sync.Mutex
	adapters map[string]adapter.Adapter
	stopPoll map[string]chan struct{}
}

// New builds a Factory bound to mgr and tables, the single
// process-wide state/command pair every adapter this factory creates
// will share. If bus is nil, adapter lifecycle events are not
// published.
func New(mgr *devicemgr.Manager, bus *eventbus.Bus, tables *table.Pair) *Factory {
	f := &Factory{
		mgr:      mgr,
		tables:   tables,
		adapters: make(map[string]adapter.Adapter),
		stopPoll: make(map[string]chan struct{}),
	}
	if bus != nil {
		f.events = bus.NewConnection("factory")
	}
	return f
}

func (f *Factory) publish(id, state string) {
	if f.events == nil {
		return
	}
	f.events.Publish(f.events.NewMessage(eventbus.AdapterState(id), state, false))
}

// Create builds, registers and starts one adapter from spec, following
// §4.10's construction sequence: dispatch by type, fail with
// DuplicateDevice if any declared device id is already known, fail
// with DuplicateId if the adapter identifier is already in use, add
// every device to the device manager's hidden set, then start the
// adapter. Reveal happens afterwards, once the adapter proves its
// buffer layout with one successful transaction.
func (f *Factory) Create(spec config.AdapterSpec) (adapter.Adapter, error) {
	build, ok := findBuilder(spec.Type)
	if !ok {
		return nil, errcode.New(errcode.BadSpec, "factory.Create", fmt.Sprintf("no builder registered for type %q", spec.Type))
	}

	a, devices, err := build(spec, f.tables)
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		if f.mgr.Exists(d.ID) {
			return nil, errcode.New(errcode.DuplicateDevice, "factory.Create", d.ID)
		}
	}

	f.mu.Lock()
	if _, exists := f.adapters[spec.Identifier]; exists {
		f.mu.Unlock()
		return nil, errcode.New(errcode.DuplicateId, "factory.Create", spec.Identifier)
	}
	stop := make(chan struct{})
	f.adapters[spec.Identifier] = a
	f.stopPoll[spec.Identifier] = stop
	f.mu.Unlock()

	if fs, ok := a.(fatalSetter); ok {
		id := spec.Identifier
		fs.SetOnFatal(func(string) { f.Remove(id) })
	}

	for _, d := range devices {
		if err := f.mgr.Add(d); err != nil {
			f.discard(spec.Identifier)
			if errcode.Is(err, errcode.DuplicateId) {
				// The id is already held, possibly still hidden.
				return nil, errcode.New(errcode.DuplicateDevice, "factory.Create", d.ID)
			}
			return nil, err
		}
	}

	if err := a.Start(); err != nil {
		f.discard(spec.Identifier)
		for _, d := range devices {
			f.mgr.Remove(d.ID)
		}
		logging.WithAdapter(spec.Identifier).WithError(err).Warn("factory: adapter failed to start")
		return nil, err
	}

	logging.WithAdapter(spec.Identifier).WithField("type", spec.Type).Info("factory: adapter started")
	f.publish(spec.Identifier, "started")
	go f.revealWhenReady(spec.Identifier, a, stop)
	return a, nil
}

func (f *Factory) discard(id string) {
	f.mu.Lock()
	delete(f.adapters, id)
	delete(f.stopPoll, id)
	f.mu.Unlock()
}

// revealWhenReady polls a's Started flag, when it implements starter,
// and reveals its devices exactly once the first time it flips true —
// §4.4's "on first successful exchange ... atomically reveals the
// owned devices", implemented once here rather than duplicated inside
// every adapter variant.
func (f *Factory) revealWhenReady(id string, a adapter.Adapter, stop chan struct{}) {
	s, ok := a.(starter)
	if !ok {
		_ = a.RevealDevices(f.mgr)
		f.publish(id, "revealed")
		return
	}

	ticker := time.NewTicker(revealPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.Started() {
				if err := a.RevealDevices(f.mgr); err != nil {
					logging.WithAdapter(id).WithError(err).Warn("factory: reveal failed")
				} else {
					f.publish(id, "revealed")
				}
				return
			}
		}
	}
}

// Remove stops the adapter and removes its devices from the device
// manager, then drops it from the map. Safe to call concurrently with
// ongoing adapter work and idempotent — a second call for an id already
// removed is a no-op. Removal is always best-effort: Stop swallows its
// own errors so cleanup always completes.
func (f *Factory) Remove(id string) {
	f.mu.Lock()
	a, ok := f.adapters[id]
	stop := f.stopPoll[id]
	delete(f.adapters, id)
	delete(f.stopPoll, id)
	f.mu.Unlock()

	if !ok {
		return
	}
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}

	owned := a.Devices()
	a.Stop()
	for _, devID := range owned {
		f.mgr.Remove(devID)
	}
	logging.WithAdapter(id).Info("factory: adapter removed")
	f.publish(id, "removed")
}

// Get returns the live adapter registered under id, if any.
func (f *Factory) Get(id string) (adapter.Adapter, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.adapters[id]
	return a, ok
}

// Count returns the number of live adapters.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.adapters)
}
