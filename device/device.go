// Package device implements the device object: a typed view over a
// subset of keys in a device-table pair, describing which types,
// states, and commands one logical piece of grid equipment supports.
package device

import (
	"fmt"
	"sort"
	"strings"

	"gridadapter/errcode"
	"gridadapter/signal"
	"gridadapter/table"
)

// Descriptor lists the type tags, state signals, and command signals
// one device claims. A device carries no mutex of its own — all
// synchronisation is inherited from the backing table.Pair.
type Descriptor struct {
	Types    map[string]struct{}
	States   map[string]struct{}
	Commands map[string]struct{}
}

// NewDescriptor builds a Descriptor from slices, for convenient
// construction from a parsed adapter spec.
func NewDescriptor(types, states, commands []string) Descriptor {
	d := Descriptor{
		Types:    toSet(types),
		States:   toSet(states),
		Commands: toSet(commands),
	}
	return d
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

// Device is one logical piece of grid equipment: an identifier unique
// across the process, a descriptor, and a reference to the table.Pair
// backing its signals.
type Device struct {
	ID         string
	Descriptor Descriptor
	tables     *table.Pair
}

// New builds a Device backed by tables. Every signal the descriptor
// claims must already have been inserted into tables by the owning
// adapter at construction time (spec §3, invariant (i)).
func New(id string, desc Descriptor, tables *table.Pair) *Device {
	return &Device{ID: id, Descriptor: desc, tables: tables}
}

func (d *Device) String() string {
	types := make([]string, 0, len(d.Descriptor.Types))
	for t := range d.Descriptor.Types {
		types = append(types, t)
	}
	sort.Strings(types)
	return fmt.Sprintf("%s (%s)", d.ID, strings.Join(types, ","))
}

// HasType reports whether the device claims type t.
func (d *Device) HasType(t string) bool {
	_, ok := d.Descriptor.Types[t]
	return ok
}

// HasState reports whether the device claims state signal s.
func (d *Device) HasState(s string) bool {
	_, ok := d.Descriptor.States[s]
	return ok
}

// HasCommand reports whether the device claims command signal s.
func (d *Device) HasCommand(s string) bool {
	_, ok := d.Descriptor.Commands[s]
	return ok
}

// GetState reads state signal s, failing with errcode.UnknownSignal if
// the device does not claim it.
func (d *Device) GetState(s string) (float32, error) {
	if !d.HasState(s) {
		return 0, errcode.New(errcode.UnknownSignal, "device.GetState", fmt.Sprintf("%s has no state %q", d.ID, s))
	}
	return d.tables.State.Get(signal.New(d.ID, s))
}

// GetCommand reads command signal s. Unless override is true, it fails
// with errcode.UnknownSignal if the device does not claim s. When the
// key is absent from the table it returns the sentinel "unknown"
// rather than failing, matching §4.2.
func (d *Device) GetCommand(s string, override bool) (float32, error) {
	if !d.HasCommand(s) && !override {
		return 0, errcode.New(errcode.UnknownSignal, "device.GetCommand", fmt.Sprintf("%s has no command %q", d.ID, s))
	}
	key := signal.New(d.ID, s)
	if !d.tables.Command.Exists(key) {
		return signal.Unknown, nil
	}
	return d.tables.Command.Get(key)
}

// SetCommand writes command signal s, failing with errcode.UnknownSignal
// if the device does not claim it.
func (d *Device) SetCommand(s string, v float32) error {
	if !d.HasCommand(s) {
		return errcode.New(errcode.UnknownSignal, "device.SetCommand", fmt.Sprintf("%s has no command %q", d.ID, s))
	}
	return d.tables.Command.Set(signal.New(d.ID, s), v)
}

// ClearCommands writes the sentinel into every command signal this
// device claims.
func (d *Device) ClearCommands() error {
	for s := range d.Descriptor.Commands {
		if err := d.tables.Command.Set(signal.New(d.ID, s), signal.Unknown); err != nil {
			return err
		}
	}
	return nil
}
