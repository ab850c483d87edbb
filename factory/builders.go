package factory

import (
	"time"

	"gridadapter/adapter"
	"gridadapter/adapter/pnp"
	"gridadapter/adapter/pscad"
	"gridadapter/adapter/rtds"
	"gridadapter/config"
	"gridadapter/device"
	"gridadapter/table"
)

func init() {
	Register("rtds", buildRTDS)
	Register("pscad", buildPSCAD)
	Register("pnp", buildPNP)
}

// devicesFromSpec groups a spec's state and command entries by device
// id, producing one device.Device per distinct id with a descriptor
// listing whichever of its signals appear in each subtree. The
// adapter-specification format carries no type tags, so every built
// device's Descriptor.Types is empty — devicemgr's type-based queries
// simply find none of them, which is the spec's own behaviour for a
// device claiming no type.
func devicesFromSpec(spec config.AdapterSpec, tables *table.Pair) []*device.Device {
	states := make(map[string][]string)
	commands := make(map[string][]string)
	order := make([]string, 0)
	seen := make(map[string]bool)

	addDevice := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, e := range spec.State {
		states[e.Device] = append(states[e.Device], e.Signal)
		addDevice(e.Device)
	}
	for _, e := range spec.Command {
		commands[e.Device] = append(commands[e.Device], e.Signal)
		addDevice(e.Device)
	}

	devices := make([]*device.Device, 0, len(order))
	for _, id := range order {
		desc := device.NewDescriptor(nil, states[id], commands[id])
		devices = append(devices, device.New(id, desc, tables))
	}
	return devices
}

func registerIndices(a adapter.Adapter, spec config.AdapterSpec) error {
	for _, e := range spec.State {
		if err := a.RegisterStateIndex(e.Device, e.Signal, e.Index); err != nil {
			return err
		}
	}
	for _, e := range spec.Command {
		if err := a.RegisterCommandIndex(e.Device, e.Signal, e.Index); err != nil {
			return err
		}
	}
	return nil
}

func registerDevices(a adapter.Adapter, devices []*device.Device) {
	for _, d := range devices {
		a.RegisterDevice(d)
	}
}

func buildRTDS(spec config.AdapterSpec, tables *table.Pair) (adapter.Adapter, []*device.Device, error) {
	a := rtds.New(spec.Identifier, spec.Host, spec.Port, len(spec.State), len(spec.Command), time.Millisecond, tables)
	if err := registerIndices(a, spec); err != nil {
		return nil, nil, err
	}
	devices := devicesFromSpec(spec, tables)
	registerDevices(a, devices)
	return a, devices, nil
}

func buildPSCAD(spec config.AdapterSpec, tables *table.Pair) (adapter.Adapter, []*device.Device, error) {
	a := pscad.New(spec.Identifier, spec.Host, spec.Port, tables)
	if err := registerIndices(a, spec); err != nil {
		return nil, nil, err
	}
	devices := devicesFromSpec(spec, tables)
	registerDevices(a, devices)
	return a, devices, nil
}

// pnpFullIDs rewrites a PNP spec's device-local names into the full
// device ids RegisterStateIndex/RegisterCommandIndex expect (§4.8's
// adapter-identifier-prefixed form), leaving the config entries
// otherwise untouched.
func pnpFullIDs(spec config.AdapterSpec) config.AdapterSpec {
	out := spec
	out.State = make([]config.Entry, len(spec.State))
	out.Command = make([]config.Entry, len(spec.Command))
	for i, e := range spec.State {
		e.Device = pnp.FullDeviceID(spec.Identifier, e.Device)
		out.State[i] = e
	}
	for i, e := range spec.Command {
		e.Device = pnp.FullDeviceID(spec.Identifier, e.Device)
		out.Command[i] = e
	}
	return out
}

func buildPNP(spec config.AdapterSpec, tables *table.Pair) (adapter.Adapter, []*device.Device, error) {
	a := pnp.New(spec.Identifier, spec.ListenPort, len(spec.State), len(spec.Command), 5*time.Second, tables, nil)
	full := pnpFullIDs(spec)
	if err := registerIndices(a, full); err != nil {
		return nil, nil, err
	}
	devices := devicesFromSpec(full, tables)
	registerDevices(a, devices)
	return a, devices, nil
}
