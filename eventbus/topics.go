package eventbus

// Topic helpers for the adapter-lifecycle events published by
// devicemgr and factory. Kept as plain constructors rather than a
// fixed enum of topics, matching the teacher's habit of building
// topics at the call site with T(...).

// AdapterState builds the topic an adapter's lifecycle transitions are
// published on: {"adapter", id, "state"}.
func AdapterState(adapterID string) Topic {
	return T("adapter", adapterID, "state")
}

// DeviceMgrEvent builds the topic for a device-manager reveal/removal
// event: {"devicemgr", deviceID, event}.
func DeviceMgrEvent(deviceID, event string) Topic {
	return T("devicemgr", deviceID, event)
}
