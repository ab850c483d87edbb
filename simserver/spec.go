package simserver

import (
	"sort"

	"gridadapter/config"
	"gridadapter/signal"
	"gridadapter/table"
)

// orderedKeys returns a validated entry slice's declared keys in
// ascending index order. config.Parse already guarantees the indices
// form exactly {1,...,len(entries)}, so a plain sort is sufficient.
func orderedKeys(entries []config.Entry) []signal.Key {
	sorted := make([]config.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	keys := make([]signal.Key, len(sorted))
	for i, e := range sorted {
		keys[i] = signal.New(e.Device, e.Signal)
	}
	return keys
}

// seedTable inserts every entry's key into t, writing the declared
// initial value when the entry carries one.
func seedTable(t *table.Table, entries []config.Entry) {
	for _, e := range entries {
		key := signal.New(e.Device, e.Signal)
		t.Insert(key)
		if e.HasVal {
			_ = t.Set(key, e.Value)
		}
	}
}
