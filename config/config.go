// Package config parses the XML adapter-specification document into
// typed specs, per spec §4.10/§6: one <adapter> element per adapter
// instance, each with a state and a command subtree of signal entries.
package config

import (
	"encoding/xml"
	"fmt"
	"io"

	"gridadapter/errcode"
)

// Entry is one parsed <entry index="..." device="..." signal="..."
// value="..."/> row.
type Entry struct {
	Index  int
	Device string
	Signal string
	Value  float32
	HasVal bool
}

// AdapterSpec is one parsed <adapter> element.
type AdapterSpec struct {
	Type       string
	Identifier string
	Host       string
	Port       string
	ListenPort string
	State      []Entry
	Command    []Entry
}

// xmlEntry and xmlAdapter mirror the document shape for unmarshalling;
// AdapterSpec.State/Command are built from them after validation.
type xmlEntry struct {
	Index  int     `xml:"index,attr"`
	Device string  `xml:"device,attr"`
	Signal string  `xml:"signal,attr"`
	Value  float32 `xml:"value,attr"`
	hasVal bool
}

func (e *xmlEntry) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type alias xmlEntry
	var a alias
	for _, attr := range start.Attr {
		if attr.Name.Local == "value" {
			a.hasVal = true
		}
	}
	if err := d.DecodeElement(&a, &start); err != nil {
		return err
	}
	*e = xmlEntry(a)
	e.hasVal = a.hasVal
	return nil
}

type xmlSubtree struct {
	Entries []xmlEntry `xml:"entry"`
}

type xmlAdapter struct {
	Type       string     `xml:"type,attr"`
	Identifier string     `xml:"identifier,attr"`
	Host       string     `xml:"host,attr"`
	Port       string     `xml:"port,attr"`
	ListenPort string     `xml:"listenport,attr"`
	State      xmlSubtree `xml:"state"`
	Command    xmlSubtree `xml:"command"`
}

type xmlDocument struct {
	XMLName  xml.Name     `xml:"adapters"`
	Adapters []xmlAdapter `xml:"adapter"`
}

// Parse reads the XML adapter document from r and returns one
// AdapterSpec per <adapter> element, or errcode.BadSpec on any
// malformed or inconsistent subtree, per §4.9's loading rules.
func Parse(r io.Reader) ([]AdapterSpec, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errcode.Wrap(errcode.BadSpec, "config.Parse", err)
	}

	specs := make([]AdapterSpec, 0, len(doc.Adapters))
	for _, a := range doc.Adapters {
		state, err := validateSubtree(a.State.Entries)
		if err != nil {
			return nil, err
		}
		command, err := validateSubtree(a.Command.Entries)
		if err != nil {
			return nil, err
		}
		specs = append(specs, AdapterSpec{
			Type:       a.Type,
			Identifier: a.Identifier,
			Host:       a.Host,
			Port:       a.Port,
			ListenPort: a.ListenPort,
			State:      state,
			Command:    command,
		})
	}
	return specs, nil
}

// validateSubtree enforces §4.9's loading rules for one state or
// command subtree: index in [1,N] forming exactly {1,...,N}, non-empty
// device/signal, no repeated (device,signal) pair within the subtree.
// The spec's separate "initial value repeated with conflicting values"
// rule targets the same (device,signal) pair declared more than once
// with different `value` attributes; since a repeated pair is already
// rejected outright, that case is reported under the same BadSpec
// message rather than as a distinct check.
func validateSubtree(entries []xmlEntry) ([]Entry, error) {
	n := len(entries)
	seenIndex := make(map[int]bool, n)
	seenPair := make(map[string]bool, n)
	out := make([]Entry, 0, n)

	for _, e := range entries {
		if e.Index < 1 || e.Index > n {
			return nil, errcode.New(errcode.BadSpec, "config.validateSubtree",
				fmt.Sprintf("index %d out of range [1,%d]", e.Index, n))
		}
		if seenIndex[e.Index] {
			return nil, errcode.New(errcode.BadSpec, "config.validateSubtree",
				fmt.Sprintf("index %d repeated", e.Index))
		}
		if e.Device == "" || e.Signal == "" {
			return nil, errcode.New(errcode.BadSpec, "config.validateSubtree",
				fmt.Sprintf("entry at index %d has empty device or signal", e.Index))
		}
		pairKey := e.Device + "." + e.Signal
		if seenPair[pairKey] {
			return nil, errcode.New(errcode.BadSpec, "config.validateSubtree",
				fmt.Sprintf("%s repeated within subtree", pairKey))
		}
		seenIndex[e.Index] = true
		seenPair[pairKey] = true

		out = append(out, Entry{Index: e.Index, Device: e.Device, Signal: e.Signal, Value: e.Value, HasVal: e.hasVal})
	}

	for i := 1; i <= n; i++ {
		if !seenIndex[i] {
			return nil, errcode.New(errcode.BadSpec, "config.validateSubtree",
				fmt.Sprintf("index %d never declared", i))
		}
	}

	return out, nil
}
