package config

import (
	"strings"
	"testing"

	"gridadapter/errcode"
)

const validDoc = `<adapters>
  <adapter type="rtds" identifier="rtds1" host="127.0.0.1" port="9001">
    <state>
      <entry index="1" device="gen1" signal="V"/>
    </state>
    <command>
      <entry index="1" device="gen1" signal="Q" value="0.5"/>
    </command>
  </adapter>
  <adapter type="pnp" identifier="mamba3" listenport="9100">
    <state>
      <entry index="1" device="sst" signal="gateway"/>
    </state>
    <command>
      <entry index="1" device="sst" signal="gateway"/>
    </command>
  </adapter>
</adapters>`

func TestParseValidDocument(t *testing.T) {
	specs, err := Parse(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 adapters, got %d", len(specs))
	}
	if specs[0].Type != "rtds" || specs[0].Identifier != "rtds1" || specs[0].Host != "127.0.0.1" || specs[0].Port != "9001" {
		t.Fatalf("unexpected rtds spec: %+v", specs[0])
	}
	if len(specs[0].State) != 1 || specs[0].State[0].Device != "gen1" || specs[0].State[0].Signal != "V" {
		t.Fatalf("unexpected state entries: %+v", specs[0].State)
	}
	if !specs[0].Command[0].HasVal || specs[0].Command[0].Value != 0.5 {
		t.Fatalf("expected command initial value 0.5, got %+v", specs[0].Command[0])
	}
	if specs[1].ListenPort != "9100" {
		t.Fatalf("expected pnp listenport 9100, got %+v", specs[1])
	}
}

func TestIndexOutOfRangeIsBadSpec(t *testing.T) {
	doc := `<adapters><adapter type="rtds" identifier="a"><state>
      <entry index="2" device="d" signal="s"/>
    </state><command></command></adapter></adapters>`
	_, err := Parse(strings.NewReader(doc))
	if errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
}

func TestRepeatedIndexIsBadSpec(t *testing.T) {
	doc := `<adapters><adapter type="rtds" identifier="a"><state>
      <entry index="1" device="d1" signal="s"/>
      <entry index="1" device="d2" signal="s"/>
    </state><command></command></adapter></adapters>`
	_, err := Parse(strings.NewReader(doc))
	if errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
}

func TestEmptyDeviceIsBadSpec(t *testing.T) {
	doc := `<adapters><adapter type="rtds" identifier="a"><state>
      <entry index="1" device="" signal="s"/>
    </state><command></command></adapter></adapters>`
	_, err := Parse(strings.NewReader(doc))
	if errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
}

func TestRepeatedPairIsBadSpec(t *testing.T) {
	doc := `<adapters><adapter type="rtds" identifier="a"><state>
      <entry index="1" device="d" signal="s"/>
      <entry index="2" device="d" signal="s"/>
    </state><command></command></adapter></adapters>`
	_, err := Parse(strings.NewReader(doc))
	if errcode.Of(err) != errcode.BadSpec {
		t.Fatalf("expected BadSpec, got %v", err)
	}
}

func TestUnorderedIndicesFormingFullSetSucceed(t *testing.T) {
	doc := `<adapters><adapter type="rtds" identifier="a"><state>
      <entry index="2" device="d1" signal="s1"/>
      <entry index="1" device="d2" signal="s2"/>
    </state><command></command></adapter></adapters>`
	specs, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs[0].State) != 2 {
		t.Fatalf("expected 2 state entries, got %d", len(specs[0].State))
	}
}
