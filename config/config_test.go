package config

import (
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/noassemblyrequired/twi/errcode"
)

func TestEmbeddedBoardsLoad(t *testing.T) {
	for _, dev := range []string{"uno", "host"} {
		b, err := Load(dev)
		if err != nil {
			t.Fatalf("Load(%q): %v", dev, err)
		}
		bus, ok := b.Find("twi0")
		if !ok {
			t.Fatalf("%s: no twi0", dev)
		}
		if bus.CPU() != 16*physic.MegaHertz {
			t.Fatalf("%s: cpu %v", dev, bus.CPU())
		}
		if bus.Responder == nil || bus.Responder.Address != 42 || bus.Responder.Registers != DefaultRegisters {
			t.Fatalf("%s: responder %+v", dev, bus.Responder)
		}
	}
}

func TestDefaultsApplied(t *testing.T) {
	old := Lookup
	Lookup = func(device string) ([]byte, bool) {
		return []byte(`{"twi": [{"name": "a"}]}`), device == "bare"
	}
	t.Cleanup(func() { Lookup = old })

	b, err := Load("bare")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Device != "bare" {
		t.Fatalf("device %q", b.Device)
	}
	c := b.Buses[0]
	if c.Frequency() != 100*physic.KiloHertz || c.Timeout != DefaultTimeout ||
		c.WaitStepUS != DefaultWaitStepUS || c.StopStepUS != DefaultStopStepUS {
		t.Fatalf("defaults not applied: %+v", c)
	}

	if _, err := Load("missing"); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("missing device: %v", err)
	}
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"no name":    `{"twi": [{}]}`,
		"too fast":   `{"twi": [{"name": "a", "cpu_hz": 1000000, "frequency_hz": 400000}]}`,
		"trace size": `{"twi": [{"name": "a", "trace_size": 12}]}`,
		"responder":  `{"twi": [{"name": "a", "responder": {"address": 200}}]}`,
		"scan":       `{"twi": [{"name": "a", "scan": [128]}]}`,
		"not json":   `{"twi": [`,
		"wrong type": `{"twi": {"name": "a"}}`,
	}
	old := Lookup
	t.Cleanup(func() { Lookup = old })
	for name, doc := range cases {
		Lookup = func(string) ([]byte, bool) { return []byte(doc), true }
		if _, err := Load("x"); errcode.Of(err) != errcode.InvalidParams {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestDecodeSources(t *testing.T) {
	var a, b, c Responder
	if err := Decode(`{"address": 9}`, &a); err != nil || a.Address != 9 {
		t.Fatalf("string: %+v %v", a, err)
	}
	if err := Decode([]byte(`{"mask": 3}`), &b); err != nil || b.Mask != 3 {
		t.Fatalf("bytes: %+v %v", b, err)
	}
	if err := Decode(map[string]any{"general_call": true}, &c); err != nil || !c.GeneralCall {
		t.Fatalf("map: %+v %v", c, err)
	}
}
