// Package config holds the per-board TWI bus configuration. Boards carry
// their configuration as embedded JSON documents keyed by device name.
package config

import (
	"encoding/json"

	"periph.io/x/conn/v3/physic"

	"github.com/noassemblyrequired/twi/errcode"
)

// Board is the configuration for one device.
type Board struct {
	Device string `json:"device"`
	Buses  []Bus  `json:"twi"`
}

// Bus describes one TWI peripheral.
type Bus struct {
	Name        string `json:"name"`
	CPUHz       int64  `json:"cpu_hz"`
	FrequencyHz int64  `json:"frequency_hz"`
	// Timeout is the wait budget in iterations of the wait step.
	Timeout    uint16     `json:"timeout"`
	WaitStepUS int        `json:"wait_step_us"`
	StopStepUS int        `json:"stop_step_us"`
	TraceSize  int        `json:"trace_size,omitempty"` // power of two, 0 disables
	Responder  *Responder `json:"responder,omitempty"`
	Scan       []uint8    `json:"scan,omitempty"` // addresses probed at boot
}

// Responder configures the peripheral's own address.
type Responder struct {
	Address     uint8 `json:"address"`
	Mask        uint8 `json:"mask"`
	GeneralCall bool  `json:"general_call"`
	Registers   int   `json:"registers"`
}

// Defaults.
const (
	DefaultCPUHz       = 16_000_000
	DefaultFrequencyHz = 100_000
	DefaultTimeout     = 100
	DefaultWaitStepUS  = 5
	DefaultStopStepUS  = 1
	DefaultRegisters   = 16
)

// Lookup resolves a device name to its raw configuration. Tests and
// boards with external storage override it.
var Lookup = func(device string) ([]byte, bool) {
	b, ok := embedded[device]
	return b, ok
}

// Load resolves, decodes, defaults and validates the configuration for
// device.
func Load(device string) (Board, error) {
	raw, ok := Lookup(device)
	if !ok || len(raw) == 0 {
		return Board{}, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "no embedded config for device: " + device}
	}
	var b Board
	if err := Decode(raw, &b); err != nil {
		return Board{}, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "decode", Err: err}
	}
	if b.Device == "" {
		b.Device = device
	}
	for i := range b.Buses {
		b.Buses[i].applyDefaults()
		if err := b.Buses[i].validate(); err != nil {
			return Board{}, err
		}
	}
	return b, nil
}

// Decode decodes src ([]byte, string, or any JSON-marshallable value such
// as a map) into dst.
func Decode[T any](src any, dst *T) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

// Find returns the bus called name.
func (b Board) Find(name string) (Bus, bool) {
	for _, bus := range b.Buses {
		if bus.Name == name {
			return bus, true
		}
	}
	return Bus{}, false
}

// CPU returns the peripheral clock.
func (c Bus) CPU() physic.Frequency { return physic.Frequency(c.CPUHz) * physic.Hertz }

// Frequency returns the SCL frequency.
func (c Bus) Frequency() physic.Frequency {
	return physic.Frequency(c.FrequencyHz) * physic.Hertz
}

func (c *Bus) applyDefaults() {
	if c.CPUHz <= 0 {
		c.CPUHz = DefaultCPUHz
	}
	if c.FrequencyHz <= 0 {
		c.FrequencyHz = DefaultFrequencyHz
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WaitStepUS <= 0 {
		c.WaitStepUS = DefaultWaitStepUS
	}
	if c.StopStepUS <= 0 {
		c.StopStepUS = DefaultStopStepUS
	}
	if r := c.Responder; r != nil && r.Registers <= 0 {
		r.Registers = DefaultRegisters
	}
}

func (c Bus) validate() error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: c.Name + ": " + msg}
	}
	switch {
	case c.Name == "":
		return bad("bus without a name")
	case c.FrequencyHz > c.CPUHz/16:
		return bad("frequency above cpu/16")
	case c.TraceSize != 0 && (c.TraceSize < 2 || c.TraceSize&(c.TraceSize-1) != 0):
		return bad("trace_size must be a power of two")
	}
	if r := c.Responder; r != nil {
		if r.Address == 0 || r.Address > 0x7F {
			return bad("responder address out of range")
		}
		if r.Registers > 256 {
			return bad("at most 256 responder registers")
		}
	}
	for _, a := range c.Scan {
		if a > 0x7F {
			return bad("scan address out of range")
		}
	}
	return nil
}
