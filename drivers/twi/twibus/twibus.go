// Package twibus exposes a twi controller through the common Go I²C
// interfaces: tinygo.org/x/drivers.I2C, periph.io's i2c.BusCloser and the
// golang.org/x/exp/io/i2c driver.Opener.
//
// A Tx with both a write and a read phase is issued as a write, a repeated
// start and a read, without releasing the bus.
package twibus

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/io/i2c/driver"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/errcode"
)

var (
	_ drivers.I2C    = (*Bus)(nil)
	_ i2c.BusCloser  = (*Bus)(nil)
	_ driver.Opener  = (*Bus)(nil)
	_ driver.Conn    = (*Conn)(nil)
	_ twi.Controller = (*chain)(nil)
)

// Config configures the controller behind a Bus.
type Config struct {
	Frequency physic.Frequency `json:"frequency_hz"`
	Timeout   uint16           `json:"timeout"`
}

// Bus serialises callers onto one controller.
type Bus struct {
	mu     sync.Mutex
	name   string
	d      *twi.Driver
	policy chain
}

// New wraps d. Call Configure before use.
func New(name string, d *twi.Driver) *Bus {
	return &Bus{name: name, d: d}
}

// Configure initializes the controller with the bus's completion policy.
func (b *Bus) Configure(cfg Config) error {
	if cfg.Frequency <= 0 {
		cfg.Frequency = twi.Freq100kHz
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.d.InitializeController(twi.ControllerConfig{
		Frequency: cfg.Frequency,
		Timeout:   cfg.Timeout,
		Policy:    &b.policy,
	})
	return wrap("configure", st)
}

// Driver returns the underlying controller.
func (b *Bus) Driver() *twi.Driver { return b.d }

func (b *Bus) String() string { return b.name }

// Tx writes w then reads into r at the 7-bit address addr. With both
// empty it probes the address.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return &errcode.E{C: errcode.Unsupported, Op: "tx", Msg: "10-bit address"}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(w) > 0 || len(r) == 0 {
		b.policy.restart.Store(len(r) > 0)
		st := b.d.Transmit(uint8(addr), w, twi.TxOptions{})
		if err := wrap("tx", st); err != nil {
			b.policy.restart.Store(false)
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	b.policy.restart.Store(false)
	return wrap("tx", b.d.Receive(uint8(addr), r, twi.RxOptions{}))
}

// SetSpeed re-times the controller.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.d.SetFrequency(f); err != nil {
		return &errcode.E{C: errcode.Of(err), Op: "set_speed", Err: err}
	}
	return nil
}

// Close shuts the peripheral down.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.d.ShutDown()
	return nil
}

// Handle returns a view of b whose Close leaves the peripheral running,
// for handing out through registries that expect callers to close.
func (b *Bus) Handle() i2c.BusCloser { return handle{b} }

type handle struct{ *Bus }

func (handle) Close() error { return nil }

// Open returns a connection to the device at addr.
func (b *Bus) Open(addr int, tenbit bool) (driver.Conn, error) {
	if tenbit || addr < 0 || addr > 0x7F {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "open", Msg: "10-bit address"}
	}
	return &Conn{b: b, addr: uint16(addr)}, nil
}

// Conn is one device on a Bus.
type Conn struct {
	b    *Bus
	addr uint16
}

func (c *Conn) Tx(w, r []byte) error { return c.b.Tx(c.addr, w, r) }

// Close releases the connection; the bus stays open.
func (c *Conn) Close() error { return nil }

// chain ends a write with a repeated start when a read follows.
type chain struct {
	restart atomic.Bool
}

func (p *chain) OnComplete(st twi.Status) twi.Action {
	if st == twi.StatusMTDataAck || st == twi.StatusMTAddrAck {
		if p.restart.Load() {
			return twi.ActionStart
		}
	}
	return twi.ActionStop
}

func (p *chain) OnNack(twi.Status) twi.Action { return twi.ActionStop }

// wrap turns a failing status into an *errcode.E carrying its code.
func wrap(op string, st twi.Status) error {
	err := st.Err()
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.Of(err), Op: op, Msg: st.String(), Err: err}
}
