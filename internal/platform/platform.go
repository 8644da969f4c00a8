// Package platform brings up the TWI buses a board's configuration names:
// it binds each to its registers and interrupt, installs the controller
// and responder policies, starts bus-error recovery and publishes the bus
// in the periph.io i2c registry.
package platform

import (
	"context"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/noassemblyrequired/twi/config"
	"github.com/noassemblyrequired/twi/drivers/twi"
	"github.com/noassemblyrequired/twi/drivers/twi/regfile"
	"github.com/noassemblyrequired/twi/drivers/twi/twibus"
	"github.com/noassemblyrequired/twi/errcode"
	"github.com/noassemblyrequired/twi/x/shmring"
)

const changeRingSize = 64

// Bus is one running TWI peripheral.
type Bus struct {
	Name     string
	HW       twi.Registers
	Driver   *twi.Driver
	I2C      *twibus.Bus
	Recovery *twi.Recovery

	// Bank is the responder register file; nil when the bus has no
	// responder address.
	Bank *regfile.Bank
	// Changes receives (register, value) pairs for remote writes to Bank.
	Changes *shmring.Ring
	// Trace receives (status, control) pairs per interrupt; nil when
	// tracing is off.
	Trace *shmring.Ring

	cancel context.CancelFunc
}

// Open brings up the bus described by cfg. The recovery worker runs until
// ctx is cancelled or Close is called.
func Open(ctx context.Context, cfg config.Bus) (*Bus, error) {
	hw, hook, err := registers(cfg.Name)
	if err != nil {
		return nil, err
	}
	b := &Bus{Name: cfg.Name, HW: hw}
	if cfg.TraceSize > 0 {
		b.Trace = shmring.New(cfg.TraceSize)
	}
	b.Driver = twi.New(hw, twi.Config{
		CPUFrequency: cfg.CPU(),
		WaitStep:     time.Duration(cfg.WaitStepUS) * time.Microsecond,
		StopStep:     time.Duration(cfg.StopStepUS) * time.Microsecond,
		Trace:        b.Trace,
	})
	b.Recovery = twi.NewRecovery(b.Driver, 0)
	hook(b.Driver.HandleInterrupt)

	b.I2C = twibus.New(cfg.Name, b.Driver)
	if err := b.I2C.Configure(twibus.Config{Frequency: cfg.Frequency(), Timeout: cfg.Timeout}); err != nil {
		return nil, err
	}
	if r := cfg.Responder; r != nil {
		b.Changes = shmring.New(changeRingSize)
		b.Bank = regfile.New(r.Registers, b.Changes)
		addr := twi.NoGeneralCall(r.Address)
		if r.GeneralCall {
			addr = twi.GeneralCall(r.Address)
		}
		b.Driver.ConfigureResponder(addr, r.Mask, b.Bank)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.Recovery.Start(ctx)

	if err := i2creg.Register(cfg.Name, nil, -1, func() (i2c.BusCloser, error) {
		return b.I2C.Handle(), nil
	}); err != nil {
		b.cancel()
		b.I2C.Close()
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "register", Msg: cfg.Name, Err: err}
	}
	println("[platform] " + cfg.Name + " up")
	return b, nil
}

// Close unregisters the bus, stops recovery and shuts the peripheral down.
func (b *Bus) Close() error {
	_ = i2creg.Unregister(b.Name)
	b.cancel()
	<-b.Recovery.Done()
	return b.I2C.Close()
}

// DrainTrace passes every buffered trace record to fn and returns the
// count.
func (b *Bus) DrainTrace(fn func(st twi.Status, issued twi.Control)) int {
	if b.Trace == nil {
		return 0
	}
	var rec [2]byte
	n := 0
	for b.Trace.Available() >= len(rec) {
		b.Trace.ReadInto(rec[:])
		fn(twi.Status(rec[0]), twi.Control(rec[1]))
		n++
	}
	return n
}

// DrainChanges passes every buffered remote register write to fn and
// returns the count.
func (b *Bus) DrainChanges(fn func(reg, val byte)) int {
	if b.Changes == nil {
		return 0
	}
	var rec [2]byte
	n := 0
	for b.Changes.Available() >= len(rec) {
		b.Changes.ReadInto(rec[:])
		fn(rec[0], rec[1])
		n++
	}
	return n
}

// OpenAll brings up every bus on the board. On error the buses already
// opened are closed.
func OpenAll(ctx context.Context, board config.Board) ([]*Bus, error) {
	var out []*Bus
	for _, c := range board.Buses {
		b, err := Open(ctx, c)
		if err != nil {
			for _, o := range out {
				o.Close()
			}
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
