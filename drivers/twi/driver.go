// Package twi drives a two-wire serial (TWI/I²C) peripheral in controller
// and responder roles. The peripheral raises an interrupt for every bus
// condition; HandleInterrupt reacts to it and issues the next command, while
// Transmit and Receive arm a controller transfer and spin, bounded by the
// configured timeout, until the dispatcher has driven it to a quiescent
// state.
//
//	d := twi.New(regs, twi.Config{})
//	d.InitializeController(twi.ControllerConfig{Frequency: twi.Freq100kHz, Timeout: 50})
//	st := d.Transmit(0x50, []byte{0x00, 0x10}, twi.TxOptions{})
//
// The platform must route the peripheral's interrupt to HandleInterrupt.
//
// Shared state discipline. The role, the last bus condition and the start
// hand-off are single atomic words. The transfer fields (buffer, cursor,
// target address, mode) belong to the caller's context until the transfer
// is published through the hand-off word, and to the dispatcher from the
// moment it claims the hand-off until the role is quiescent again. The
// orchestrator only writes them after observing quiescence. Policies are
// installed before the peripheral is armed and only read afterwards.
package twi

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/noassemblyrequired/twi/x/shmring"
	"github.com/noassemblyrequired/twi/x/timex"
)

// RoleState is the controller-side state of the driver.
type RoleState uint32

const (
	Uninitialized RoleState = iota
	Idle
	Busy
	RepeatedStartPending
	Stopping
)

func (r RoleState) String() string {
	switch r {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case RepeatedStartPending:
		return "repeated_start_pending"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// Mode is the direction and role of the current or last transfer.
type Mode uint32

const (
	ModeNone Mode = iota
	ModeControllerTransmit
	ModeControllerReceive
	ModeResponderTransmit
	ModeResponderReceive
)

// Start hand-off between the orchestrator and the dispatcher. Exactly one
// side loads the target address after a (repeated) start: whichever moves
// the word to handoffClaimed.
const (
	handoffNone    uint32 = iota
	handoffArmed          // transfer published, start not yet seen
	handoffParked         // start seen, no transfer published
	handoffClaimed        // one side is issuing the address
)

// Defaults.
const (
	DefaultCPUFrequency = 16 * physic.MegaHertz
	DefaultWaitStep     = 5 * time.Microsecond
	DefaultStopStep     = 1 * time.Microsecond

	Freq100kHz = 100 * physic.KiloHertz
	Freq400kHz = 400 * physic.KiloHertz
)

// Config controls non-register behaviour. All fields are optional.
type Config struct {
	// CPUFrequency is the peripheral clock used for bit-rate computation.
	// Default 16 MHz.
	CPUFrequency physic.Frequency
	// WaitStep is the delay per iteration while waiting for quiescence or
	// for a repeated start. Default 5 µs.
	WaitStep time.Duration
	// StopStep is the delay per iteration while waiting for a stop to go
	// out. Default 1 µs.
	StopStep time.Duration
	// Sleep replaces time.Sleep in every bounded wait.
	Sleep func(time.Duration)
	// Trace, when set, receives a (status, control) byte pair per handled
	// interrupt. Records that do not fit are dropped.
	Trace *shmring.Ring
}

// Driver is the single source of truth for one peripheral. It is created
// once and lives as long as the device; ShutDown powers the peripheral off
// but the Driver stays usable.
type Driver struct {
	hw  Registers
	cfg Config

	wait timex.Spinner
	stop timex.Spinner

	role      atomic.Uint32 // RoleState
	lastEvent atomic.Uint32 // Status
	handoff   atomic.Uint32
	mode      atomic.Uint32 // Mode

	// stopPending is set by the dispatcher after a bus error; whichever
	// caller-context wait sees the stop go out first settles it.
	stopPending atomic.Bool
	busErrors   atomic.Uint32
	recovery    *Recovery

	timeout uint16

	// Transfer fields; see the package comment for ownership.
	buf    []byte
	cursor int
	target byte // address<<1 | R/W

	ctrl Controller
	resp Responder

	issued Control // last command written by the dispatcher, for tracing
}

// New returns a driver for hw in the Uninitialized state. It does not touch
// the hardware.
func New(hw Registers, cfg Config) *Driver {
	if cfg.CPUFrequency <= 0 {
		cfg.CPUFrequency = DefaultCPUFrequency
	}
	if cfg.WaitStep <= 0 {
		cfg.WaitStep = DefaultWaitStep
	}
	if cfg.StopStep <= 0 {
		cfg.StopStep = DefaultStopStep
	}
	d := &Driver{
		hw:   hw,
		cfg:  cfg,
		wait: timex.Spinner{Step: cfg.WaitStep, Sleep: cfg.Sleep},
		stop: timex.Spinner{Step: cfg.StopStep, Sleep: cfg.Sleep},
		ctrl: DefaultController{},
		resp: DefaultResponder{},
	}
	d.lastEvent.Store(uint32(StatusNoInfo))
	return d
}

// Role returns the current role state.
func (d *Driver) Role() RoleState { return RoleState(d.role.Load()) }

// Mode returns the mode of the current or last transfer.
func (d *Driver) Mode() Mode { return Mode(d.mode.Load()) }

// LastEvent returns the most recent bus condition reported by hardware.
func (d *Driver) LastEvent() Status { return Status(d.lastEvent.Load()) }

// Timeout returns the configured wait budget in iterations.
func (d *Driver) Timeout() uint16 { return d.timeout }

// BusErrors returns the number of bus errors seen by the dispatcher.
func (d *Driver) BusErrors() uint32 { return d.busErrors.Load() }

func (d *Driver) setRole(r RoleState) { d.role.Store(uint32(r)) }

// quiescent reports whether the controller may start or return: Idle or
// RepeatedStartPending. It also settles a stop left pending by a bus error
// once the hardware has sent it.
func (d *Driver) quiescent() bool {
	d.settleStop()
	switch d.Role() {
	case Idle, RepeatedStartPending:
		return true
	}
	return false
}
