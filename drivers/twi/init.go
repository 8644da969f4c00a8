package twi

import (
	"periph.io/x/conn/v3/physic"

	"github.com/noassemblyrequired/twi/errcode"
	"github.com/noassemblyrequired/twi/x/mathx"
)

// ControllerConfig configures the controller role from a bus frequency.
type ControllerConfig struct {
	// Frequency of SCL. Default 100 kHz.
	Frequency physic.Frequency
	// Timeout is the wait budget in iterations for every bounded wait.
	// Every wait polls at least once, so 0 behaves as 1: a condition that
	// already holds still succeeds.
	Timeout uint16
	// Policy receives completion and NACK/arbitration decisions.
	// Default DefaultController.
	Policy Controller
}

// RawConfig configures the controller role from raw bit-rate register
// values.
type RawConfig struct {
	Baud      uint8
	Prescaler Prescaler
	Timeout   uint16
	Policy    Controller
}

// BitRate computes the bit-rate register and prescaler for an SCL frequency
// f given peripheral clock cpu, from SCL = cpu / (16 + 2·baud·prescaler).
// The smallest prescaler that fits the baud into a byte is chosen; out of
// range requests clamp to the nearest achievable rate.
func BitRate(cpu, f physic.Frequency) (baud uint8, p Prescaler) {
	if f <= 0 {
		f = Freq100kHz
	}
	div := mathx.RoundDiv(uint64(cpu), uint64(f))
	n := mathx.SatSub(div, 16) / 2
	for p = Prescaler1; p <= Prescaler64; p++ {
		if v := n / uint64(p.Divisor()); v <= 0xFF {
			return uint8(v), p
		}
	}
	return 0xFF, Prescaler64
}

// InitializeController computes the bit rate for cfg.Frequency, installs
// the controller policy, enables the pull-ups and arms the peripheral.
// The driver becomes Idle. It always returns StatusOK.
func (d *Driver) InitializeController(cfg ControllerConfig) Status {
	baud, p := BitRate(d.cfg.CPUFrequency, cfg.Frequency)
	return d.InitializeControllerRaw(RawConfig{
		Baud:      baud,
		Prescaler: p,
		Timeout:   cfg.Timeout,
		Policy:    cfg.Policy,
	})
}

// InitializeControllerRaw is InitializeController with explicit bit-rate
// register values.
func (d *Driver) InitializeControllerRaw(cfg RawConfig) Status {
	d.hw.SetTiming(cfg.Baud, cfg.Prescaler)
	d.timeout = cfg.Timeout
	if cfg.Policy != nil {
		d.ctrl = cfg.Policy
	} else {
		d.ctrl = DefaultController{}
	}
	d.handoff.Store(handoffNone)
	d.stopPending.Store(false)
	d.setRole(Idle)
	d.hw.SetPullups(true)
	d.hw.SetControl(ctrlBase | CtrlAck)
	return StatusOK
}

// SetFrequency re-times an initialized controller without touching its
// policy or timeout. It refuses while a transfer is in flight.
func (d *Driver) SetFrequency(f physic.Frequency) error {
	if d.Role() == Uninitialized {
		return errcode.NotInitialized
	}
	if !d.quiescent() {
		return errcode.Busy
	}
	baud, p := BitRate(d.cfg.CPUFrequency, f)
	d.hw.SetTiming(baud, p)
	return nil
}

// ConfigureResponder installs the responder policy, programs the address
// and address mask registers and arms the peripheral to acknowledge its
// address. A nil policy means DefaultResponder. mask selects address bits
// to ignore; 0 matches the single address. It may be combined with
// InitializeController and always returns StatusOK.
//
// Call it before traffic can address the peripheral: the policy is read by
// the dispatcher without synchronisation.
func (d *Driver) ConfigureResponder(addr Address, mask uint8, r Responder) Status {
	if r == nil {
		r = DefaultResponder{}
	}
	d.resp = r
	d.hw.SetAddress(addr)
	d.hw.SetAddressMask(mask << 1)
	d.hw.SetControl(ctrlBase | CtrlAck)
	return StatusOK
}

// Reset recovers a stuck peripheral without losing its bit rate: it
// disables, restores timing, re-enables and forces Idle. A driver without
// an initialized controller keeps its Uninitialized role; if its
// peripheral is disabled too, nothing is touched and StatusNotInitialized
// is returned.
func (d *Driver) Reset() Status {
	controller := d.Role() != Uninitialized
	if !controller && d.hw.Control()&CtrlEnable == 0 {
		return StatusNotInitialized
	}
	baud, p := d.hw.Timing()
	d.hw.SetControl(d.hw.Control() &^ (CtrlEnable | CtrlInterruptEnable | CtrlAck))
	d.hw.SetTiming(baud, p)
	d.handoff.Store(handoffNone)
	d.stopPending.Store(false)
	if controller {
		d.setRole(Idle)
	}
	d.hw.SetControl(ctrlBase | CtrlAck)
	return StatusOK
}

// ShutDown disables the pull-ups and clears the control register. The
// driver returns to Uninitialized. Calling it again is harmless.
func (d *Driver) ShutDown() Status {
	d.hw.SetPullups(false)
	d.hw.SetControl(0)
	d.handoff.Store(handoffNone)
	d.stopPending.Store(false)
	d.setRole(Uninitialized)
	return StatusOK
}
