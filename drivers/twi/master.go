package twi

// TxOptions modify a controller write.
type TxOptions struct {
	// NoStart skips issuing a start condition, for when one is already on
	// the bus (for example asserted by a responder policy).
	NoStart bool
	// Posted returns StatusNoWait as soon as the transfer is started. The
	// caller must keep data alive and unmodified until a later operation or
	// the completion policy confirms the transfer finished.
	Posted bool
}

// RxOptions modify a controller read.
type RxOptions struct {
	NoStart bool
}

const (
	dirWrite byte = 0
	dirRead  byte = 1
)

// Transmit writes data to the 7-bit address addr. It returns the last bus
// condition once the transfer is quiescent, StatusNoWait for a posted
// write, StatusNotInitialized before InitializeController, or
// StatusTimedOut when a bounded wait runs out.
func (d *Driver) Transmit(addr uint8, data []byte, opt TxOptions) Status {
	return d.transfer(addr, data, dirWrite, opt.NoStart, opt.Posted)
}

// Receive reads len(buf) bytes from the 7-bit address addr into buf. The
// final byte is NACKed. Results are as for Transmit, without StatusNoWait.
func (d *Driver) Receive(addr uint8, buf []byte, opt RxOptions) Status {
	return d.transfer(addr, buf, dirRead, opt.NoStart, false)
}

func (d *Driver) transfer(addr uint8, buf []byte, dir byte, noStart, posted bool) Status {
	if d.Role() == Uninitialized {
		return StatusNotInitialized
	}

	// A timeout here leaves the previous transfer alone: it may still
	// complete, and resetting could corrupt the bus for another agent.
	if !d.wait.Until(int(d.timeout), d.quiescent) {
		return StatusTimedOut
	}

	if dir == dirWrite {
		d.mode.Store(uint32(ModeControllerTransmit))
	} else {
		d.mode.Store(uint32(ModeControllerReceive))
	}
	d.target = addr<<1 | dir
	d.buf = buf
	d.cursor = 0

	// The role turns Busy before the transfer is published so the final
	// wait cannot mistake a pending repeated start for completion.
	if d.role.CompareAndSwap(uint32(RepeatedStartPending), uint32(Busy)) {
		if !d.awaitRepeatedStart() {
			d.Reset()
			return StatusTimedOut
		}
	} else {
		d.setRole(Busy)
		// A parked start carries the transfer without issuing another.
		if d.arm() && !noStart {
			d.startIfArmed()
		}
	}

	if dir == dirWrite && posted {
		return StatusNoWait
	}

	if !d.wait.Until(int(d.timeout), d.quiescent) {
		return StatusTimedOut
	}
	return d.LastEvent()
}

// arm publishes the transfer to the dispatcher. If a start is already
// parked it claims it and sends the address itself, returning false.
func (d *Driver) arm() bool {
	if d.handoff.CompareAndSwap(handoffNone, handoffArmed) {
		return true
	}
	if d.handoff.CompareAndSwap(handoffParked, handoffClaimed) {
		d.sendAddressFromCaller()
	}
	return false
}

// startIfArmed issues the start for an armed transfer. A start asserted by
// a responder policy can arrive once the transfer is armed; if the
// dispatcher has already claimed the transfer for it, a second start would
// break the address phase, so none is issued. A start arriving between the
// check and the write is not excluded: callers expecting a responder
// asserted start pass NoStart.
func (d *Driver) startIfArmed() {
	if d.handoff.Load() == handoffArmed {
		d.hw.SetControl(ctrlBase | CtrlAck | CtrlStart)
	}
}

// awaitRepeatedStart hands the transfer to the repeated start requested by
// the previous transfer's policy, waiting for the hardware to report it.
func (d *Driver) awaitRepeatedStart() bool {
	if !d.arm() {
		return true
	}
	claimed := func() bool { return d.handoff.Load() != handoffArmed }
	if d.wait.Until(int(d.timeout), claimed) {
		return true
	}
	// Withdraw the transfer. Losing this race means the dispatcher claimed
	// it after the last poll.
	return !d.handoff.CompareAndSwap(handoffArmed, handoffNone)
}

// sendAddressFromCaller is sendAddress for caller context: the dispatcher
// is not running, so the command is written directly.
func (d *Driver) sendAddressFromCaller() {
	d.hw.SetData(d.target)
	d.handoff.Store(handoffNone)
	d.hw.SetControl(ctrlBase | CtrlAck)
}
